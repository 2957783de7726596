// Package engine executes validated circuits against a statevector.
package engine

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/floats"

	"qircuitsim/internal/circuit"
	"qircuitsim/internal/quantum"
	"qircuitsim/internal/simerr"
)

// NormTolerance is the largest drift of Σ|a|² from 1 tolerated after a gate.
const NormTolerance = 1e-6

// Limits bounds the work a single run may request.
type Limits struct {
	MaxQubits int
	MaxShots  int
	// MaxWork caps the estimated amplitude updates of one run, counting a
	// full pass over the register once per operation and per re-executed shot.
	MaxWork int64
}

// DefaultLimits keeps a full register under 256 MiB of amplitudes and a
// run's work in the order of seconds.
func DefaultLimits() Limits {
	return Limits{MaxQubits: 24, MaxShots: 1_000_000, MaxWork: 1 << 34}
}

// Result is the outcome of Run. Analytic runs carry State; sampled runs
// carry Counts and the normalised Probabilities instead.
type Result struct {
	NumQubits     int
	Shots         int
	State         *quantum.StateVector
	Probabilities []float64
	Counts        map[int]int
	// Outcomes maps each measured qubit to its last observed bit in an
	// analytic run.
	Outcomes map[int]int
}

// Sampled reports whether r came from shot sampling.
func (r *Result) Sampled() bool { return r.Shots > 0 }

// Option configures an Engine.
type Option func(*Engine)

// WithLogger routes engine diagnostics to logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics records every run on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine runs circuits. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	limits  Limits
	logger  *log.Logger
	metrics *Metrics
	apply   map[quantum.GateType]applyFunc
}

// New returns an Engine bounded by limits.
func New(limits Limits, opts ...Option) *Engine {
	e := &Engine{
		limits: limits,
		logger: log.Default(),
		apply:  dispatchTable(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limits returns the bounds the engine enforces.
func (e *Engine) Limits() Limits { return e.limits }

// Run validates c and executes it. With shots == 0 the final state is
// returned along with its exact probabilities; with shots > 0 the circuit
// is run shots times and the observed basis frequencies are returned. A
// non-nil seed makes the run reproducible.
//
// With shots == 0 every MEASURE collapses once, so the result is a single
// collapsed sample rather than a histogram of measured qubits.
func (e *Engine) Run(ctx context.Context, c *circuit.Circuit, shots int, seed *int64) (*Result, error) {
	start := time.Now()
	res, err := e.run(ctx, c, shots, seed)
	if e.metrics != nil {
		qubits := 0
		if c != nil {
			qubits = c.NumQubits
		}
		e.metrics.RecordRun(ctx, qubits, shots, time.Since(start), err)
	}
	return res, err
}

func (e *Engine) run(ctx context.Context, c *circuit.Circuit, shots int, seed *int64) (*Result, error) {
	if c == nil {
		return nil, simerr.Validationf("circuit", "circuit is required")
	}
	if err := c.Validate(e.limits.MaxQubits); err != nil {
		return nil, err
	}
	if err := e.checkShots(shots); err != nil {
		return nil, err
	}
	if err := e.checkWork(c, shots); err != nil {
		return nil, err
	}

	rng := newRand(seed)
	e.logger.Debug("simulating circuit",
		"qubits", c.NumQubits,
		"ops", c.Len(),
		"shots", shots,
		"seeded", seed != nil,
	)

	if shots == 0 {
		return e.runAnalytic(ctx, c, rng)
	}
	return e.runSampled(ctx, c, shots, rng)
}

func (e *Engine) checkShots(shots int) error {
	if shots < 0 {
		return simerr.Validationf("shots", "must be non-negative, got %d", shots)
	}
	if shots > e.limits.MaxShots {
		return simerr.ResourceLimitf("shots", "%d exceeds limit of %d", shots, e.limits.MaxShots)
	}
	return nil
}

// checkWork rejects runs whose estimated cost exceeds MaxWork. Circuits
// without measurement are executed once and then sampled at O(N) per shot;
// circuits with measurement pay the full execution on every shot.
func (e *Engine) checkWork(c *circuit.Circuit, shots int) error {
	if e.limits.MaxWork <= 0 {
		return nil
	}
	size := math.Ldexp(1, c.NumQubits)
	work := float64(c.Len()+1) * size
	switch {
	case shots > 0 && c.HasMeasurement():
		work *= float64(shots)
	case shots > 0:
		work += float64(shots) * float64(c.NumQubits)
	}
	if work > float64(e.limits.MaxWork) {
		return simerr.ResourceLimitf("work",
			"%d qubits, %d operations and %d shots need about %.3g amplitude updates, exceeding limit of %d",
			c.NumQubits, c.Len(), shots, work, e.limits.MaxWork)
	}
	return nil
}

func (e *Engine) runAnalytic(ctx context.Context, c *circuit.Circuit, rng *rand.Rand) (*Result, error) {
	state := quantum.NewStateVector(c.NumQubits)
	outcomes := make(map[int]int)
	err := e.execute(ctx, c, state, rng, func(i int, op circuit.Operation, outcome int) {
		if op.Type == quantum.GateMeasure {
			outcomes[op.Target] = outcome
		}
	})
	if err != nil {
		return nil, err
	}
	return &Result{NumQubits: c.NumQubits, State: state, Outcomes: outcomes}, nil
}

// runSampled executes the circuit once per shot and draws one basis index
// from each final state. Circuits with no measurement reach the same state
// every time, so they are executed once and their distribution is sampled
// shots times.
func (e *Engine) runSampled(ctx context.Context, c *circuit.Circuit, shots int, rng *rand.Rand) (*Result, error) {
	state := quantum.NewStateVector(c.NumQubits)
	counts := make(map[int]int)

	if !c.HasMeasurement() {
		if err := e.execute(ctx, c, state, rng, nil); err != nil {
			return nil, err
		}
		sampler := quantum.NewSampler(state)
		for shot := 0; shot < shots; shot++ {
			if shot%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			counts[sampler.Draw(rng)]++
		}
	} else {
		for shot := 0; shot < shots; shot++ {
			if shot > 0 {
				state.Reset()
			}
			if err := e.execute(ctx, c, state, rng, nil); err != nil {
				return nil, fmt.Errorf("shot %d: %w", shot, err)
			}
			counts[state.Sample(rng)]++
		}
	}

	probs := make([]float64, state.Len())
	for idx, n := range counts {
		probs[idx] = float64(n)
	}
	floats.Scale(1/float64(shots), probs)

	return &Result{
		NumQubits:     c.NumQubits,
		Shots:         shots,
		Probabilities: probs,
		Counts:        counts,
	}, nil
}

// observer is told about every applied operation. outcome is the measured
// bit for MEASURE and -1 otherwise.
type observer func(i int, op circuit.Operation, outcome int)

func (e *Engine) execute(ctx context.Context, c *circuit.Circuit, state *quantum.StateVector, rng quantum.Source, observe observer) error {
	for i, op := range c.Ops {
		if err := ctx.Err(); err != nil {
			return err
		}

		fn, ok := e.apply[op.Type]
		if !ok {
			return simerr.Validationf(fmt.Sprintf("gates[%d]", i), "unknown gate type %q", op.Type.String())
		}
		outcome, err := fn(state, op, rng)
		if err != nil {
			return fmt.Errorf("gates[%d]: %w", i, err)
		}

		if drift := math.Abs(state.Norm() - 1); drift > NormTolerance {
			return simerr.Internalf(nil, fmt.Sprintf("gates[%d]", i),
				"normalisation drifted by %.3g after %s", drift, op.Type)
		}
		if observe != nil {
			observe(i, op, outcome)
		}
	}
	return nil
}

// newRand returns a generator seeded from seed, or from the system's
// entropy source when seed is nil.
func newRand(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(b[:]))))
}
