package engine

import (
	"context"

	"qircuitsim/internal/circuit"
	"qircuitsim/internal/quantum"
	"qircuitsim/internal/simerr"
)

// MaxTraceQubits bounds Trace, which keeps one copy of the register per
// operation.
const MaxTraceQubits = 16

// Snapshot is the register after one operation of a traced run.
type Snapshot struct {
	// Index is the position of Op in the circuit, or -1 for the initial state.
	Index int
	Op    *circuit.Operation
	State *quantum.StateVector
	// Outcome is the measured bit when Op is a MEASURE, -1 otherwise.
	Outcome int
}

// Trace executes c once and returns the initial state followed by the state
// after every operation. Measurements collapse using seed, exactly as an
// analytic Run with the same seed would.
func (e *Engine) Trace(ctx context.Context, c *circuit.Circuit, seed *int64) ([]Snapshot, error) {
	if c == nil {
		return nil, simerr.Validationf("circuit", "circuit is required")
	}
	if err := c.Validate(e.limits.MaxQubits); err != nil {
		return nil, err
	}
	if c.NumQubits > MaxTraceQubits {
		return nil, simerr.ResourceLimitf("trace", "%d qubits exceeds trace limit of %d", c.NumQubits, MaxTraceQubits)
	}
	if err := e.checkWork(c, 0); err != nil {
		return nil, err
	}

	state := quantum.NewStateVector(c.NumQubits)
	snaps := make([]Snapshot, 0, c.Len()+1)
	snaps = append(snaps, Snapshot{Index: -1, State: state.Clone(), Outcome: -1})

	err := e.execute(ctx, c, state, newRand(seed), func(i int, op circuit.Operation, outcome int) {
		snaps = append(snaps, Snapshot{
			Index:   i,
			Op:      &c.Ops[i],
			State:   state.Clone(),
			Outcome: outcome,
		})
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}
