package engine

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"qircuitsim/internal/circuit"
	"qircuitsim/internal/quantum"
	"qircuitsim/internal/simerr"
)

func seed(v int64) *int64 { return &v }

func newTestEngine() *Engine {
	return New(DefaultLimits())
}

func TestRunAnalytic(t *testing.T) {
	tests := []struct {
		name    string
		circuit *circuit.Circuit
		want    []float64
	}{
		{
			name:    "hadamard",
			circuit: circuit.New(1).AddGate(quantum.GateH, 0),
			want:    []float64{0.5, 0.5},
		},
		{
			name:    "hadamard_self_inverse",
			circuit: circuit.New(1).AddGate(quantum.GateH, 0).AddGate(quantum.GateH, 0),
			want:    []float64{1, 0},
		},
		{
			name:    "bell_pair",
			circuit: circuit.New(2).AddGate(quantum.GateH, 0).AddControlled(quantum.GateCNOT, 0, 1),
			want:    []float64{0.5, 0, 0, 0.5},
		},
		{
			name:    "swap_relabels",
			circuit: circuit.New(2).AddGate(quantum.GateX, 0).AddSwap(0, 1),
			want:    []float64{0, 1, 0, 0},
		},
		{
			name:    "ghz",
			circuit: circuit.New(3).AddGate(quantum.GateH, 0).AddControlled(quantum.GateCNOT, 0, 1).AddControlled(quantum.GateCNOT, 1, 2),
			want:    []float64{0.5, 0, 0, 0, 0, 0, 0, 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newTestEngine().Run(context.Background(), tt.circuit, 0, seed(1))
			require.NoError(t, err)
			require.NotNil(t, res.State)
			assert.False(t, res.Sampled())
			assert.InDeltaSlice(t, tt.want, res.State.Probabilities(), 1e-12)
		})
	}
}

func TestRunXIsExact(t *testing.T) {
	res, err := newTestEngine().Run(context.Background(), circuit.New(1).AddGate(quantum.GateX, 0), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, res.State.Probabilities())
}

func TestRunPhaseFlip(t *testing.T) {
	c := circuit.New(1).AddGate(quantum.GateX, 0).AddGate(quantum.GateZ, 0)
	res, err := newTestEngine().Run(context.Background(), c, 0, nil)
	require.NoError(t, err)
	assert.InDelta(t, -1, real(res.State.Amplitudes[1]), 1e-12)
	assert.InDelta(t, 0, imag(res.State.Amplitudes[1]), 1e-12)
}

func TestRunBellAmplitudes(t *testing.T) {
	c := circuit.New(2).AddGate(quantum.GateH, 0).AddControlled(quantum.GateCNOT, 0, 1)
	res, err := newTestEngine().Run(context.Background(), c, 0, nil)
	require.NoError(t, err)
	for _, i := range []int{0, 3} {
		a := res.State.Amplitudes[i]
		assert.InDelta(t, 1/math.Sqrt2, real(a), 1e-12)
		assert.InDelta(t, 0, imag(a), 1e-12)
	}
}

func TestRandomCircuitsStayNormalised(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	single := []quantum.GateType{
		quantum.GateI, quantum.GateX, quantum.GateY, quantum.GateZ, quantum.GateH,
		quantum.GateS, quantum.GateSdg, quantum.GateT, quantum.GateTdg,
	}
	rotations := []quantum.GateType{quantum.GateRX, quantum.GateRY, quantum.GateRZ}

	for n := 1; n <= 10; n++ {
		c := circuit.New(n)
		for i := 0; i < 60; i++ {
			target := rng.Intn(n)
			switch pick := rng.Intn(5); {
			case pick == 0:
				c.AddRotation(rotations[rng.Intn(len(rotations))], target, (rng.Float64()*2-1)*2*math.Pi)
			case pick == 1 && n > 1:
				other := (target + 1 + rng.Intn(n-1)) % n
				c.AddControlled(quantum.GateCNOT, other, target)
			case pick == 2 && n > 1:
				other := (target + 1 + rng.Intn(n-1)) % n
				c.AddControlled(quantum.GateCZ, other, target)
			case pick == 3 && n > 1:
				other := (target + 1 + rng.Intn(n-1)) % n
				c.AddSwap(target, other)
			default:
				c.AddGate(single[rng.Intn(len(single))], target)
			}
		}
		if n%3 == 0 {
			c.AddMeasure(rng.Intn(n))
		}

		res, err := newTestEngine().Run(context.Background(), c, 0, seed(int64(n)))
		require.NoError(t, err, "n=%d", n)

		total := 0.0
		for _, p := range res.State.Probabilities() {
			assert.GreaterOrEqual(t, p, 0.0)
			total += p
		}
		assert.InDelta(t, 1, total, 1e-6, "n=%d", n)
	}
}

func TestRunRejectsInvalidCircuits(t *testing.T) {
	tests := []struct {
		name    string
		circuit *circuit.Circuit
		shots   int
		kind    simerr.Kind
	}{
		{"nil_circuit", nil, 0, simerr.Validation},
		{"control_equals_target", circuit.New(2).AddControlled(quantum.GateCNOT, 1, 1), 0, simerr.Validation},
		{"qubit_out_of_range", circuit.New(2).AddGate(quantum.GateH, 2), 0, simerr.Validation},
		{"late_bad_gate", circuit.New(2).AddGate(quantum.GateH, 0).AddGate(quantum.GateX, 5), 0, simerr.Validation},
		{"too_many_qubits", circuit.New(25), 0, simerr.ResourceLimit},
		{"negative_shots", circuit.New(1), -1, simerr.Validation},
		{"too_many_shots", circuit.New(1), 1_000_001, simerr.ResourceLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newTestEngine().Run(context.Background(), tt.circuit, tt.shots, nil)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.kind, simerr.KindOf(err))
		})
	}
}

func TestValidationPrecedesExecution(t *testing.T) {
	e := newTestEngine()
	called := false
	e.apply[quantum.GateH] = func(s *quantum.StateVector, op circuit.Operation, rng quantum.Source) (int, error) {
		called = true
		return applyUnitary(s, op, rng)
	}

	c := circuit.New(2).AddGate(quantum.GateH, 0).AddControlled(quantum.GateCNOT, 0, 0)
	_, err := e.Run(context.Background(), c, 0, nil)
	require.Error(t, err)
	assert.True(t, simerr.IsValidation(err))
	assert.False(t, called, "no gate is applied when any gate is invalid")
}

func TestNormDriftIsInternal(t *testing.T) {
	e := newTestEngine()
	e.apply[quantum.GateX] = func(s *quantum.StateVector, _ circuit.Operation, _ quantum.Source) (int, error) {
		for i := range s.Amplitudes {
			s.Amplitudes[i] *= 2
		}
		return -1, nil
	}

	_, err := e.Run(context.Background(), circuit.New(1).AddGate(quantum.GateX, 0), 0, nil)
	require.Error(t, err)
	assert.True(t, simerr.IsInternal(err))
	assert.Contains(t, err.Error(), "gates[0]")
}

func TestRunSampled(t *testing.T) {
	c := circuit.New(2).AddGate(quantum.GateH, 0).AddControlled(quantum.GateCNOT, 0, 1)
	res, err := newTestEngine().Run(context.Background(), c, 10000, seed(7))
	require.NoError(t, err)

	assert.True(t, res.Sampled())
	assert.Nil(t, res.State)
	require.Len(t, res.Probabilities, 4)
	assert.Equal(t, 10000, res.Counts[0]+res.Counts[3])
	assert.Zero(t, res.Probabilities[1])
	assert.Zero(t, res.Probabilities[2])
	assert.InDelta(t, 0.5, res.Probabilities[0], 0.03)

	total := 0.0
	for _, p := range res.Probabilities {
		total += p
	}
	assert.InDelta(t, 1, total, 1e-9)
}

func TestRunSampledLargeRegisterDrawsOnce(t *testing.T) {
	// X on the most significant qubit of 20 leaves the register in |10…0⟩.
	c := circuit.New(20).AddGate(quantum.GateX, 0)
	res, err := newTestEngine().Run(context.Background(), c, 20000, seed(1))
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1 << 19: 20000}, res.Counts)
	assert.InDelta(t, 1.0, res.Probabilities[1<<19], 1e-12)
}

func hadamardChain(qubits, ops int) *circuit.Circuit {
	c := circuit.New(qubits)
	for range ops {
		c.AddGate(quantum.GateH, 0)
	}
	return c
}

func TestRunRejectsExcessiveWork(t *testing.T) {
	limits := Limits{MaxQubits: 4, MaxShots: 100, MaxWork: 1000}
	tests := []struct {
		name    string
		circuit *circuit.Circuit
		shots   int
		ok      bool
	}{
		{"analytic", circuit.New(3).AddGate(quantum.GateH, 0).AddGate(quantum.GateH, 1), 0, true},
		{"sampled_without_measurement", circuit.New(3).AddGate(quantum.GateH, 0).AddGate(quantum.GateH, 1), 100, true},
		{"sampled_with_measurement", circuit.New(3).AddGate(quantum.GateH, 0).AddMeasure(0), 100, false},
		{"long_analytic", hadamardChain(4, 64), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(limits).Run(context.Background(), tt.circuit, tt.shots, seed(1))
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, simerr.IsResourceLimit(err), "got %v", err)
			assert.Contains(t, err.Error(), "amplitude updates")
		})
	}
}

func TestDefaultLimitsRejectRerunAtFullWidth(t *testing.T) {
	c := circuit.New(24).AddGate(quantum.GateH, 0).AddMeasure(0)
	_, err := newTestEngine().Run(context.Background(), c, 1_000_000, seed(1))
	require.Error(t, err)
	assert.True(t, simerr.IsResourceLimit(err))
}

func TestSeededRunsAreReproducible(t *testing.T) {
	c := circuit.New(3).
		AddGate(quantum.GateH, 0).
		AddRotation(quantum.GateRY, 1, 1.1).
		AddMeasure(0).
		AddControlled(quantum.GateCNOT, 1, 2).
		AddMeasure(2)

	a, err := newTestEngine().Run(context.Background(), c, 500, seed(99))
	require.NoError(t, err)
	b, err := newTestEngine().Run(context.Background(), c, 500, seed(99))
	require.NoError(t, err)
	assert.Equal(t, a.Counts, b.Counts)

	x, err := newTestEngine().Run(context.Background(), c, 0, seed(3))
	require.NoError(t, err)
	y, err := newTestEngine().Run(context.Background(), c, 0, seed(3))
	require.NoError(t, err)
	assert.Equal(t, x.State.Amplitudes, y.State.Amplitudes)
	assert.Equal(t, x.Outcomes, y.Outcomes)
}

func TestMeasurementConvergesToBornRule(t *testing.T) {
	// RY(pi/3) leaves P(1) = sin²(pi/6) = 0.25.
	c := circuit.New(1).AddRotation(quantum.GateRY, 0, math.Pi/3).AddMeasure(0)
	res, err := newTestEngine().Run(context.Background(), c, 20000, seed(2024))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, res.Probabilities[1], 0.015)
	assert.InDelta(t, 0.75, res.Probabilities[0], 0.015)
}

func TestAnalyticMeasurementCollapses(t *testing.T) {
	c := circuit.New(2).AddGate(quantum.GateH, 0).AddControlled(quantum.GateCNOT, 0, 1).AddMeasure(0)
	res, err := newTestEngine().Run(context.Background(), c, 0, seed(11))
	require.NoError(t, err)

	bit, ok := res.Outcomes[0]
	require.True(t, ok)
	want := []float64{1, 0, 0, 0}
	if bit == 1 {
		want = []float64{0, 0, 0, 1}
	}
	assert.InDeltaSlice(t, want, res.State.Probabilities(), 1e-12)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine().Run(ctx, circuit.New(1).AddGate(quantum.GateH, 0), 0, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, simerr.KindOf(err))
}

func TestDispatchTableCoversCatalogue(t *testing.T) {
	table := dispatchTable()
	for g := quantum.GateI; g.Valid(); g++ {
		assert.Contains(t, table, g, "gate %s", g)
	}
	assert.NotContains(t, table, quantum.GateInvalid)
}

func findMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Metrics{}
}

func TestRunWithMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider)
	require.NoError(t, err)
	e := New(DefaultLimits(), WithMetrics(m))

	ctx := context.Background()
	_, err = e.Run(ctx, circuit.New(1).AddGate(quantum.GateH, 0), 0, seed(1))
	require.NoError(t, err)
	_, err = e.Run(ctx, circuit.New(1).AddGate(quantum.GateH, 0), 10, seed(1))
	require.NoError(t, err)
	_, err = e.Run(ctx, circuit.New(40), 0, nil)
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	runs, ok := findMetric(t, rm, "qsim.runs").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range runs.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)

	failed, ok := findMetric(t, rm, "qsim.runs.failed").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, failed.DataPoints, 1)
	assert.Equal(t, int64(1), failed.DataPoints[0].Value)
	kind, ok := failed.DataPoints[0].Attributes.Value(attribute.Key("error.kind"))
	require.True(t, ok)
	assert.Equal(t, "resource_limit", kind.AsString())

	duration, ok := findMetric(t, rm, "qsim.run.duration").Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range duration.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}
