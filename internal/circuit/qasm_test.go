package circuit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qircuitsim/internal/quantum"
	"qircuitsim/internal/simerr"
)

func TestToQASM(t *testing.T) {
	c := New(3).
		AddGate(quantum.GateH, 0).
		AddControlled(quantum.GateCNOT, 0, 1).
		AddRotation(quantum.GateRX, 2, math.Pi/2).
		AddGate(quantum.GateSdg, 2).
		AddSwap(1, 2).
		AddMeasure(1)

	want := `OPENQASM 2.0;
include "qelib1.inc";

qreg q[3];
creg c[3];

h q[0];
cx q[0], q[1];
rx(pi/2) q[2];
sdg q[2];
swap q[1], q[2];
measure q[1] -> c[1];
`
	assert.Equal(t, want, c.ToQASM())
}

func TestToQASMWithoutMeasurementOmitsCreg(t *testing.T) {
	qasm := New(1).AddGate(quantum.GateX, 0).ToQASM()
	assert.NotContains(t, qasm, "creg")
}

func TestParseQASM(t *testing.T) {
	qasm := `OPENQASM 2.0;
include "qelib1.inc";

qreg q[3];
creg c[3];

h q[1];
cx q[1], q[2];   // entangle
cz q[0], q[1];
barrier q[0], q[1], q[2];
ry(-3*pi/4) q[0];
t q[2];
measure q[0] -> c[0];`

	c, err := ParseQASM(qasm)
	require.NoError(t, err)
	require.NoError(t, c.Validate(24))
	assert.Equal(t, 3, c.NumQubits)
	require.Equal(t, 6, c.Len())

	assert.Equal(t, quantum.GateCNOT, c.Ops[1].Type)
	assert.Equal(t, 1, *c.Ops[1].Control)
	assert.Equal(t, 2, c.Ops[1].Target)
	assert.Equal(t, quantum.GateCZ, c.Ops[2].Type)
	assert.InDelta(t, -3*math.Pi/4, *c.Ops[3].Theta, 1e-10)
	assert.Equal(t, quantum.GateT, c.Ops[4].Type)
	assert.Equal(t, quantum.GateMeasure, c.Ops[5].Type)
	assert.Equal(t, 5, c.Ops[5].Step)
}

func TestQASMRoundTrip(t *testing.T) {
	c := New(2).
		AddRotation(quantum.GateRX, 0, math.Pi/2).
		AddRotation(quantum.GateRY, 1, 3*math.Pi/4).
		AddRotation(quantum.GateRZ, 0, 0.125).
		AddSwap(0, 1).
		AddGate(quantum.GateY, 1)

	back, err := ParseQASM(c.ToQASM())
	require.NoError(t, err)
	require.Equal(t, c.Len(), back.Len())

	for i := range c.Ops {
		assert.Equal(t, c.Ops[i].Type, back.Ops[i].Type, "op %d", i)
		assert.Equal(t, c.Ops[i].Target, back.Ops[i].Target, "op %d", i)
		if c.Ops[i].Theta != nil {
			assert.InDelta(t, *c.Ops[i].Theta, *back.Ops[i].Theta, 1e-10, "op %d", i)
		}
	}
	assert.Equal(t, 1, *back.Ops[3].Other)
}

func TestParseQASMErrors(t *testing.T) {
	tests := []struct {
		name string
		qasm string
		msg  string
	}{
		{"missing_qreg", "h q[0];", "missing qreg"},
		{"unsupported_gate", "qreg q[3];\nccx q[0], q[1], q[2];", "line 2"},
		{"unknown_rotation", "qreg q[1];\nu1(pi) q[0];", "unsupported parameterised gate"},
		{"bad_angle", "qreg q[1];\nrx(pi/0) q[0];", "invalid angle"},
		{"word_angle", "qreg q[1];\nry(half) q[0];", `invalid angle "half"`},
		{"two_registers", "qreg q[1];\nqreg r[1];", "only one quantum register"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQASM(tt.qasm)
			require.Error(t, err)
			assert.True(t, simerr.IsValidation(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
