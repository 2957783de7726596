// Package circuit models a quantum circuit as an ordered list of gate
// operations and converts it to and from its wire forms.
package circuit

import (
	"fmt"
	"math"
	"sort"

	"qircuitsim/internal/quantum"
	"qircuitsim/internal/simerr"
)

// Operation is one gate application. Control, Other and Theta are nil when
// the gate type does not use them.
type Operation struct {
	Type    quantum.GateType
	Target  int
	Control *int     // CNOT, CZ
	Other   *int     // SWAP
	Theta   *float64 // RX, RY, RZ
	Step    int      // editor column; not read by the engine
}

// Circuit is the ordered operation list run against a fresh register.
type Circuit struct {
	NumQubits int
	Ops       []Operation
	MaxSteps  int
}

// New returns an empty circuit on numQubits qubits.
func New(numQubits int) *Circuit {
	return &Circuit{NumQubits: numQubits}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func (c *Circuit) nextStep() int { return len(c.Ops) }

// Len returns the number of operations.
func (c *Circuit) Len() int { return len(c.Ops) }

// Append adds op as-is and tracks the widest step seen.
func (c *Circuit) Append(op Operation) *Circuit {
	c.Ops = append(c.Ops, op)
	if op.Step >= c.MaxSteps {
		c.MaxSteps = op.Step + 1
	}
	return c
}

// AddGate appends a fixed single-qubit gate.
func (c *Circuit) AddGate(g quantum.GateType, target int) *Circuit {
	return c.Append(Operation{Type: g, Target: target, Step: c.nextStep()})
}

// AddRotation appends a rotation gate with angle theta.
func (c *Circuit) AddRotation(g quantum.GateType, target int, theta float64) *Circuit {
	return c.Append(Operation{Type: g, Target: target, Theta: floatPtr(theta), Step: c.nextStep()})
}

// AddControlled appends a CNOT or CZ.
func (c *Circuit) AddControlled(g quantum.GateType, control, target int) *Circuit {
	return c.Append(Operation{Type: g, Target: target, Control: intPtr(control), Step: c.nextStep()})
}

// AddSwap appends a SWAP of qubits a and b.
func (c *Circuit) AddSwap(a, b int) *Circuit {
	return c.Append(Operation{Type: quantum.GateSwap, Target: a, Other: intPtr(b), Step: c.nextStep()})
}

// AddMeasure appends a measurement of target.
func (c *Circuit) AddMeasure(target int) *Circuit {
	return c.AddGate(quantum.GateMeasure, target)
}

// HasMeasurement reports whether any operation collapses a qubit.
func (c *Circuit) HasMeasurement() bool {
	for _, op := range c.Ops {
		if op.Type == quantum.GateMeasure {
			return true
		}
	}
	return false
}

// SortedByStep returns a copy of the circuit with operations stably ordered
// by Step. The engine itself runs operations in slice order.
func (c *Circuit) SortedByStep() *Circuit {
	ops := make([]Operation, len(c.Ops))
	copy(ops, c.Ops)
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Step < ops[j].Step })
	return &Circuit{NumQubits: c.NumQubits, Ops: ops, MaxSteps: c.MaxSteps}
}

// Validate checks the circuit against the catalogue and the qubit bound.
// It never touches amplitudes, so a failing circuit leaves no partial state.
func (c *Circuit) Validate(maxQubits int) error {
	if c.NumQubits < 1 {
		return simerr.Validationf("qubits", "qubit count must be at least 1, got %d", c.NumQubits)
	}
	if c.NumQubits > maxQubits {
		return simerr.ResourceLimitf("qubits", "qubit count %d exceeds limit of %d", c.NumQubits, maxQubits)
	}
	for i, op := range c.Ops {
		if err := op.validate(c.NumQubits); err != nil {
			return fmt.Errorf("gates[%d]: %w", i, err)
		}
	}
	return nil
}

func (op Operation) validate(n int) error {
	name := op.Type.String()
	if !op.Type.Valid() {
		return simerr.Validationf("type", "unknown gate type")
	}
	if err := checkQubit("target", op.Target, n); err != nil {
		return err
	}

	if op.Type.NeedsControl() {
		if op.Control == nil {
			return simerr.Validationf("control", "%s requires a control qubit", name)
		}
		if err := checkQubit("control", *op.Control, n); err != nil {
			return err
		}
		if *op.Control == op.Target {
			return simerr.Validationf("control", "%s control and target are both qubit %d", name, op.Target)
		}
	}

	if op.Type.NeedsOther() {
		if op.Other == nil {
			return simerr.Validationf("other", "%s requires a second qubit", name)
		}
		if err := checkQubit("other", *op.Other, n); err != nil {
			return err
		}
		if *op.Other == op.Target {
			return simerr.Validationf("other", "%s swaps qubit %d with itself", name, op.Target)
		}
	}

	if op.Type.NeedsTheta() {
		if op.Theta == nil {
			return simerr.Validationf("theta", "%s requires an angle", name)
		}
		if math.IsNaN(*op.Theta) || math.IsInf(*op.Theta, 0) {
			return simerr.Validationf("theta", "%s angle must be finite", name)
		}
	}
	return nil
}

func checkQubit(field string, q, n int) error {
	if q < 0 || q >= n {
		return simerr.Validationf(field, "qubit %d out of range [0,%d)", q, n)
	}
	return nil
}
