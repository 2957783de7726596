package circuit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"qircuitsim/internal/quantum"
	"qircuitsim/internal/simerr"
)

// Request is the JSON body submitted by the circuit editor.
//
//	{"circuit": {"qubits": 2, "gates": [{"type": "H", "target": 0, "step": 0}]}, "shots": 0}
//
// Unknown fields are ignored. Seed is optional and makes measurement and
// shot sampling reproducible.
type Request struct {
	Circuit WireCircuit `json:"circuit"`
	Shots   int         `json:"shots"`
	Seed    *int64      `json:"seed,omitempty"`
}

// WireCircuit is the circuit half of a Request.
type WireCircuit struct {
	Qubits int        `json:"qubits"`
	Gates  []WireGate `json:"gates"`
}

// WireGate is one gate as the editor sends it. Gates arrive already sorted
// into execution order; Step is kept only for round-tripping.
type WireGate struct {
	Type    string          `json:"type"`
	Target  *int            `json:"target"`
	Step    json.RawMessage `json:"step,omitempty"`
	Control *int            `json:"control"`
	Other   *int            `json:"other,omitempty"`
	Params  WireParams      `json:"params"`
}

// WireParams carries the gate parameters. Theta may be a JSON number or an
// angle expression string such as "pi/2". Older editors put the SWAP partner
// in params.other.
type WireParams struct {
	Theta json.RawMessage `json:"theta,omitempty"`
	Other *int            `json:"other,omitempty"`
}

// DecodeRequest parses a request body. Malformed JSON is a validation error.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&req); err != nil {
		return nil, &simerr.Error{Kind: simerr.Validation, Op: "request", Msg: "malformed JSON", Err: err}
	}
	return &req, nil
}

// Build converts the wire circuit into a Circuit. It resolves gate tags and
// angles but leaves range and completeness checks to Validate.
func (w WireCircuit) Build() (*Circuit, error) {
	c := New(w.Qubits)
	for i, g := range w.Gates {
		op, err := g.operation()
		if err != nil {
			return nil, fmt.Errorf("gates[%d]: %w", i, err)
		}
		if op.Step < 0 {
			op.Step = i
		}
		c.Append(op)
	}
	return c, nil
}

func (g WireGate) operation() (Operation, error) {
	t, ok := quantum.ParseGateType(g.Type)
	if !ok {
		return Operation{}, simerr.Validationf("type", "unknown gate type %q", g.Type)
	}
	if g.Target == nil {
		return Operation{}, simerr.Validationf("target", "%s is missing a target qubit", t)
	}

	op := Operation{
		Type:    t,
		Target:  *g.Target,
		Control: g.Control,
		Other:   g.Other,
		Step:    rawStep(g.Step),
	}
	if op.Other == nil {
		op.Other = g.Params.Other
	}

	theta, err := rawAngle(g.Params.Theta)
	if err != nil {
		return Operation{}, err
	}
	op.Theta = theta
	return op, nil
}

// rawAngle decodes a theta that may be absent, null, a number or a string.
func rawAngle(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return &num, nil
	}

	var expr string
	if err := json.Unmarshal(raw, &expr); err != nil {
		return nil, simerr.Validationf("theta", "invalid angle: must be a number or string, got %s", raw)
	}
	v, err := ParseAngle(expr)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// rawStep reads an integral step; absent, null or anything else yields -1.
func rawStep(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return -1
	}
	var step int
	if json.Unmarshal(raw, &step) != nil {
		return -1
	}
	return step
}

// Wire converts c back into its JSON form.
func (c *Circuit) Wire() WireCircuit {
	w := WireCircuit{Qubits: c.NumQubits, Gates: make([]WireGate, 0, len(c.Ops))}
	for _, op := range c.Ops {
		target := op.Target
		g := WireGate{
			Type:    op.Type.String(),
			Target:  &target,
			Step:    json.RawMessage(strconv.Itoa(op.Step)),
			Control: op.Control,
			Other:   op.Other,
		}
		if op.Theta != nil {
			g.Params.Theta = json.RawMessage(strconv.FormatFloat(*op.Theta, 'g', -1, 64))
		}
		w.Gates = append(w.Gates, g)
	}
	return w
}
