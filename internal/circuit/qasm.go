package circuit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"qircuitsim/internal/quantum"
	"qircuitsim/internal/simerr"
)

// Pre-compiled regexps for QASM parsing.
var (
	singleGateRegex      = regexp.MustCompile(`^(\w+)\s+\w+\[(\d+)\]\s*;?$`)
	singleGateParamRegex = regexp.MustCompile(`^(\w+)\s*\(([^()]*)\)\s+\w+\[(\d+)\]\s*;?$`)
	twoQubitRegex        = regexp.MustCompile(`^(\w+)\s+\w+\[(\d+)\]\s*,\s*\w+\[(\d+)\]\s*;?$`)
	measureRegex         = regexp.MustCompile(`^measure\s+\w+\[(\d+)\]\s*->\s*\w+\[(\d+)\]\s*;?$`)
	qregRegex            = regexp.MustCompile(`^qreg\s+(\w+)\[(\d+)\]\s*;?$`)
)

// qasmNames maps catalogue gates to their qelib1 mnemonics.
var qasmNames = map[quantum.GateType]string{
	quantum.GateI:    "id",
	quantum.GateX:    "x",
	quantum.GateY:    "y",
	quantum.GateZ:    "z",
	quantum.GateH:    "h",
	quantum.GateS:    "s",
	quantum.GateSdg:  "sdg",
	quantum.GateT:    "t",
	quantum.GateTdg:  "tdg",
	quantum.GateRX:   "rx",
	quantum.GateRY:   "ry",
	quantum.GateRZ:   "rz",
	quantum.GateCNOT: "cx",
	quantum.GateCZ:   "cz",
	quantum.GateSwap: "swap",
}

// ToQASM renders c as OpenQASM 2.0 in execution order. Qubit k of the
// circuit is q[k]; measurements write to the classical bit of the same index.
func (c *Circuit) ToQASM() string {
	var sb strings.Builder
	sb.WriteString("OPENQASM 2.0;\n")
	sb.WriteString("include \"qelib1.inc\";\n\n")
	fmt.Fprintf(&sb, "qreg q[%d];\n", max(c.NumQubits, 1))
	if c.HasMeasurement() {
		fmt.Fprintf(&sb, "creg c[%d];\n", max(c.NumQubits, 1))
	}
	sb.WriteString("\n")

	for _, op := range c.Ops {
		name := qasmNames[op.Type]
		switch {
		case op.Type == quantum.GateMeasure:
			fmt.Fprintf(&sb, "measure q[%d] -> c[%d];\n", op.Target, op.Target)
		case op.Type.NeedsControl() && op.Control != nil:
			fmt.Fprintf(&sb, "%s q[%d], q[%d];\n", name, *op.Control, op.Target)
		case op.Type.NeedsOther() && op.Other != nil:
			fmt.Fprintf(&sb, "%s q[%d], q[%d];\n", name, op.Target, *op.Other)
		case op.Type.NeedsTheta() && op.Theta != nil:
			fmt.Fprintf(&sb, "%s(%s) q[%d];\n", name, FormatAngle(*op.Theta), op.Target)
		case name != "":
			fmt.Fprintf(&sb, "%s q[%d];\n", name, op.Target)
		default:
			fmt.Fprintf(&sb, "// unsupported %s q[%d]\n", op.Type, op.Target)
		}
	}
	return sb.String()
}

// ParseQASM builds a circuit from the OpenQASM 2.0 subset ToQASM emits.
// Barriers are ignored; any other unsupported statement is a validation
// error naming its line.
func ParseQASM(qasm string) (*Circuit, error) {
	c := &Circuit{}
	sawQreg := false

	for idx, raw := range strings.Split(qasm, "\n") {
		line := strings.TrimSpace(raw)
		if i := strings.Index(line, "//"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" ||
			strings.HasPrefix(line, "OPENQASM") ||
			strings.HasPrefix(line, "include") ||
			strings.HasPrefix(line, "creg") ||
			strings.HasPrefix(line, "barrier") {
			continue
		}
		where := fmt.Sprintf("line %d", idx+1)

		if strings.HasPrefix(line, "qreg") {
			matches := qregRegex.FindStringSubmatch(line)
			if matches == nil {
				return nil, simerr.Validationf(where, "malformed qreg %q", line)
			}
			if sawQreg {
				return nil, simerr.Validationf(where, "only one quantum register is supported")
			}
			c.NumQubits, _ = strconv.Atoi(matches[2])
			sawQreg = true
			continue
		}

		op, err := parseQASMStatement(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		op.Step = len(c.Ops)
		c.Append(op)
	}

	if !sawQreg {
		return nil, simerr.Validationf("qasm", "missing qreg declaration")
	}
	return c, nil
}

func parseQASMStatement(line string) (Operation, error) {
	// Measurement: "measure q[0] -> c[0];"
	if matches := measureRegex.FindStringSubmatch(line); matches != nil {
		target, _ := strconv.Atoi(matches[1])
		return Operation{Type: quantum.GateMeasure, Target: target}, nil
	}

	// Two-qubit gates: cx, cz, swap
	if matches := twoQubitRegex.FindStringSubmatch(line); matches != nil {
		g, ok := quantum.ParseGateType(matches[1])
		q1, _ := strconv.Atoi(matches[2])
		q2, _ := strconv.Atoi(matches[3])
		switch {
		case ok && g.NeedsControl():
			return Operation{Type: g, Target: q2, Control: intPtr(q1)}, nil
		case ok && g.NeedsOther():
			return Operation{Type: g, Target: q1, Other: intPtr(q2)}, nil
		}
		return Operation{}, simerr.Validationf("gate", "unsupported two-qubit gate %q", matches[1])
	}

	// Rotations: rx(pi/2) q[0];
	if matches := singleGateParamRegex.FindStringSubmatch(line); matches != nil {
		g, ok := quantum.ParseGateType(matches[1])
		if !ok || !g.NeedsTheta() {
			return Operation{}, simerr.Validationf("gate", "unsupported parameterised gate %q", matches[1])
		}
		theta, err := ParseAngle(matches[2])
		if err != nil {
			return Operation{}, err
		}
		target, _ := strconv.Atoi(matches[3])
		return Operation{Type: g, Target: target, Theta: floatPtr(theta)}, nil
	}

	// Fixed single-qubit gates
	if matches := singleGateRegex.FindStringSubmatch(line); matches != nil {
		g, ok := quantum.ParseGateType(matches[1])
		if !ok || !g.IsUnitary1Q() || g.NeedsTheta() {
			return Operation{}, simerr.Validationf("gate", "unsupported gate %q", matches[1])
		}
		target, _ := strconv.Atoi(matches[2])
		return Operation{Type: g, Target: target}, nil
	}

	return Operation{}, simerr.Validationf("statement", "cannot parse %q", line)
}
