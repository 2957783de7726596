package tui

import (
	"fmt"
	"math"
	"strings"

	"qircuitsim/internal/circuit"
	"qircuitsim/internal/format"
	"qircuitsim/internal/quantum"
)

// ──────────────────────────── Rendering helpers ────────────────────────────

// padCenter centres a string within the given width.
func padCenter(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return string([]rune(s)[:width])
	}
	total := width - n
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// gateDisplayName returns a short display name for a gate type.
func gateDisplayName(g quantum.GateType) string {
	switch g {
	case quantum.GateMeasure:
		return "M"
	case quantum.GateSdg:
		return "S†"
	case quantum.GateTdg:
		return "T†"
	default:
		return g.String()
	}
}

// controlSymbol returns the wire symbol for the first qubit of a two-qubit gate.
func controlSymbol(g quantum.GateType) string {
	if g == quantum.GateSwap {
		return "×"
	}
	return "●"
}

// targetSymbol returns the wire symbol for the second qubit of a two-qubit gate.
func targetSymbol(g quantum.GateType) string {
	switch g {
	case quantum.GateCZ:
		return "●"
	case quantum.GateSwap:
		return "×"
	default:
		return "⊕"
	}
}

// span returns the first and second qubit of a two-qubit operation.
func span(op circuit.Operation) (first, second int, ok bool) {
	switch {
	case op.Control != nil:
		return *op.Control, op.Target, true
	case op.Other != nil:
		return op.Target, *op.Other, true
	}
	return 0, 0, false
}

// cellSymbol is what op draws on qubit q's wire: a gate label, a connector
// symbol, "┼" where a two-qubit link crosses, or "" for a bare wire.
func cellSymbol(op circuit.Operation, q int) string {
	first, second, two := span(op)
	if !two {
		if op.Target == q {
			return gateDisplayName(op.Type)
		}
		return ""
	}
	switch {
	case q == first:
		return controlSymbol(op.Type)
	case q == second:
		return targetSymbol(op.Type)
	case q > min(first, second) && q < max(first, second):
		return "┼"
	}
	return ""
}

// renderCell draws one operation column on a wire, exactly cellW wide.
func renderCell(sym string) string {
	if sym == "" {
		return strings.Repeat("─", cellW)
	}
	n := len([]rune(sym))
	left := (cellW - n) / 2
	right := cellW - n - left
	return strings.Repeat("─", left) + sym + strings.Repeat("─", right)
}

// ──────────────────────────── Panel rendering ────────────────────────────

// renderCircuitPanel draws the wires with executed operations highlighted
// and pending ones dimmed.
func (m Model) renderCircuitPanel(width int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Circuit"))
	sb.WriteString("\n\n")

	ops := m.circuit.Ops
	maxCols := max((width-labelVisualW-4)/cellW, 1)
	// Snapshot k shows the state after op k-1.
	applied := m.cursor - 1

	start := 0
	if applied >= maxCols {
		start = applied - maxCols + 1
	}
	end := min(start+maxCols, len(ops))

	if start > 0 {
		fmt.Fprintf(&sb, "  ◀ showing ops %d–%d\n", start, end-1)
	}

	header := strings.Repeat(" ", labelVisualW)
	for i := start; i < end; i++ {
		header += dimStyle.Render(padCenter(fmt.Sprintf("%d", i), cellW))
	}
	sb.WriteString(header + "\n")

	for q := 0; q < m.circuit.NumQubits; q++ {
		line := qubitLabelStyle.Render(fmt.Sprintf("%-5s", fmt.Sprintf("q[%d]", q))) + "──"
		for i := start; i < end; i++ {
			cell := renderCell(cellSymbol(ops[i], q))
			switch {
			case i == applied:
				line += cursorStyle.Render(cell)
			case i < applied:
				line += gateStyle.Render(cell)
			default:
				line += dimStyle.Render(cell)
			}
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\n  " + m.describeStep())
	return circuitStyle.Width(width).Render(sb.String())
}

// describeStep is the status line for the current snapshot.
func (m Model) describeStep() string {
	snap := m.current()
	total := len(m.snaps) - 1
	if snap.Op == nil {
		return fmt.Sprintf("Step 0/%d: initial state %s", total, quantum.BasisLabel(0, m.circuit.NumQubits))
	}

	op := *snap.Op
	desc := fmt.Sprintf("Step %d/%d: %s", m.cursor, total, activeGateStyle.Render(op.Type.String()))
	switch {
	case op.Control != nil:
		desc += fmt.Sprintf(" control q[%d] → target q[%d]", *op.Control, op.Target)
	case op.Other != nil:
		desc += fmt.Sprintf(" q[%d] ↔ q[%d]", op.Target, *op.Other)
	default:
		desc += fmt.Sprintf(" on q[%d]", op.Target)
	}
	if op.Theta != nil {
		desc += fmt.Sprintf(" θ=%s", circuit.FormatAngle(*op.Theta))
	}
	if snap.Outcome >= 0 {
		desc += "  " + measureStyle.Render(fmt.Sprintf("measured %d", snap.Outcome))
	}
	return desc
}

// rows returns the basis indices listed in the state panel.
func (m Model) rows() []int {
	state := m.current().State
	rows := make([]int, 0, state.Len())
	for i, a := range state.Amplitudes {
		if m.showZero || a != 0 {
			rows = append(rows, i)
		}
	}
	return rows
}

// renderStatePanel lists amplitude and probability per basis state.
func (m Model) renderStatePanel(width, height int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Statevector"))
	sb.WriteString("\n\n")

	state := m.current().State
	rows := m.rows()
	visible := max(height-4, 1)
	start := min(m.offset, max(len(rows)-1, 0))
	end := min(start+visible, len(rows))

	for _, i := range rows[start:end] {
		a := state.Amplitudes[i]
		p := real(a)*real(a) + imag(a)*imag(a)
		filled := int(math.Round(p * barW))
		bar := barStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", barW-filled))
		fmt.Fprintf(&sb, "%s %s %6.2f%%  %s\n",
			qubitLabelStyle.Render(quantum.BasisLabel(i, state.NumQubits)),
			bar, p*100, dimStyle.Render(format.FormatComplex(a)))
	}
	if end < len(rows) {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  … %d more", len(rows)-end)))
	}

	return stateStyle.Width(width).Height(height).Render(sb.String())
}

// renderMarginalPanel shows P(1) for every qubit.
func (m Model) renderMarginalPanel(width, height int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Qubits"))
	sb.WriteString("\n\n")

	const w = 10
	for q, mp := range m.current().State.QubitProbabilities() {
		filled := int(math.Round(mp.Prob1 * w))
		fmt.Fprintf(&sb, "%s P(1)=%.3f %s\n",
			qubitLabelStyle.Render(fmt.Sprintf("q[%d]", q)),
			mp.Prob1,
			barStyle.Render(strings.Repeat("█", filled))+dimStyle.Render(strings.Repeat("░", w-filled)))
	}

	return marginalStyle.Width(width).Height(height).Render(sb.String())
}
