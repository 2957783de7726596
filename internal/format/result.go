package format

import (
	"math"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gonum.org/v1/gonum/floats"

	"qircuitsim/internal/engine"
	"qircuitsim/internal/quantum"
	"qircuitsim/internal/simerr"
)

// SumTolerance is how far reported probabilities may sum from 1.
const SumTolerance = 1e-6

// InternalErrorMessage replaces the text of internal errors on the wire.
const InternalErrorMessage = "internal simulation error"

// Response is the JSON body returned for a simulation request. On success
// Probabilities is set and Statevector is set only for analytic runs; on
// failure only Error and Code are set.
type Response struct {
	Probabilities []float64 `json:"probabilities,omitempty"`
	Statevector   []string  `json:"statevector,omitempty"`
	Error         string    `json:"error,omitempty"`
	Code          string    `json:"code,omitempty"`
}

// Probabilities returns the per-basis probabilities of res. Sampled results
// already carry them; analytic ones are derived as |a_i|², with rounding
// noise below zero clamped away.
func Probabilities(res *engine.Result) ([]float64, error) {
	var probs []float64
	if res.Sampled() {
		probs = res.Probabilities
	} else {
		if res.State == nil {
			return nil, simerr.Internalf(nil, "probabilities", "analytic result has no state")
		}
		probs = res.State.Probabilities()
	}

	for i, p := range probs {
		if p < 0 {
			probs[i] = 0
		}
	}
	if drift := math.Abs(floats.Sum(probs) - 1); drift > SumTolerance {
		return nil, simerr.Internalf(nil, "probabilities", "sum drifted from 1 by %.3g", drift)
	}
	return probs, nil
}

// Statevector renders every amplitude of s with FormatComplex.
func Statevector(s *quantum.StateVector) []string {
	out := make([]string, len(s.Amplitudes))
	for i, a := range s.Amplitudes {
		out[i] = FormatComplex(a)
	}
	return out
}

// NewResponse builds the success body for res.
func NewResponse(res *engine.Result) (Response, error) {
	probs, err := Probabilities(res)
	if err != nil {
		return Response{}, err
	}
	resp := Response{Probabilities: probs}
	if !res.Sampled() {
		resp.Statevector = Statevector(res.State)
	}
	return resp, nil
}

// ErrorResponse builds the failure body for err. Validation and resource
// errors keep their message; anything else is reported generically.
func ErrorResponse(err error) Response {
	switch simerr.KindOf(err) {
	case simerr.Validation, simerr.ResourceLimit:
		return Response{Error: err.Error(), Code: simerr.Code(err)}
	default:
		return Response{Error: InternalErrorMessage, Code: simerr.CodeInternalError}
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5C6370"))
)

// Table renders res as a per-basis listing. Basis states with zero
// probability are skipped unless all is set.
func Table(res *engine.Result, all bool) (string, error) {
	probs, err := Probabilities(res)
	if err != nil {
		return "", err
	}

	headers := []string{"Basis", "Probability", "Amplitude"}
	if res.Sampled() {
		headers = []string{"Basis", "Probability", "Count"}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for i, p := range probs {
		if p == 0 && !all {
			continue
		}
		last := strconv.Itoa(res.Counts[i])
		if !res.Sampled() {
			last = FormatComplex(res.State.Amplitudes[i])
		}
		t.Row(quantum.BasisLabel(i, res.NumQubits), strconv.FormatFloat(p, 'f', 6, 64), last)
	}
	return t.String(), nil
}
