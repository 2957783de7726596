package circuit

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"qircuitsim/internal/simerr"
)

// ParseAngle reads a rotation angle in radians. It accepts a decimal number
// or a multiple of pi written as [-][k[*]]pi[/d], for example "pi/2",
// "3*pi/4", "2pi" or "-pi". Case and surrounding spaces are ignored.
func ParseAngle(s string) (float64, error) {
	expr := strings.ToLower(strings.TrimSpace(s))
	if expr == "" {
		return 0, simerr.Validationf("theta", "invalid angle: empty expression")
	}

	var (
		v   float64
		err error
	)
	if strings.Contains(expr, "pi") {
		v, err = parsePiMultiple(expr)
	} else {
		v, err = strconv.ParseFloat(expr, 64)
	}
	if err != nil {
		return 0, simerr.Validationf("theta", "invalid angle %q: %v", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, simerr.Validationf("theta", "invalid angle %q: not finite", s)
	}
	return v, nil
}

func parsePiMultiple(expr string) (float64, error) {
	sign := 1.0
	if rest, ok := strings.CutPrefix(expr, "-"); ok {
		sign, expr = -1, rest
	}

	num, den, hasDen := strings.Cut(expr, "/")
	coeff, ok := strings.CutSuffix(strings.TrimSpace(num), "pi")
	if !ok {
		return 0, fmt.Errorf("pi must end the numerator")
	}
	coeff = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(coeff), "*"))

	k := 1.0
	if coeff != "" {
		var err error
		if k, err = strconv.ParseFloat(coeff, 64); err != nil {
			return 0, fmt.Errorf("bad coefficient %q", coeff)
		}
	}

	d := 1.0
	if hasDen {
		var err error
		d, err = strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil || d == 0 {
			return 0, fmt.Errorf("bad denominator %q", den)
		}
	}
	return sign * k * math.Pi / d, nil
}

// piDenominators are tried in order, so the first match is in lowest terms.
var piDenominators = []int{1, 2, 3, 4, 6, 8}

// FormatAngle renders val as k*pi/d when it is within 1e-10 of such a
// multiple with |k| ≤ 2d, and as the shortest round-tripping decimal
// otherwise. ParseAngle reads both forms back.
func FormatAngle(val float64) string {
	for _, d := range piDenominators {
		k := math.Round(val * float64(d) / math.Pi)
		if k == 0 || math.Abs(k) > float64(2*d) {
			continue
		}
		if math.Abs(val-k*math.Pi/float64(d)) > 1e-10 {
			continue
		}

		var sb strings.Builder
		if k < 0 {
			sb.WriteByte('-')
		}
		if n := int(math.Abs(k)); n != 1 {
			fmt.Fprintf(&sb, "%d*", n)
		}
		sb.WriteString("pi")
		if d != 1 {
			fmt.Fprintf(&sb, "/%d", d)
		}
		return sb.String()
	}
	return strconv.FormatFloat(val, 'g', -1, 64)
}
