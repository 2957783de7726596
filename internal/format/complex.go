// Package format turns simulation results into their wire representation.
//
// Amplitudes are written as parenthesised complex literals:
//
//	complex := "(" real sign imag "j" ")"
//	real    := ["-"] digits "." digits     (exactly Precision fractional digits)
//	sign    := "+" | "-"
//	imag    := digits "." digits           (magnitude of the imaginary part)
//
// e.g. "(0.707106781187+0.000000000000j)" or "(-1.000000000000-0.500000000000j)".
// Exponent notation is never produced, so the separator is always the last
// '+' or '-' in the literal. Components that round to zero are written
// without a sign.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Precision is the number of fractional digits in each component.
const Precision = 12

// FormatComplex renders z in the fixed-point wire format.
func FormatComplex(z complex128) string {
	re := fixed(real(z))
	im := fixed(math.Abs(imag(z)))

	sign := "+"
	if imag(z) < 0 && !isZeroText(im) {
		sign = "-"
	}

	var sb strings.Builder
	sb.Grow(2*Precision + 10)
	sb.WriteByte('(')
	sb.WriteString(re)
	sb.WriteString(sign)
	sb.WriteString(im)
	sb.WriteString("j)")
	return sb.String()
}

func fixed(v float64) string {
	s := strconv.FormatFloat(v, 'f', Precision, 64)
	if strings.HasPrefix(s, "-") && isZeroText(s[1:]) {
		return s[1:]
	}
	return s
}

func isZeroText(s string) bool {
	return strings.Trim(s, "0.") == ""
}

// ParseComplex is the inverse of FormatComplex. It rejects anything outside
// the grammar, including exponent notation.
func ParseComplex(s string) (complex128, error) {
	body, ok := strings.CutPrefix(s, "(")
	if !ok {
		return 0, fmt.Errorf("complex %q: missing '('", s)
	}
	body, ok = strings.CutSuffix(body, "j)")
	if !ok {
		return 0, fmt.Errorf("complex %q: missing \"j)\" suffix", s)
	}
	if strings.ContainsAny(body, "eE") {
		return 0, fmt.Errorf("complex %q: exponent notation is not allowed", s)
	}

	sep := strings.LastIndexAny(body, "+-")
	if sep <= 0 {
		return 0, fmt.Errorf("complex %q: missing sign before imaginary part", s)
	}

	re, err := parseComponent(body[:sep])
	if err != nil {
		return 0, fmt.Errorf("complex %q: real part: %w", s, err)
	}
	im, err := parseComponent(body[sep+1:])
	if err != nil {
		return 0, fmt.Errorf("complex %q: imaginary part: %w", s, err)
	}
	if body[sep] == '-' {
		im = -im
	}
	return complex(re, im), nil
}

func parseComponent(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty component")
	}
	if !strings.Contains(s, ".") {
		return 0, fmt.Errorf("component %q is not fixed-point", s)
	}
	return strconv.ParseFloat(s, 64)
}
