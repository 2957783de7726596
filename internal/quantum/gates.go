package quantum

import (
	"math"
	"math/cmplx"
	"strings"
)

// GateType is the closed set of operations the simulator understands.
type GateType uint8

const (
	GateInvalid GateType = iota
	GateI
	GateX
	GateY
	GateZ
	GateH
	GateS
	GateSdg
	GateT
	GateTdg
	GateRX
	GateRY
	GateRZ
	GateCNOT
	GateCZ
	GateSwap
	GateMeasure
)

var gateNames = [...]string{
	GateInvalid: "INVALID",
	GateI:       "I",
	GateX:       "X",
	GateY:       "Y",
	GateZ:       "Z",
	GateH:       "H",
	GateS:       "S",
	GateSdg:     "SDG",
	GateT:       "T",
	GateTdg:     "TDG",
	GateRX:      "RX",
	GateRY:      "RY",
	GateRZ:      "RZ",
	GateCNOT:    "CNOT",
	GateCZ:      "CZ",
	GateSwap:    "SWAP",
	GateMeasure: "MEASURE",
}

// gateAliases maps every accepted (upper-cased) tag to its gate.
var gateAliases = map[string]GateType{
	"I":       GateI,
	"ID":      GateI,
	"X":       GateX,
	"Y":       GateY,
	"Z":       GateZ,
	"H":       GateH,
	"S":       GateS,
	"SDG":     GateSdg,
	"S†":      GateSdg,
	"T":       GateT,
	"TDG":     GateTdg,
	"T†":      GateTdg,
	"RX":      GateRX,
	"RY":      GateRY,
	"RZ":      GateRZ,
	"CNOT":    GateCNOT,
	"CX":      GateCNOT,
	"CZ":      GateCZ,
	"SWAP":    GateSwap,
	"MEASURE": GateMeasure,
	"M":       GateMeasure,
}

func (g GateType) String() string {
	if int(g) < len(gateNames) {
		return gateNames[g]
	}
	return gateNames[GateInvalid]
}

// ParseGateType resolves a type tag such as "h", "CX" or "Sdg".
// Unrecognised tags report false; they are never treated as a no-op.
func ParseGateType(tag string) (GateType, bool) {
	g, ok := gateAliases[strings.ToUpper(strings.TrimSpace(tag))]
	return g, ok
}

// Valid reports whether g is a member of the catalogue.
func (g GateType) Valid() bool { return g > GateInvalid && g <= GateMeasure }

// NeedsControl reports whether g acts on a control qubit.
func (g GateType) NeedsControl() bool { return g == GateCNOT || g == GateCZ }

// NeedsOther reports whether g acts on a second, symmetric qubit.
func (g GateType) NeedsOther() bool { return g == GateSwap }

// NeedsTheta reports whether g is a rotation taking an angle.
func (g GateType) NeedsTheta() bool { return g == GateRX || g == GateRY || g == GateRZ }

// IsUnitary1Q reports whether g is a single-qubit unitary described by a Matrix.
func (g GateType) IsUnitary1Q() bool { return g >= GateI && g <= GateRZ }

// Matrix is a 2x2 single-qubit unitary in row-major order acting on (|0⟩, |1⟩).
type Matrix [2][2]complex128

var (
	matI = Matrix{{1, 0}, {0, 1}}
	matX = Matrix{{0, 1}, {1, 0}}
	matY = Matrix{{0, -1i}, {1i, 0}}
	matZ = Matrix{{1, 0}, {0, -1}}
	matH = Matrix{
		{complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0)},
		{complex(1/math.Sqrt2, 0), complex(-1/math.Sqrt2, 0)},
	}
	matS   = Matrix{{1, 0}, {0, 1i}}
	matSdg = Matrix{{1, 0}, {0, -1i}}
	matT   = Matrix{{1, 0}, {0, cmplx.Exp(complex(0, math.Pi/4))}}
	matTdg = Matrix{{1, 0}, {0, cmplx.Exp(complex(0, -math.Pi/4))}}
)

// SingleQubitMatrix returns the unitary for g. theta is only read for rotations.
func SingleQubitMatrix(g GateType, theta float64) (Matrix, bool) {
	switch g {
	case GateI:
		return matI, true
	case GateX:
		return matX, true
	case GateY:
		return matY, true
	case GateZ:
		return matZ, true
	case GateH:
		return matH, true
	case GateS:
		return matS, true
	case GateSdg:
		return matSdg, true
	case GateT:
		return matT, true
	case GateTdg:
		return matTdg, true
	case GateRX:
		return RX(theta), true
	case GateRY:
		return RY(theta), true
	case GateRZ:
		return RZ(theta), true
	}
	return Matrix{}, false
}

// RX returns the X-axis rotation by theta radians.
func RX(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	return Matrix{{c, js}, {js, c}}
}

// RY returns the Y-axis rotation by theta radians.
func RY(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return Matrix{{c, -s}, {s, c}}
}

// RZ returns the Z-axis rotation by theta radians.
func RZ(theta float64) Matrix {
	phase := cmplx.Exp(complex(0, theta/2))
	return Matrix{{cmplx.Conj(phase), 0}, {0, phase}}
}

func (m Matrix) diagonal() bool { return m[0][1] == 0 && m[1][0] == 0 }
