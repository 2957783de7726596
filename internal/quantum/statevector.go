// Package quantum implements a dense statevector and the gate kernels that
// act on it.
//
// Qubit 0 is the most significant bit of a basis index: in an N-qubit
// register, basis index i holds qubit q in bit (i >> (N-1-q)) & 1. So for
// N=2, index 2 (binary 10) is the state with qubit 0 set and qubit 1 clear.
package quantum

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

// StateVector holds the 2^N amplitudes of an N-qubit register.
type StateVector struct {
	Amplitudes []complex128
	NumQubits  int
}

// NewStateVector returns |0…0⟩ on numQubits qubits.
func NewStateVector(numQubits int) *StateVector {
	n := 1 << numQubits
	amps := make([]complex128, n)
	amps[0] = 1
	return &StateVector{Amplitudes: amps, NumQubits: numQubits}
}

// Reset returns s to |0…0⟩ without reallocating.
func (s *StateVector) Reset() {
	clear(s.Amplitudes)
	s.Amplitudes[0] = 1
}

// Clone returns a deep copy of s.
func (s *StateVector) Clone() *StateVector {
	amps := make([]complex128, len(s.Amplitudes))
	copy(amps, s.Amplitudes)
	return &StateVector{Amplitudes: amps, NumQubits: s.NumQubits}
}

// Len returns the number of basis states.
func (s *StateVector) Len() int { return len(s.Amplitudes) }

// Mask returns the basis-index bit that carries qubit q.
func (s *StateVector) Mask(q int) int { return 1 << (s.NumQubits - 1 - q) }

// BitOf returns the value of qubit q in basis index i of an n-qubit register.
func BitOf(i, q, n int) int { return (i >> (n - 1 - q)) & 1 }

// BasisLabel renders basis index i as a ket, qubit 0 first: |010⟩.
func BasisLabel(i, n int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for q := 0; q < n; q++ {
		fmt.Fprintf(&sb, "%d", BitOf(i, q, n))
	}
	sb.WriteString("⟩")
	return sb.String()
}

// ApplyMatrix applies the single-qubit unitary m to qubit q in place. Each
// pair of indices differing only in q's bit is rotated once.
func (s *StateVector) ApplyMatrix(q int, m Matrix) {
	n := len(s.Amplitudes)
	bit := s.Mask(q)

	if m.diagonal() {
		for i := 0; i < n; i++ {
			if i&bit == 0 {
				s.Amplitudes[i] *= m[0][0]
			} else {
				s.Amplitudes[i] *= m[1][1]
			}
		}
		return
	}

	for i := 0; i < n; i++ {
		if i&bit == 0 {
			j := i | bit
			a0, a1 := s.Amplitudes[i], s.Amplitudes[j]
			s.Amplitudes[i] = m[0][0]*a0 + m[0][1]*a1
			s.Amplitudes[j] = m[1][0]*a0 + m[1][1]*a1
		}
	}
}

// ApplyCNOT flips target wherever control is set.
func (s *StateVector) ApplyCNOT(control, target int) {
	n := len(s.Amplitudes)
	cBit := s.Mask(control)
	tBit := s.Mask(target)
	for i := 0; i < n; i++ {
		if i&cBit != 0 && i&tBit == 0 {
			j := i | tBit
			s.Amplitudes[i], s.Amplitudes[j] = s.Amplitudes[j], s.Amplitudes[i]
		}
	}
}

// ApplyCZ negates every amplitude where both control and target are set.
func (s *StateVector) ApplyCZ(control, target int) {
	n := len(s.Amplitudes)
	cBit := s.Mask(control)
	tBit := s.Mask(target)
	for i := 0; i < n; i++ {
		if i&cBit != 0 && i&tBit != 0 {
			s.Amplitudes[i] = -s.Amplitudes[i]
		}
	}
}

// ApplySwap exchanges the states of qubits a and b.
func (s *StateVector) ApplySwap(a, b int) {
	n := len(s.Amplitudes)
	aBit := s.Mask(a)
	bBit := s.Mask(b)
	for i := 0; i < n; i++ {
		if i&aBit != 0 && i&bBit == 0 {
			j := (i &^ aBit) | bBit
			s.Amplitudes[i], s.Amplitudes[j] = s.Amplitudes[j], s.Amplitudes[i]
		}
	}
}

// Norm returns the sum of squared magnitudes.
func (s *StateVector) Norm() float64 {
	total := 0.0
	for _, a := range s.Amplitudes {
		total += prob(a)
	}
	return total
}

// Probabilities returns |a_i|^2 for every basis index.
func (s *StateVector) Probabilities() []float64 {
	probs := make([]float64, len(s.Amplitudes))
	for i, a := range s.Amplitudes {
		probs[i] = prob(a)
	}
	return probs
}

// QubitProbability is the marginal distribution of one qubit.
type QubitProbability struct {
	Prob0 float64
	Prob1 float64
}

// QubitProbabilities returns the marginal of every qubit.
func (s *StateVector) QubitProbabilities() []QubitProbability {
	probs := make([]QubitProbability, s.NumQubits)
	for i, a := range s.Amplitudes {
		p := prob(a)
		for q := 0; q < s.NumQubits; q++ {
			if i&s.Mask(q) != 0 {
				probs[q].Prob1 += p
			} else {
				probs[q].Prob0 += p
			}
		}
	}
	return probs
}

// prob is |a|^2, clamped at zero.
func prob(a complex128) float64 {
	p := real(a * cmplx.Conj(a))
	return math.Max(p, 0)
}
