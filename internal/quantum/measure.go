package quantum

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ErrZeroProbability is returned when a collapse would divide by a zero
// outcome probability.
var ErrZeroProbability = errors.New("quantum: measured outcome has zero probability")

// Source is the random stream consulted by Measure and Sample. *rand.Rand
// satisfies it.
type Source interface {
	Float64() float64
}

// OutcomeProbabilities returns the probability of reading 0 and 1 on qubit q.
func (s *StateVector) OutcomeProbabilities(q int) (p0, p1 float64) {
	bit := s.Mask(q)
	for i, a := range s.Amplitudes {
		if i&bit != 0 {
			p1 += prob(a)
		} else {
			p0 += prob(a)
		}
	}
	return p0, p1
}

// Measure collapses qubit q. The outcome is drawn from rng with the Born
// probabilities, amplitudes inconsistent with it are zeroed and the rest are
// renormalised.
func (s *StateVector) Measure(q int, rng Source) (int, error) {
	p0, p1 := s.OutcomeProbabilities(q)
	total := p0 + p1

	outcome := 0
	if total > 0 && rng.Float64() < p1/total {
		outcome = 1
	}

	p := p0
	if outcome == 1 {
		p = p1
	}
	if p <= 0 {
		return outcome, ErrZeroProbability
	}

	norm := complex(math.Sqrt(p), 0)
	bit := s.Mask(q)
	for i := range s.Amplitudes {
		if (i&bit != 0) != (outcome == 1) {
			s.Amplitudes[i] = 0
		} else {
			s.Amplitudes[i] /= norm
		}
	}
	return outcome, nil
}

// Sample draws one basis index from the distribution |a_i|^2 without
// modifying s. Drawing many indices from the same state is cheaper through
// NewSampler.
func (s *StateVector) Sample(rng Source) int {
	return NewSampler(s).Draw(rng)
}

// Sampler draws basis indices from a fixed distribution in O(log 2^N) per
// draw. It does not observe later changes to the state it was built from.
type Sampler struct {
	cdf  []float64
	last int // highest index with non-zero probability
}

// NewSampler builds the cumulative distribution of s in a single pass.
func NewSampler(s *StateVector) *Sampler {
	probs := s.Probabilities()
	last := 0
	for i, p := range probs {
		if p > 0 {
			last = i
		}
	}
	return &Sampler{cdf: floats.CumSum(probs, probs), last: last}
}

// Draw returns the smallest index whose cumulative probability exceeds a
// uniform draw scaled to the total, so zero-probability indices are never
// returned.
func (sm *Sampler) Draw(rng Source) int {
	n := len(sm.cdf)
	r := rng.Float64() * sm.cdf[n-1]
	i := sort.Search(n, func(i int) bool { return sm.cdf[i] > r })
	if i >= n {
		return sm.last
	}
	return i
}
