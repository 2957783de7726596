package engine

import (
	"errors"

	"qircuitsim/internal/circuit"
	"qircuitsim/internal/quantum"
	"qircuitsim/internal/simerr"
)

// applyFunc applies one validated operation to s. It returns the measured
// bit for MEASURE and -1 for everything else.
type applyFunc func(s *quantum.StateVector, op circuit.Operation, rng quantum.Source) (int, error)

func dispatchTable() map[quantum.GateType]applyFunc {
	table := map[quantum.GateType]applyFunc{
		quantum.GateCNOT:    applyCNOT,
		quantum.GateCZ:      applyCZ,
		quantum.GateSwap:    applySwap,
		quantum.GateMeasure: applyMeasure,
	}
	for g := quantum.GateI; g.IsUnitary1Q(); g++ {
		table[g] = applyUnitary
	}
	return table
}

func applyUnitary(s *quantum.StateVector, op circuit.Operation, _ quantum.Source) (int, error) {
	theta := 0.0
	if op.Theta != nil {
		theta = *op.Theta
	}
	m, ok := quantum.SingleQubitMatrix(op.Type, theta)
	if !ok {
		return -1, simerr.Internalf(nil, "apply", "no matrix for %s", op.Type)
	}
	s.ApplyMatrix(op.Target, m)
	return -1, nil
}

func applyCNOT(s *quantum.StateVector, op circuit.Operation, _ quantum.Source) (int, error) {
	s.ApplyCNOT(*op.Control, op.Target)
	return -1, nil
}

func applyCZ(s *quantum.StateVector, op circuit.Operation, _ quantum.Source) (int, error) {
	s.ApplyCZ(*op.Control, op.Target)
	return -1, nil
}

func applySwap(s *quantum.StateVector, op circuit.Operation, _ quantum.Source) (int, error) {
	s.ApplySwap(op.Target, *op.Other)
	return -1, nil
}

func applyMeasure(s *quantum.StateVector, op circuit.Operation, rng quantum.Source) (int, error) {
	bit, err := s.Measure(op.Target, rng)
	if errors.Is(err, quantum.ErrZeroProbability) {
		return -1, simerr.Internalf(err, "measure", "qubit %d", op.Target)
	}
	if err != nil {
		return -1, err
	}
	return bit, nil
}
