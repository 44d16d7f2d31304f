package statevector

import (
	"context"

	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
)

// Simulator returns exact expectation values.
type Simulator struct {
	MaxQubits int
}

// NewSimulator returns an exact simulator with the default register cap.
func NewSimulator() *Simulator {
	return &Simulator{MaxQubits: DefaultMaxQubits}
}

// Evaluate prepares the ansatz state and returns <ψ(θ)|H|ψ(θ)>.
func (s *Simulator) Evaluate(ctx context.Context, a ansatz.Ansatz, params []float64, h *hamiltonian.Hamiltonian) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	state, err := prepare(a, params, h, s.maxQubits())
	if err != nil {
		return 0, err
	}
	return state.Expectation(h)
}

// EvaluateBatch evaluates every parameter vector in order.
func (s *Simulator) EvaluateBatch(ctx context.Context, a ansatz.Ansatz, batch [][]float64, h *hamiltonian.Hamiltonian) ([]float64, error) {
	out := make([]float64, len(batch))
	for i, params := range batch {
		e, err := s.Evaluate(ctx, a, params, h)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (s *Simulator) maxQubits() int {
	if s.MaxQubits <= 0 {
		return DefaultMaxQubits
	}
	return s.MaxQubits
}
