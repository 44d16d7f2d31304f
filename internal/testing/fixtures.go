package testing

import (
	"math"
	"testing"

	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
)

// Quadratic is Σ (θ_i − c_i)² + offset, minimized at center.
func Quadratic(center []float64, offset float64) EnergyFunc {
	c := append([]float64(nil), center...)
	return func(params []float64) float64 {
		sum := offset
		for i, p := range params {
			d := p - c[i]
			sum += d * d
		}
		return sum
	}
}

// Sinusoid is −Σ cos(θ_i − c_i) + offset: the landscape of independent single
// rotations, for which the parameter-shift rule is exact.
func Sinusoid(center []float64, offset float64) EnergyFunc {
	c := append([]float64(nil), center...)
	return func(params []float64) float64 {
		sum := offset
		for i, p := range params {
			sum -= math.Cos(p - c[i])
		}
		return sum
	}
}

// IsingProblem returns the 3-site open transverse-field Ising chain
// (J=1, h=0.5) and a depth-2 hardware-efficient ansatz for it.
func IsingProblem(t *testing.T) (*hamiltonian.Hamiltonian, *ansatz.HardwareEfficient) {
	t.Helper()
	h, err := hamiltonian.NewIsing(3, 1.0, 0.5, false)
	if err != nil {
		t.Fatalf("Failed to build Ising hamiltonian: %v", err)
	}
	a, err := ansatz.NewHardwareEfficient(3, 2)
	if err != nil {
		t.Fatalf("Failed to build ansatz: %v", err)
	}
	return h, a
}

// H2Problem returns the reduced H2 Hamiltonian and its one-parameter ansatz.
func H2Problem(t *testing.T) (*hamiltonian.Hamiltonian, *ansatz.ExcitationAnsatz) {
	t.Helper()
	h, err := hamiltonian.NewH2()
	if err != nil {
		t.Fatalf("Failed to build H2 hamiltonian: %v", err)
	}
	return h, ansatz.NewH2Excitation()
}

// RotationProblem is one qubit, RY(θ) on |0>, H = a·Z + b·X: a single
// rotation with a diagonal term. E(θ) = a cos θ + b sin θ.
func RotationProblem(t *testing.T, a, b float64) (*hamiltonian.Hamiltonian, *ansatz.HardwareEfficient) {
	t.Helper()
	h, err := hamiltonian.New(1)
	if err != nil {
		t.Fatalf("Failed to build hamiltonian: %v", err)
	}
	if err := h.AddTerm(a, hamiltonian.PauliZ(0)); err != nil {
		t.Fatalf("Failed to add term: %v", err)
	}
	if err := h.AddTerm(b, hamiltonian.PauliX(0)); err != nil {
		t.Fatalf("Failed to add term: %v", err)
	}
	rot, err := ansatz.NewHardwareEfficient(1, 1)
	if err != nil {
		t.Fatalf("Failed to build ansatz: %v", err)
	}
	return h, rot
}
