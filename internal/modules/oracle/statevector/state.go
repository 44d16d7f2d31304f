// Package statevector is an in-process reference backend: it simulates ansatz
// circuits on a dense complex amplitude vector and evaluates Pauli-sum
// expectation values either exactly or with finite-shot noise.
package statevector

import (
	"fmt"
	"math"

	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
)

// DefaultMaxQubits caps the register the simulator will allocate (2^n amplitudes).
const DefaultMaxQubits = 24

// State is a normalized amplitude vector; index bit q is qubit q.
type State struct {
	NumQubits  int
	Amplitudes []complex128
}

// NewState returns |0...0>.
func NewState(numQubits int) *State {
	amps := make([]complex128, 1<<uint(numQubits))
	amps[0] = 1
	return &State{NumQubits: numQubits, Amplitudes: amps}
}

// Run prepares |0...0> and applies every gate of c.
func Run(c *ansatz.Circuit) (*State, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s := NewState(c.NumQubits)
	for _, g := range c.Gates {
		s.Apply(g)
	}
	return s, nil
}

// Apply applies a validated gate in place.
func (s *State) Apply(g ansatz.Gate) {
	switch g.Name {
	case ansatz.GateX:
		s.applyX(g.Qubits[0])
	case ansatz.GateH:
		s.applyH(g.Qubits[0])
	case ansatz.GateRX:
		s.applyRX(g.Qubits[0], g.Params[0])
	case ansatz.GateRY:
		s.applyRY(g.Qubits[0], g.Params[0])
	case ansatz.GateRZ:
		s.applyRZ(g.Qubits[0], g.Params[0])
	case ansatz.GateCX:
		s.applyCX(g.Qubits[0], g.Qubits[1])
	case ansatz.GateCZ:
		s.applyCZ(g.Qubits[0], g.Qubits[1])
	}
}

// pairs calls fn(i, j) for every index pair differing only in bit q, i < j.
func (s *State) pairs(q int, fn func(i, j int)) {
	bit := 1 << uint(q)
	for i := range s.Amplitudes {
		if i&bit == 0 {
			fn(i, i|bit)
		}
	}
}

func (s *State) applyX(q int) {
	a := s.Amplitudes
	s.pairs(q, func(i, j int) { a[i], a[j] = a[j], a[i] })
}

func (s *State) applyH(q int) {
	a := s.Amplitudes
	r := complex(1/math.Sqrt2, 0)
	s.pairs(q, func(i, j int) {
		a[i], a[j] = r*(a[i]+a[j]), r*(a[i]-a[j])
	})
}

func (s *State) applyRX(q int, theta float64) {
	a := s.Amplitudes
	c := complex(math.Cos(theta/2), 0)
	ms := complex(0, -math.Sin(theta/2))
	s.pairs(q, func(i, j int) {
		a[i], a[j] = c*a[i]+ms*a[j], ms*a[i]+c*a[j]
	})
}

func (s *State) applyRY(q int, theta float64) {
	a := s.Amplitudes
	c := complex(math.Cos(theta/2), 0)
	sn := complex(math.Sin(theta/2), 0)
	s.pairs(q, func(i, j int) {
		a[i], a[j] = c*a[i]-sn*a[j], sn*a[i]+c*a[j]
	})
}

func (s *State) applyRZ(q int, theta float64) {
	a := s.Amplitudes
	lo := complex(math.Cos(theta/2), -math.Sin(theta/2))
	hi := complex(math.Cos(theta/2), math.Sin(theta/2))
	s.pairs(q, func(i, j int) {
		a[i] *= lo
		a[j] *= hi
	})
}

func (s *State) applyCX(control, target int) {
	a := s.Amplitudes
	cBit := 1 << uint(control)
	s.pairs(target, func(i, j int) {
		if i&cBit != 0 {
			a[i], a[j] = a[j], a[i]
		}
	})
}

func (s *State) applyCZ(control, target int) {
	cBit := 1 << uint(control)
	tBit := 1 << uint(target)
	for i := range s.Amplitudes {
		if i&cBit != 0 && i&tBit != 0 {
			s.Amplitudes[i] = -s.Amplitudes[i]
		}
	}
}

// Norm returns <ψ|ψ>.
func (s *State) Norm() float64 {
	var n float64
	for _, a := range s.Amplitudes {
		n += real(a)*real(a) + imag(a)*imag(a)
	}
	return n
}

// Probability returns |<index|ψ>|^2.
func (s *State) Probability(index int) float64 {
	a := s.Amplitudes[index]
	return real(a)*real(a) + imag(a)*imag(a)
}

// TermExpectation returns <ψ|P|ψ> for the Pauli string of t (coefficient excluded).
func (s *State) TermExpectation(t hamiltonian.PauliTerm) float64 {
	var sum complex128
	for i, amp := range s.Amplitudes {
		if amp == 0 {
			continue
		}
		target, phase := t.Apply(uint64(i))
		b := s.Amplitudes[target]
		sum += complex(real(b), -imag(b)) * phase * amp
	}
	return real(sum)
}

// Expectation returns <ψ|H|ψ>.
func (s *State) Expectation(h *hamiltonian.Hamiltonian) (float64, error) {
	if h.NumQubits() != s.NumQubits {
		return 0, fmt.Errorf("hamiltonian acts on %d qubits, state has %d", h.NumQubits(), s.NumQubits)
	}
	var energy float64
	for _, t := range h.Terms() {
		energy += t.Coefficient * s.TermExpectation(t)
	}
	return energy, nil
}

func prepare(a ansatz.Ansatz, params []float64, h *hamiltonian.Hamiltonian, maxQubits int) (*State, error) {
	if a.NumQubits() != h.NumQubits() {
		return nil, fmt.Errorf("ansatz acts on %d qubits, hamiltonian on %d", a.NumQubits(), h.NumQubits())
	}
	if a.NumQubits() > maxQubits {
		return nil, fmt.Errorf("%d qubits exceeds simulator limit of %d", a.NumQubits(), maxQubits)
	}
	c, err := a.Build(params)
	if err != nil {
		return nil, err
	}
	return Run(c)
}
