package ansatz

import (
	"fmt"
	"math"
)

// HardwareEfficient stacks depth layers of one RY per qubit followed by a
// linear CX chain (0→1, 1→2, ...). Parameters are layer-major:
// params[layer*numQubits + qubit].
type HardwareEfficient struct {
	numQubits int
	depth     int
}

// NewHardwareEfficient validates the shape and returns the ansatz.
func NewHardwareEfficient(numQubits, depth int) (*HardwareEfficient, error) {
	if numQubits <= 0 {
		return nil, fmt.Errorf("hardware-efficient ansatz needs at least one qubit, got %d", numQubits)
	}
	if depth <= 0 {
		return nil, fmt.Errorf("hardware-efficient ansatz needs depth >= 1, got %d", depth)
	}
	return &HardwareEfficient{numQubits: numQubits, depth: depth}, nil
}

func (a *HardwareEfficient) Name() string       { return "hardware-efficient" }
func (a *HardwareEfficient) NumQubits() int     { return a.numQubits }
func (a *HardwareEfficient) Depth() int         { return a.depth }
func (a *HardwareEfficient) NumParameters() int { return a.numQubits * a.depth }

// InitialParameters draws every angle uniformly from [-π, π).
func (a *HardwareEfficient) InitialParameters(seed uint64) []float64 {
	return uniform(a.NumParameters(), -math.Pi, math.Pi, seed)
}

// Build lays out the circuit for params.
func (a *HardwareEfficient) Build(params []float64) (*Circuit, error) {
	if err := ValidateParameters(a, params); err != nil {
		return nil, err
	}

	c := NewCircuit(a.numQubits)
	for layer := 0; layer < a.depth; layer++ {
		for q := 0; q < a.numQubits; q++ {
			c.RY(params[layer*a.numQubits+q], q)
		}
		for q := 0; q+1 < a.numQubits; q++ {
			c.CX(q, q+1)
		}
	}
	return c, nil
}
