package ansatz

import (
	"fmt"
	"strings"
)

// Gate names understood by the reference simulator.
const (
	GateX  = "X"
	GateH  = "H"
	GateRX = "RX"
	GateRY = "RY"
	GateRZ = "RZ"
	GateCX = "CX"
	GateCZ = "CZ"
)

// Gate is one backend-neutral operation. For controlled gates Qubits is
// [control, target].
type Gate struct {
	Name   string    `json:"name"`
	Qubits []int     `json:"qubits"`
	Params []float64 `json:"params,omitempty"`
}

// Circuit is an ordered gate list on a fixed register.
type Circuit struct {
	NumQubits int    `json:"num_qubits"`
	Gates     []Gate `json:"gates"`
}

// NewCircuit returns an empty circuit on numQubits qubits.
func NewCircuit(numQubits int) *Circuit {
	return &Circuit{NumQubits: numQubits}
}

func (c *Circuit) add(name string, params []float64, qubits ...int) {
	c.Gates = append(c.Gates, Gate{Name: name, Qubits: qubits, Params: params})
}

// X appends a Pauli-X on q.
func (c *Circuit) X(q int) { c.add(GateX, nil, q) }

// H appends a Hadamard on q.
func (c *Circuit) H(q int) { c.add(GateH, nil, q) }

// RX appends exp(-iθX/2) on q.
func (c *Circuit) RX(theta float64, q int) { c.add(GateRX, []float64{theta}, q) }

// RY appends exp(-iθY/2) on q.
func (c *Circuit) RY(theta float64, q int) { c.add(GateRY, []float64{theta}, q) }

// RZ appends exp(-iθZ/2) on q.
func (c *Circuit) RZ(theta float64, q int) { c.add(GateRZ, []float64{theta}, q) }

// CX appends a controlled-X.
func (c *Circuit) CX(control, target int) { c.add(GateCX, nil, control, target) }

// CZ appends a controlled-Z.
func (c *Circuit) CZ(control, target int) { c.add(GateCZ, nil, control, target) }

// Validate checks gate arity and qubit ranges.
func (c *Circuit) Validate() error {
	for i, g := range c.Gates {
		wantQubits, wantParams := 1, 0
		switch g.Name {
		case GateX, GateH:
		case GateRX, GateRY, GateRZ:
			wantParams = 1
		case GateCX, GateCZ:
			wantQubits = 2
		default:
			return fmt.Errorf("gate %d: unknown gate %q", i, g.Name)
		}
		if len(g.Qubits) != wantQubits || len(g.Params) != wantParams {
			return fmt.Errorf("gate %d (%s): want %d qubits and %d params, got %d and %d",
				i, g.Name, wantQubits, wantParams, len(g.Qubits), len(g.Params))
		}
		for _, q := range g.Qubits {
			if q < 0 || q >= c.NumQubits {
				return fmt.Errorf("gate %d (%s): qubit %d out of range for %d qubits", i, g.Name, q, c.NumQubits)
			}
		}
		if wantQubits == 2 && g.Qubits[0] == g.Qubits[1] {
			return fmt.Errorf("gate %d (%s): control and target are both %d", i, g.Name, g.Qubits[0])
		}
	}
	return nil
}

// Count returns how many gates carry the given name.
func (c *Circuit) Count(name string) int {
	n := 0
	for _, g := range c.Gates {
		if g.Name == name {
			n++
		}
	}
	return n
}

func (c *Circuit) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "circuit(%d qubits)", c.NumQubits)
	for _, g := range c.Gates {
		sb.WriteString("\n  ")
		sb.WriteString(g.Name)
		for _, p := range g.Params {
			fmt.Fprintf(&sb, "(%.4f)", p)
		}
		for _, q := range g.Qubits {
			fmt.Fprintf(&sb, " q%d", q)
		}
	}
	return sb.String()
}
