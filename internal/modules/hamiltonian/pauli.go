// Package hamiltonian models qubit Hamiltonians as weighted sums of Pauli strings.
//
// Basis convention: qubit q is bit q of a computational basis index, so qubit 0
// is the least significant bit. Matrices, the reference simulator and the
// ansatz circuits all share this convention.
package hamiltonian

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
	"strconv"
	"strings"
)

// MaxQubits bounds the register so basis indices fit in a uint64 mask.
const MaxQubits = 62

// DefaultExactQubitLimit is the default ceiling for dense matrix construction.
const DefaultExactQubitLimit = 12

// Axis is a single-qubit Pauli operator.
type Axis byte

const (
	I Axis = 'I'
	X Axis = 'X'
	Y Axis = 'Y'
	Z Axis = 'Z'
)

// Valid reports whether a is one of I, X, Y, Z.
func (a Axis) Valid() bool {
	switch a {
	case I, X, Y, Z:
		return true
	}
	return false
}

func (a Axis) String() string { return string(a) }

// ParseAxis accepts "I", "X", "Y" or "Z" in either case.
func ParseAxis(s string) (Axis, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("invalid pauli axis %q", s)
	}
	a := Axis(strings.ToUpper(s)[0])
	if !a.Valid() {
		return 0, fmt.Errorf("invalid pauli axis %q", s)
	}
	return a, nil
}

// QubitOp places a Pauli axis on one qubit.
type QubitOp struct {
	Qubit int  `json:"qubit"`
	Axis  Axis `json:"axis"`
}

// PauliX returns X acting on qubit q.
func PauliX(q int) QubitOp { return QubitOp{Qubit: q, Axis: X} }

// PauliY returns Y acting on qubit q.
func PauliY(q int) QubitOp { return QubitOp{Qubit: q, Axis: Y} }

// PauliZ returns Z acting on qubit q.
func PauliZ(q int) QubitOp { return QubitOp{Qubit: q, Axis: Z} }

// PauliTerm is coefficient × tensor product of its ops. Qubits absent from Ops
// carry the identity.
type PauliTerm struct {
	Coefficient float64
	Ops         []QubitOp

	xMask, zMask uint64
	yCount       int
}

func newTerm(coefficient float64, ops []QubitOp) PauliTerm {
	t := PauliTerm{Coefficient: coefficient, Ops: append([]QubitOp(nil), ops...)}
	sort.Slice(t.Ops, func(i, j int) bool { return t.Ops[i].Qubit < t.Ops[j].Qubit })
	for _, op := range t.Ops {
		bit := uint64(1) << uint(op.Qubit)
		switch op.Axis {
		case X:
			t.xMask |= bit
		case Y:
			t.xMask |= bit
			t.zMask |= bit
			t.yCount++
		case Z:
			t.zMask |= bit
		}
	}
	return t
}

// Apply maps basis state s through the Pauli string (coefficient excluded),
// returning the image index and the phase: P|s> = phase |target>.
//
// Y = i·X·Z on each qubit, so the phase is i^(#Y) · (-1)^popcount(s & zmask).
func (t PauliTerm) Apply(s uint64) (target uint64, phase complex128) {
	phase = iPow(t.yCount)
	if bits.OnesCount64(s&t.zMask)%2 == 1 {
		phase = -phase
	}
	return s ^ t.xMask, phase
}

// IsReal reports whether the term's matrix has only real entries.
func (t PauliTerm) IsReal() bool { return t.yCount%2 == 0 }

// Diagonal reports whether the term contains no X or Y.
func (t PauliTerm) Diagonal() bool { return t.xMask == 0 }

func iPow(n int) complex128 {
	switch n % 4 {
	case 1:
		return complex(0, 1)
	case 2:
		return -1
	case 3:
		return complex(0, -1)
	}
	return 1
}

// Label renders the Pauli string, e.g. "Z0 Z1", or "I" for the identity.
func (t PauliTerm) Label() string {
	parts := make([]string, 0, len(t.Ops))
	for _, op := range t.Ops {
		if op.Axis == I {
			continue
		}
		parts = append(parts, op.Axis.String()+strconv.Itoa(op.Qubit))
	}
	if len(parts) == 0 {
		return "I"
	}
	return strings.Join(parts, " ")
}

// Option configures a Hamiltonian.
type Option func(*Hamiltonian)

// WithExactQubitLimit sets the largest register for which Matrix and
// ExactGroundEnergy will build a dense matrix.
func WithExactQubitLimit(n int) Option {
	return func(h *Hamiltonian) {
		if n > 0 {
			h.exactLimit = n
		}
	}
}

// Hamiltonian is a weighted sum of Pauli strings on a fixed qubit register.
type Hamiltonian struct {
	numQubits  int
	terms      []PauliTerm
	exactLimit int
}

// New returns an empty Hamiltonian on numQubits qubits.
func New(numQubits int, opts ...Option) (*Hamiltonian, error) {
	if numQubits <= 0 || numQubits > MaxQubits {
		return nil, &InvalidTermError{
			Term:      -1,
			Qubit:     -1,
			NumQubits: numQubits,
			Reason:    fmt.Sprintf("qubit count must be in [1, %d]", MaxQubits),
		}
	}
	h := &Hamiltonian{numQubits: numQubits, exactLimit: DefaultExactQubitLimit}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// NumQubits returns the register size.
func (h *Hamiltonian) NumQubits() int { return h.numQubits }

// ExactQubitLimit returns the dense matrix ceiling.
func (h *Hamiltonian) ExactQubitLimit() int { return h.exactLimit }

// AddTerm appends coefficient × ops. Qubits must be in range and appear at
// most once; identity ops are allowed and an empty ops list is the identity.
func (h *Hamiltonian) AddTerm(coefficient float64, ops ...QubitOp) error {
	idx := len(h.terms)
	if math.IsNaN(coefficient) || math.IsInf(coefficient, 0) {
		return &InvalidTermError{Term: idx, Qubit: -1, NumQubits: h.numQubits, Reason: "coefficient is not finite"}
	}

	seen := make(map[int]bool, len(ops))
	for _, op := range ops {
		if op.Qubit < 0 || op.Qubit >= h.numQubits {
			return &InvalidTermError{Term: idx, Qubit: op.Qubit, NumQubits: h.numQubits, Reason: "qubit index out of range"}
		}
		if seen[op.Qubit] {
			return &InvalidTermError{Term: idx, Qubit: op.Qubit, NumQubits: h.numQubits, Reason: "qubit appears twice"}
		}
		if !op.Axis.Valid() {
			return &InvalidTermError{Term: idx, Qubit: op.Qubit, NumQubits: h.numQubits, Reason: fmt.Sprintf("unknown axis %q", byte(op.Axis))}
		}
		seen[op.Qubit] = true
	}

	h.terms = append(h.terms, newTerm(coefficient, ops))
	return nil
}

// Terms returns a deep copy of the terms in insertion order.
func (h *Hamiltonian) Terms() []PauliTerm {
	out := make([]PauliTerm, len(h.terms))
	for i, t := range h.terms {
		out[i] = t
		out[i].Ops = append([]QubitOp(nil), t.Ops...)
	}
	return out
}

// NumTerms returns the number of terms.
func (h *Hamiltonian) NumTerms() int { return len(h.terms) }

// IsReal reports whether every term has a real matrix.
func (h *Hamiltonian) IsReal() bool {
	for _, t := range h.terms {
		if !t.IsReal() {
			return false
		}
	}
	return true
}

// OneNorm is Σ|c_k|, an upper bound on the spectral radius.
func (h *Hamiltonian) OneNorm() float64 {
	var sum float64
	for _, t := range h.terms {
		sum += math.Abs(t.Coefficient)
	}
	return sum
}

func (h *Hamiltonian) String() string {
	if len(h.terms) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, t := range h.terms {
		c := t.Coefficient
		switch {
		case i == 0 && c < 0:
			sb.WriteString("-")
			c = -c
		case i > 0 && c < 0:
			sb.WriteString(" - ")
			c = -c
		case i > 0:
			sb.WriteString(" + ")
		}
		sb.WriteString(strconv.FormatFloat(c, 'g', 6, 64))
		sb.WriteString(" * ")
		sb.WriteString(t.Label())
	}
	return sb.String()
}
