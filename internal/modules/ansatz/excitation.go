package ansatz

import (
	"fmt"
	"sort"
)

// Excitation moves occupation from one qubit to another.
type Excitation struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ExcitationAnsatz is a problem-structured, coupled-cluster style ansatz: it
// prepares the reference determinant with X gates on the occupied qubits and
// then applies one Givens-like rotation per excitation, RY(θ_k) on To followed
// by CX(To → From). Each excitation owns one parameter.
type ExcitationAnsatz struct {
	name        string
	numQubits   int
	reference   []int
	excitations []Excitation
}

// NewExcitation validates the reference and excitations.
func NewExcitation(numQubits int, reference []int, excitations []Excitation) (*ExcitationAnsatz, error) {
	if numQubits <= 0 {
		return nil, fmt.Errorf("excitation ansatz needs at least one qubit, got %d", numQubits)
	}
	if len(excitations) == 0 {
		return nil, fmt.Errorf("excitation ansatz needs at least one excitation")
	}

	occupied := make(map[int]bool, len(reference))
	for _, q := range reference {
		if q < 0 || q >= numQubits {
			return nil, fmt.Errorf("reference qubit %d out of range for %d qubits", q, numQubits)
		}
		if occupied[q] {
			return nil, fmt.Errorf("reference qubit %d listed twice", q)
		}
		occupied[q] = true
	}
	for i, ex := range excitations {
		if ex.From < 0 || ex.From >= numQubits || ex.To < 0 || ex.To >= numQubits {
			return nil, fmt.Errorf("excitation %d (%d→%d) out of range for %d qubits", i, ex.From, ex.To, numQubits)
		}
		if ex.From == ex.To {
			return nil, fmt.Errorf("excitation %d moves qubit %d onto itself", i, ex.From)
		}
	}

	ref := append([]int(nil), reference...)
	sort.Ints(ref)
	return &ExcitationAnsatz{
		name:        "excitation",
		numQubits:   numQubits,
		reference:   ref,
		excitations: append([]Excitation(nil), excitations...),
	}, nil
}

// NewH2Excitation is the one-parameter ansatz for the reduced two-qubit H2
// Hamiltonian: reference |q0=1>, single excitation 0→1.
func NewH2Excitation() *ExcitationAnsatz {
	a, _ := NewExcitation(2, []int{0}, []Excitation{{From: 0, To: 1}})
	a.name = "h2-excitation"
	return a
}

// NewUCCSingles occupies the first numElectrons qubits and adds every
// occupied→virtual single excitation.
func NewUCCSingles(numQubits, numElectrons int) (*ExcitationAnsatz, error) {
	if numElectrons <= 0 || numElectrons >= numQubits {
		return nil, fmt.Errorf("need 0 < electrons < qubits, got %d electrons on %d qubits", numElectrons, numQubits)
	}
	reference := make([]int, numElectrons)
	var excitations []Excitation
	for i := 0; i < numElectrons; i++ {
		reference[i] = i
		for a := numElectrons; a < numQubits; a++ {
			excitations = append(excitations, Excitation{From: i, To: a})
		}
	}
	a, err := NewExcitation(numQubits, reference, excitations)
	if err != nil {
		return nil, err
	}
	a.name = "ucc-singles"
	return a, nil
}

func (a *ExcitationAnsatz) Name() string       { return a.name }
func (a *ExcitationAnsatz) NumQubits() int     { return a.numQubits }
func (a *ExcitationAnsatz) NumParameters() int { return len(a.excitations) }

// Reference returns the occupied qubits of the reference state.
func (a *ExcitationAnsatz) Reference() []int { return append([]int(nil), a.reference...) }

// Excitations returns the excitation list in parameter order.
func (a *ExcitationAnsatz) Excitations() []Excitation {
	return append([]Excitation(nil), a.excitations...)
}

// InitialParameters draws small amplitudes from [-0.1, 0.1) so the search
// starts near the reference state.
func (a *ExcitationAnsatz) InitialParameters(seed uint64) []float64 {
	return uniform(a.NumParameters(), -0.1, 0.1, seed)
}

// Build lays out the reference preparation then the excitation rotations.
func (a *ExcitationAnsatz) Build(params []float64) (*Circuit, error) {
	if err := ValidateParameters(a, params); err != nil {
		return nil, err
	}

	c := NewCircuit(a.numQubits)
	for _, q := range a.reference {
		c.X(q)
	}
	for k, ex := range a.excitations {
		c.RY(params[k], ex.To)
		c.CX(ex.To, ex.From)
	}
	return c, nil
}
