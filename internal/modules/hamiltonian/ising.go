package hamiltonian

// NewIsing builds the transverse-field Ising chain
//
//	H = -J Σ Z_i Z_{i+1} - h Σ X_i
//
// With periodic set, the closing bond Z_{n-1} Z_0 is added for every chain of
// two or more sites; a two-site ring therefore carries its bond twice.
func NewIsing(numQubits int, j, field float64, periodic bool, opts ...Option) (*Hamiltonian, error) {
	h, err := New(numQubits, opts...)
	if err != nil {
		return nil, err
	}

	for _, bond := range isingBonds(numQubits, periodic) {
		if err := h.AddTerm(-j, PauliZ(bond[0]), PauliZ(bond[1])); err != nil {
			return nil, err
		}
	}
	for q := 0; q < numQubits; q++ {
		if err := h.AddTerm(-field, PauliX(q)); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func isingBonds(numQubits int, periodic bool) [][2]int {
	var bonds [][2]int
	for i := 0; i+1 < numQubits; i++ {
		bonds = append(bonds, [2]int{i, i + 1})
	}
	if periodic && numQubits >= 2 {
		bonds = append(bonds, [2]int{numQubits - 1, 0})
	}
	return bonds
}

// ClassicalIsingEnergy is the all-aligned energy -J × bonds, ignoring the field.
func ClassicalIsingEnergy(numQubits int, j float64, periodic bool) float64 {
	return -j * float64(len(isingBonds(numQubits, periodic)))
}
