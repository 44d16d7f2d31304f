package hamiltonian

// Reduced two-qubit H2 in STO-3G at 0.735 Å after parity mapping with two
// qubits tapered off. Coefficients in Hartree.
const (
	h2Identity = -1.052373245772859
	h2Z        = 0.39793742484318045
	h2ZZ       = -0.01128010425623538
	h2XX       = 0.18093119978423156

	// H2NuclearRepulsion is the nuclear repulsion energy at the same geometry.
	H2NuclearRepulsion = 0.7199689944489797
	// H2ElectronicGroundEnergy is the exact electronic ground energy of NewH2.
	H2ElectronicGroundEnergy = -1.8572750302023802
)

// NewH2 returns the electronic Hamiltonian of molecular hydrogen on two qubits.
// Add H2NuclearRepulsion to a result to obtain the total energy.
func NewH2(opts ...Option) (*Hamiltonian, error) {
	h, err := New(2, opts...)
	if err != nil {
		return nil, err
	}

	terms := []struct {
		c   float64
		ops []QubitOp
	}{
		{h2Identity, nil},
		{h2Z, []QubitOp{PauliZ(0)}},
		{-h2Z, []QubitOp{PauliZ(1)}},
		{h2ZZ, []QubitOp{PauliZ(0), PauliZ(1)}},
		{h2XX, []QubitOp{PauliX(0), PauliX(1)}},
	}
	for _, t := range terms {
		if err := h.AddTerm(t.c, t.ops...); err != nil {
			return nil, err
		}
	}
	return h, nil
}
