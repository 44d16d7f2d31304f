package hamiltonian

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Dimension returns 2^n for the register.
func (h *Hamiltonian) Dimension() int { return 1 << uint(h.numQubits) }

func (h *Hamiltonian) checkTractable() error {
	if h.numQubits > h.exactLimit {
		return &IntractableSizeError{NumQubits: h.numQubits, Limit: h.exactLimit}
	}
	return nil
}

// Matrix builds the dense 2^n × 2^n matrix Σ_k c_k P_k.
func (h *Hamiltonian) Matrix() (*mat.CDense, error) {
	if err := h.checkTractable(); err != nil {
		return nil, err
	}

	dim := h.Dimension()
	m := mat.NewCDense(dim, dim, nil)
	for _, t := range h.terms {
		c := complex(t.Coefficient, 0)
		for s := 0; s < dim; s++ {
			target, phase := t.Apply(uint64(s))
			r := int(target)
			m.Set(r, s, m.At(r, s)+c*phase)
		}
	}
	return m, nil
}

// RealMatrix builds the matrix as a symmetric real matrix. It fails when any
// term carries an odd number of Y operators.
func (h *Hamiltonian) RealMatrix() (*mat.SymDense, error) {
	if err := h.checkTractable(); err != nil {
		return nil, err
	}
	if !h.IsReal() {
		return nil, fmt.Errorf("hamiltonian has imaginary entries")
	}

	dim := h.Dimension()
	data := make([]float64, dim*dim)
	for _, t := range h.terms {
		for s := 0; s < dim; s++ {
			target, phase := t.Apply(uint64(s))
			data[int(target)*dim+s] += t.Coefficient * real(phase)
		}
	}
	return mat.NewSymDense(dim, data), nil
}

// Eigenvalues returns the spectrum in ascending order.
//
// Complex Hermitian H = A + iB is diagonalized through the real symmetric
// embedding [[A, -B], [B, A]], whose spectrum is that of H with every
// eigenvalue doubled; every second value is kept.
func (h *Hamiltonian) Eigenvalues() ([]float64, error) {
	if h.IsReal() {
		sym, err := h.RealMatrix()
		if err != nil {
			return nil, err
		}
		return symEigenvalues(sym)
	}

	m, err := h.Matrix()
	if err != nil {
		return nil, err
	}
	dim := h.Dimension()
	embed := mat.NewSymDense(2*dim, nil)
	for r := 0; r < dim; r++ {
		for c := r; c < dim; c++ {
			v := m.At(r, c)
			embed.SetSym(r, c, real(v))
			embed.SetSym(r+dim, c+dim, real(v))
		}
		for c := 0; c < dim; c++ {
			// lower-left block B
			embed.SetSym(r+dim, c, imag(m.At(r, c)))
		}
	}
	values, err := symEigenvalues(embed)
	if err != nil {
		return nil, err
	}
	out := make([]float64, dim)
	for i := range out {
		out[i] = values[2*i]
	}
	return out, nil
}

// ExactGroundEnergy returns the minimum eigenvalue of the matrix.
func (h *Hamiltonian) ExactGroundEnergy() (float64, error) {
	values, err := h.Eigenvalues()
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

func symEigenvalues(sym *mat.SymDense) ([]float64, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, false); !ok {
		return nil, fmt.Errorf("eigendecomposition did not converge")
	}
	values := eig.Values(nil)
	sort.Float64s(values)
	for _, v := range values {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("eigendecomposition produced NaN")
		}
	}
	return values, nil
}

// DenseBytes estimates the allocation Eigenvalues needs for this register.
func (h *Hamiltonian) DenseBytes() uint64 {
	dim := uint64(h.Dimension())
	if h.IsReal() {
		// symmetric matrix plus LAPACK workspace of the same order
		return 2 * dim * dim * 8
	}
	// complex matrix plus the doubled real embedding
	return dim*dim*16 + 2*(2*dim)*(2*dim)*8
}
