// Package ansatz defines parameterized circuit families for the variational loop.
package ansatz

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSeed seeds InitialParameters when the caller has no preference.
const DefaultSeed uint64 = 42

// Ansatz maps a parameter vector to a circuit. Build must be deterministic and
// side-effect free, and every parameter must enter through exactly one
// single-qubit rotation so the two-term parameter-shift rule is exact.
type Ansatz interface {
	Name() string
	NumQubits() int
	NumParameters() int
	InitialParameters(seed uint64) []float64
	Build(params []float64) (*Circuit, error)
}

// ErrParameterShape is the sentinel behind every ParameterShapeError.
var ErrParameterShape = errors.New("parameter vector has the wrong length")

// ParameterShapeError reports a parameter vector whose length does not match
// the ansatz.
type ParameterShapeError struct {
	Ansatz   string
	Expected int
	Got      int
}

func (e *ParameterShapeError) Error() string {
	return fmt.Sprintf("%s: %s expects %d parameters, got %d", ErrParameterShape, e.Ansatz, e.Expected, e.Got)
}

func (e *ParameterShapeError) Unwrap() error { return ErrParameterShape }

// ValidateParameters checks len(params) against a.NumParameters and rejects
// non-finite entries.
func ValidateParameters(a Ansatz, params []float64) error {
	if len(params) != a.NumParameters() {
		return &ParameterShapeError{Ansatz: a.Name(), Expected: a.NumParameters(), Got: len(params)}
	}
	for i, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("parameter %d is not finite: %v", i, p)
		}
	}
	return nil
}

// uniform draws n values from U[lo, hi) with a seeded PCG stream.
func uniform(n int, lo, hi float64, seed uint64) []float64 {
	dist := distuv.Uniform{
		Min: lo,
		Max: hi,
		Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}
