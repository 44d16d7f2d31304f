package ansatz

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHardwareEfficient_Shape(t *testing.T) {
	a, err := NewHardwareEfficient(4, 2)
	require.NoError(t, err)

	assert.Equal(t, 8, a.NumParameters())
	assert.Equal(t, 4, a.NumQubits())

	params := make([]float64, 8)
	for i := range params {
		params[i] = float64(i) / 10
	}
	c, err := a.Build(params)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 8, c.Count(GateRY))
	assert.Equal(t, 6, c.Count(GateCX))

	// Second layer starts after the first chain of three CX gates.
	second := c.Gates[4+3]
	assert.Equal(t, GateRY, second.Name)
	assert.Equal(t, []int{0}, second.Qubits)
	assert.Equal(t, []float64{0.4}, second.Params)
	assert.Equal(t, []int{2, 3}, c.Gates[6].Qubits)
}

func TestHardwareEfficient_ParameterShapeError(t *testing.T) {
	a, err := NewHardwareEfficient(4, 2)
	require.NoError(t, err)

	_, err = a.Build([]float64{0.1, 0.2, 0.3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParameterShape))

	var shapeErr *ParameterShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 8, shapeErr.Expected)
	assert.Equal(t, 3, shapeErr.Got)
}

func TestHardwareEfficient_InvalidShape(t *testing.T) {
	_, err := NewHardwareEfficient(0, 1)
	assert.Error(t, err)
	_, err = NewHardwareEfficient(2, 0)
	assert.Error(t, err)
}

func TestHardwareEfficient_InitialParameters(t *testing.T) {
	a, err := NewHardwareEfficient(3, 3)
	require.NoError(t, err)

	first := a.InitialParameters(DefaultSeed)
	second := a.InitialParameters(DefaultSeed)
	other := a.InitialParameters(7)

	require.Len(t, first, 9)
	assert.Equal(t, first, second, "same seed must reproduce the draw")
	assert.NotEqual(t, first, other)
	for _, p := range first {
		assert.GreaterOrEqual(t, p, -math.Pi)
		assert.Less(t, p, math.Pi)
	}
}

func TestBuild_IsPure(t *testing.T) {
	a, err := NewHardwareEfficient(2, 1)
	require.NoError(t, err)

	params := []float64{0.3, -0.7}
	c1, err := a.Build(params)
	require.NoError(t, err)
	c2, err := a.Build(params)
	require.NoError(t, err)

	assert.Equal(t, c1, c2)
	assert.Equal(t, []float64{0.3, -0.7}, params)
}

func TestValidateParameters_RejectsNonFinite(t *testing.T) {
	a, err := NewHardwareEfficient(2, 1)
	require.NoError(t, err)

	assert.Error(t, ValidateParameters(a, []float64{0, math.NaN()}))
	assert.Error(t, ValidateParameters(a, []float64{math.Inf(1), 0}))
	assert.NoError(t, ValidateParameters(a, []float64{0, 0}))
}

func TestH2Excitation(t *testing.T) {
	a := NewH2Excitation()
	assert.Equal(t, 1, a.NumParameters())
	assert.Equal(t, 2, a.NumQubits())
	assert.Equal(t, "h2-excitation", a.Name())

	c, err := a.Build([]float64{0.25})
	require.NoError(t, err)
	require.Len(t, c.Gates, 3)

	assert.Equal(t, Gate{Name: GateX, Qubits: []int{0}}, c.Gates[0])
	assert.Equal(t, Gate{Name: GateRY, Qubits: []int{1}, Params: []float64{0.25}}, c.Gates[1])
	assert.Equal(t, Gate{Name: GateCX, Qubits: []int{1, 0}}, c.Gates[2])

	for _, p := range a.InitialParameters(DefaultSeed) {
		assert.LessOrEqual(t, math.Abs(p), 0.1)
	}
}

func TestUCCSingles(t *testing.T) {
	a, err := NewUCCSingles(4, 2)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, a.Reference())
	assert.Equal(t, 4, a.NumParameters())
	assert.Equal(t, Excitation{From: 0, To: 2}, a.Excitations()[0])
	assert.Equal(t, Excitation{From: 1, To: 3}, a.Excitations()[3])

	_, err = NewUCCSingles(2, 2)
	assert.Error(t, err)
}

func TestNewExcitation_Validation(t *testing.T) {
	_, err := NewExcitation(2, []int{2}, []Excitation{{From: 0, To: 1}})
	assert.Error(t, err)
	_, err = NewExcitation(2, []int{0, 0}, []Excitation{{From: 0, To: 1}})
	assert.Error(t, err)
	_, err = NewExcitation(2, []int{0}, []Excitation{{From: 1, To: 1}})
	assert.Error(t, err)
	_, err = NewExcitation(2, []int{0}, nil)
	assert.Error(t, err)
}

func TestCircuitValidate(t *testing.T) {
	c := NewCircuit(2)
	c.CX(0, 0)
	assert.Error(t, c.Validate())

	c = NewCircuit(2)
	c.RY(0.1, 2)
	assert.Error(t, c.Validate())

	c = &Circuit{NumQubits: 1, Gates: []Gate{{Name: "SWAP", Qubits: []int{0}}}}
	assert.Error(t, c.Validate())

	c = NewCircuit(2)
	c.H(0)
	c.RZ(0.2, 1)
	c.CZ(0, 1)
	c.RX(0.1, 0)
	assert.NoError(t, c.Validate())
}
