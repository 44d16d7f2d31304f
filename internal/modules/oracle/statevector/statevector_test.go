package statevector

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
)

func single(t *testing.T, coefficient float64, ops ...hamiltonian.QubitOp) *hamiltonian.Hamiltonian {
	t.Helper()
	n := 1
	for _, op := range ops {
		if op.Qubit+1 > n {
			n = op.Qubit + 1
		}
	}
	h, err := hamiltonian.New(n)
	require.NoError(t, err)
	require.NoError(t, h.AddTerm(coefficient, ops...))
	return h
}

func TestRun_BellState(t *testing.T) {
	c := ansatz.NewCircuit(2)
	c.H(0)
	c.CX(0, 1)

	s, err := Run(c)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, s.Probability(0), 1e-12)
	assert.InDelta(t, 0.5, s.Probability(3), 1e-12)

	zz := single(t, 1, hamiltonian.PauliZ(0), hamiltonian.PauliZ(1))
	xx := single(t, 1, hamiltonian.PauliX(0), hamiltonian.PauliX(1))
	yy := single(t, 1, hamiltonian.PauliY(0), hamiltonian.PauliY(1))

	for name, tc := range map[string]struct {
		h    *hamiltonian.Hamiltonian
		want float64
	}{
		"ZZ": {zz, 1},
		"XX": {xx, 1},
		"YY": {yy, -1},
	} {
		e, err := s.Expectation(tc.h)
		require.NoError(t, err, name)
		assert.InDelta(t, tc.want, e, 1e-12, name)
	}
}

func TestRotations_SingleQubitExpectations(t *testing.T) {
	theta := 0.7

	ry := ansatz.NewCircuit(1)
	ry.RY(theta, 0)
	s, err := Run(ry)
	require.NoError(t, err)

	assert.InDelta(t, math.Cos(theta), s.TermExpectation(single(t, 1, hamiltonian.PauliZ(0)).Terms()[0]), 1e-12)
	assert.InDelta(t, math.Sin(theta), s.TermExpectation(single(t, 1, hamiltonian.PauliX(0)).Terms()[0]), 1e-12)

	rx := ansatz.NewCircuit(1)
	rx.RX(theta, 0)
	s, err = Run(rx)
	require.NoError(t, err)
	assert.InDelta(t, -math.Sin(theta), s.TermExpectation(single(t, 1, hamiltonian.PauliY(0)).Terms()[0]), 1e-12)

	// RZ only changes phases: H then RZ rotates <X> into <Y>.
	rz := ansatz.NewCircuit(1)
	rz.H(0)
	rz.RZ(theta, 0)
	s, err = Run(rz)
	require.NoError(t, err)
	assert.InDelta(t, math.Cos(theta), s.TermExpectation(single(t, 1, hamiltonian.PauliX(0)).Terms()[0]), 1e-12)
	assert.InDelta(t, math.Sin(theta), s.TermExpectation(single(t, 1, hamiltonian.PauliY(0)).Terms()[0]), 1e-12)
}

func TestRun_CZPhase(t *testing.T) {
	c := ansatz.NewCircuit(2)
	c.H(0)
	c.X(1)
	c.CZ(0, 1)

	s, err := Run(c)
	require.NoError(t, err)
	assert.InDelta(t, -1, s.TermExpectation(single(t, 1, hamiltonian.PauliX(0)).Terms()[0]), 1e-12)
}

func TestSimulator_H2ReachesGroundEnergy(t *testing.T) {
	h, err := hamiltonian.NewH2()
	require.NoError(t, err)
	a := ansatz.NewH2Excitation()

	sim := NewSimulator()
	energy, err := sim.Evaluate(context.Background(), a, []float64{-0.22353699826765822}, h)
	require.NoError(t, err)
	assert.InDelta(t, hamiltonian.H2ElectronicGroundEnergy, energy, 1e-9)

	hf, err := sim.Evaluate(context.Background(), a, []float64{0}, h)
	require.NoError(t, err)
	assert.Greater(t, hf, energy)
}

func TestSimulator_PreservesNorm(t *testing.T) {
	a, err := ansatz.NewHardwareEfficient(4, 3)
	require.NoError(t, err)

	c, err := a.Build(a.InitialParameters(ansatz.DefaultSeed))
	require.NoError(t, err)
	s, err := Run(c)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, s.Norm(), 1e-12)
}

func TestSimulator_EnergyAboveGround(t *testing.T) {
	h, err := hamiltonian.NewIsing(3, 1.0, 0.5, false)
	require.NoError(t, err)
	ground, err := h.ExactGroundEnergy()
	require.NoError(t, err)

	a, err := ansatz.NewHardwareEfficient(3, 2)
	require.NoError(t, err)

	sim := NewSimulator()
	for seed := uint64(1); seed <= 5; seed++ {
		e, err := sim.Evaluate(context.Background(), a, a.InitialParameters(seed), h)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, e, ground-1e-9)
	}
}

func TestSimulator_Errors(t *testing.T) {
	h, err := hamiltonian.NewIsing(3, 1.0, 0.5, false)
	require.NoError(t, err)
	a, err := ansatz.NewHardwareEfficient(2, 1)
	require.NoError(t, err)

	sim := NewSimulator()
	_, err = sim.Evaluate(context.Background(), a, []float64{0, 0}, h)
	assert.Error(t, err, "qubit mismatch")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sim.Evaluate(ctx, a, []float64{0, 0}, h)
	assert.ErrorIs(t, err, context.Canceled)

	sim.MaxQubits = 2
	big, err := ansatz.NewHardwareEfficient(3, 1)
	require.NoError(t, err)
	_, err = sim.Evaluate(context.Background(), big, []float64{0, 0, 0}, h)
	assert.Error(t, err)
}

func TestSimulator_EvaluateBatch(t *testing.T) {
	h, err := hamiltonian.NewH2()
	require.NoError(t, err)
	a := ansatz.NewH2Excitation()
	sim := NewSimulator()

	values, err := sim.EvaluateBatch(context.Background(), a, [][]float64{{0}, {0.5}, {-0.5}}, h)
	require.NoError(t, err)
	require.Len(t, values, 3)

	one, err := sim.Evaluate(context.Background(), a, []float64{0.5}, h)
	require.NoError(t, err)
	assert.Equal(t, one, values[1])
}

func TestSampler_ReproducibleWithSeed(t *testing.T) {
	h, err := hamiltonian.NewIsing(2, 1.0, 0.5, false)
	require.NoError(t, err)
	a, err := ansatz.NewHardwareEfficient(2, 1)
	require.NoError(t, err)
	params := []float64{0.4, -1.1}

	seed := uint64(7)
	first, err := NewSampler(1000, &seed)
	require.NoError(t, err)
	second, err := NewSampler(1000, &seed)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		e1, err := first.Evaluate(context.Background(), a, params, h)
		require.NoError(t, err)
		e2, err := second.Evaluate(context.Background(), a, params, h)
		require.NoError(t, err)
		assert.Equal(t, e1, e2)
	}
}

func TestSampler_EvaluateBatchMatchesSequentialDraws(t *testing.T) {
	h, err := hamiltonian.NewIsing(2, 1.0, 0.5, false)
	require.NoError(t, err)
	a, err := ansatz.NewHardwareEfficient(2, 1)
	require.NoError(t, err)
	batch := [][]float64{{0.4, -1.1}, {1.2, 0.3}, {-0.7, 2.0}}

	seed := uint64(21)
	batched, err := NewSampler(500, &seed)
	require.NoError(t, err)
	sequential, err := NewSampler(500, &seed)
	require.NoError(t, err)

	values, err := batched.EvaluateBatch(context.Background(), a, batch, h)
	require.NoError(t, err)
	require.Len(t, values, len(batch))
	for i, params := range batch {
		e, err := sequential.Evaluate(context.Background(), a, params, h)
		require.NoError(t, err)
		assert.Equal(t, e, values[i], "entry %d", i)
	}
}

func TestSampler_SplitIsDeterministicAndIndependent(t *testing.T) {
	h, err := hamiltonian.NewIsing(2, 1.0, 0.5, false)
	require.NoError(t, err)
	a, err := ansatz.NewHardwareEfficient(2, 1)
	require.NoError(t, err)
	params := []float64{0.4, -1.1}
	ctx := context.Background()

	seed := uint64(5)
	parent, err := NewSampler(200, &seed)
	require.NoError(t, err)

	draw := func(s *Sampler) []float64 {
		out := make([]float64, 5)
		for i := range out {
			out[i], err = s.Evaluate(ctx, a, params, h)
			require.NoError(t, err)
		}
		return out
	}

	first := draw(parent.Split(1))
	again := draw(parent.Split(1))
	other := draw(parent.Split(2))
	assert.Equal(t, first, again)
	assert.NotEqual(t, first, other)

	child := parent.Split(1)
	assert.Equal(t, parent.Shots, child.Shots)
	assert.Equal(t, parent.MaxQubits, child.MaxQubits)
}

func TestSampler_ConvergesToExact(t *testing.T) {
	h := single(t, 1, hamiltonian.PauliZ(0))
	a, err := ansatz.NewHardwareEfficient(1, 1)
	require.NoError(t, err)

	seed := uint64(11)
	sampler, err := NewSampler(100000, &seed)
	require.NoError(t, err)

	e, err := sampler.Evaluate(context.Background(), a, []float64{1.0}, h)
	require.NoError(t, err)
	assert.InDelta(t, math.Cos(1.0), e, 0.02)
}

func TestSampler_EigenstateIsExact(t *testing.T) {
	h, err := hamiltonian.New(1)
	require.NoError(t, err)
	require.NoError(t, h.AddTerm(0.5, hamiltonian.PauliZ(0)))
	require.NoError(t, h.AddTerm(-2))
	a, err := ansatz.NewHardwareEfficient(1, 1)
	require.NoError(t, err)

	sampler, err := NewSampler(10, nil)
	require.NoError(t, err)

	e, err := sampler.Evaluate(context.Background(), a, []float64{0}, h)
	require.NoError(t, err)
	assert.Equal(t, -1.5, e)
}

func TestNewSampler_RequiresShots(t *testing.T) {
	_, err := NewSampler(0, nil)
	assert.Error(t, err)
}
