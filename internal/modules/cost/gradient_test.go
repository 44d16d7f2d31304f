package cost

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
	"github.com/aristath/vqe/internal/modules/oracle"
	"github.com/aristath/vqe/internal/modules/oracle/statevector"
	testingpkg "github.com/aristath/vqe/internal/testing"
)

func TestParameterShift_MatchesFiniteDifference(t *testing.T) {
	// Single RY rotation with a diagonal Z term: E(θ) = 0.8 cos θ + 0.3 sin θ.
	h, a := testingpkg.RotationProblem(t, 0.8, 0.3)
	sim := statevector.NewSimulator()
	// Hide the batch interface so both estimators take the per-call path.
	single := oracle.Func(sim.Evaluate)

	f, err := New(a, h, single)
	require.NoError(t, err)
	ctx := context.Background()

	for _, theta := range []float64{-2.1, -0.4, 0, 0.9, 2.7} {
		params := []float64{theta}
		shift, err := ParameterShift{}.Gradient(ctx, f, params)
		require.NoError(t, err)
		fd, err := FiniteDifference{Step: 1e-5}.Gradient(ctx, f, params)
		require.NoError(t, err)

		analytic := -0.8*math.Sin(theta) + 0.3*math.Cos(theta)
		assert.InDelta(t, fd[0], shift[0], 1e-4, "theta=%v", theta)
		assert.InDelta(t, analytic, shift[0], 1e-12, "theta=%v", theta)
	}

	assert.Zero(t, f.Len(), "gradient evaluations are never recorded")
	assert.Equal(t, 5*2*2, f.ShiftEvaluations())
}

func TestParameterShift_CallCountAndConcurrency(t *testing.T) {
	h, a := testingpkg.IsingProblem(t)
	center := []float64{0.1, -0.2, 0.3, -0.4, 0.5, -0.6}
	mock := testingpkg.NewMockOracle(testingpkg.Sinusoid(center, 0))

	f, err := New(a, h, mock)
	require.NoError(t, err)
	params := []float64{1, 1, 1, 1, 1, 1}

	sequential, err := ParameterShift{Workers: 1}.Gradient(context.Background(), f, params)
	require.NoError(t, err)
	assert.Equal(t, 12, mock.Calls(), "exactly 2n oracle calls")

	parallel, err := ParameterShift{Workers: 4}.Gradient(context.Background(), f, params)
	require.NoError(t, err)
	assert.Equal(t, 24, mock.Calls())

	for i := range params {
		want := math.Sin(params[i] - center[i])
		assert.InDelta(t, want, sequential[i], 1e-12)
		assert.InDelta(t, want, parallel[i], 1e-12)
	}
}

func TestParameterShift_BatchOracle(t *testing.T) {
	h, a := testingpkg.H2Problem(t)
	sim := statevector.NewSimulator()

	batched, err := New(a, h, sim)
	require.NoError(t, err)
	unbatched, err := New(a, h, oracle.Func(sim.Evaluate))
	require.NoError(t, err)

	params := []float64{0.3}
	g1, err := ParameterShift{}.Gradient(context.Background(), batched, params)
	require.NoError(t, err)
	g2, err := ParameterShift{}.Gradient(context.Background(), unbatched, params)
	require.NoError(t, err)

	assert.InDelta(t, g2[0], g1[0], 1e-12)
	assert.Equal(t, 2, batched.ShiftEvaluations())
}

func TestParameterShift_PropagatesOracleFailure(t *testing.T) {
	h, a := testingpkg.IsingProblem(t)
	mock := testingpkg.NewMockOracle(testingpkg.Quadratic(make([]float64, 6), 0))
	backend := errors.New("queue full")
	mock.FailOnCall(3, backend)

	f, err := New(a, h, mock)
	require.NoError(t, err)

	_, err = ParameterShift{Workers: 3}.Gradient(context.Background(), f, make([]float64, 6))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOracleEvaluation))
	assert.True(t, errors.Is(err, backend))
}

func TestParameterShift_WrongLength(t *testing.T) {
	h, a := testingpkg.IsingProblem(t)
	f, err := New(a, h, testingpkg.NewMockOracle(testingpkg.Quadratic(make([]float64, 6), 0)))
	require.NoError(t, err)

	_, err = ParameterShift{}.Gradient(context.Background(), f, []float64{1})
	assert.Error(t, err)
}

// nanBatch answers single calls normally and poisons one batch entry.
type nanBatch struct {
	oracle.Func
}

func (n nanBatch) EvaluateBatch(ctx context.Context, a ansatz.Ansatz, batch [][]float64, h *hamiltonian.Hamiltonian) ([]float64, error) {
	out := make([]float64, len(batch))
	out[len(out)-1] = math.NaN()
	return out, nil
}

func TestParameterShift_RejectsNonFiniteEnergies(t *testing.T) {
	h, a := testingpkg.IsingProblem(t)
	ctx := context.Background()

	for _, workers := range []int{1, 4} {
		mock := testingpkg.NewMockOracle(func([]float64) float64 { return math.Inf(1) })
		f, err := New(a, h, mock)
		require.NoError(t, err)

		_, err = ParameterShift{Workers: workers}.Gradient(ctx, f, make([]float64, 6))
		require.Error(t, err, "workers=%d", workers)
		assert.True(t, errors.Is(err, ErrOracleEvaluation))
		assert.True(t, errors.Is(err, ErrNonFiniteEnergy))
	}

	sim := statevector.NewSimulator()
	f, err := New(a, h, nanBatch{Func: sim.Evaluate})
	require.NoError(t, err)
	_, err = ParameterShift{}.Gradient(ctx, f, make([]float64, 6))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonFiniteEnergy))
	assert.Zero(t, f.ShiftEvaluations())
}
