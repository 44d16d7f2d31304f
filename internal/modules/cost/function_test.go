package cost

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vqe/internal/modules/hamiltonian"
	testingpkg "github.com/aristath/vqe/internal/testing"
)

func newQuadraticFunction(t *testing.T, opts ...Option) (*Function, *testingpkg.MockOracle) {
	t.Helper()
	h, a := testingpkg.IsingProblem(t)
	mock := testingpkg.NewMockOracle(testingpkg.Quadratic(make([]float64, a.NumParameters()), -1))
	f, err := New(a, h, mock, opts...)
	require.NoError(t, err)
	return f, mock
}

func TestEvaluate_RecordsEveryCall(t *testing.T) {
	f, mock := newQuadraticFunction(t)
	ctx := context.Background()

	params := make([]float64, 6)
	params[0] = 1
	e, err := f.Evaluate(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, 0.0, e)

	params[0] = 2 // mutate after the call; the record must keep its snapshot
	_, err = f.Evaluate(ctx, params)
	require.NoError(t, err)

	records := f.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].Iteration)
	assert.Equal(t, 1, records[1].Iteration)
	assert.Equal(t, 1.0, records[0].Parameters[0])
	assert.Equal(t, 2.0, records[1].Parameters[0])
	assert.Equal(t, 3.0, records[1].Energy)
	assert.Equal(t, 2, mock.Calls())
}

func TestHistory_ReturnsCopies(t *testing.T) {
	f, _ := newQuadraticFunction(t)
	_, err := f.Evaluate(context.Background(), make([]float64, 6))
	require.NoError(t, err)

	energies, params := f.History()
	require.Len(t, energies, 1)
	require.Len(t, params, 1)
	energies[0] = 42
	params[0][0] = 42

	again, againParams := f.History()
	assert.Equal(t, -1.0, again[0])
	assert.Equal(t, 0.0, againParams[0][0])
}

func TestEvaluate_OracleFailureIsNotRecorded(t *testing.T) {
	f, mock := newQuadraticFunction(t)
	backend := errors.New("backend unavailable")
	mock.FailOnCall(2, backend)

	ctx := context.Background()
	_, err := f.Evaluate(ctx, make([]float64, 6))
	require.NoError(t, err)

	_, err = f.Evaluate(ctx, make([]float64, 6))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOracleEvaluation))
	assert.True(t, errors.Is(err, backend))

	var oerr *OracleEvaluationError
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, 1, oerr.Iteration)
	assert.Len(t, oerr.Parameters, 6)

	assert.Equal(t, 1, f.Len())
}

func TestEvaluate_NonFiniteEnergyIsAnOracleFailure(t *testing.T) {
	ctx := context.Background()
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		f, mock := newQuadraticFunction(t)
		_, err := f.Evaluate(ctx, make([]float64, 6))
		require.NoError(t, err)

		mock.SetEnergy(func([]float64) float64 { return bad })
		_, err = f.Evaluate(ctx, make([]float64, 6))
		require.Error(t, err, "energy=%v", bad)
		assert.True(t, errors.Is(err, ErrOracleEvaluation))
		assert.True(t, errors.Is(err, ErrNonFiniteEnergy))

		var oerr *OracleEvaluationError
		require.True(t, errors.As(err, &oerr))
		assert.Equal(t, 1, oerr.Iteration)

		assert.Equal(t, 1, f.Len(), "non-finite energies are never recorded")
		best, ok := f.Best()
		require.True(t, ok)
		assert.Equal(t, -1.0, best.Energy)
	}
}

func TestEvaluate_BudgetExhaustion(t *testing.T) {
	f, mock := newQuadraticFunction(t, WithBudget(2, time.Time{}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.Evaluate(ctx, make([]float64, 6))
		require.NoError(t, err)
	}
	assert.True(t, f.Exhausted(ctx))

	_, err := f.Evaluate(ctx, make([]float64, 6))
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
	assert.Equal(t, 2, mock.Calls(), "oracle must not be called past the budget")
}

func TestEvaluate_DeadlineAndCancellation(t *testing.T) {
	f, mock := newQuadraticFunction(t, WithBudget(0, time.Now().Add(-time.Second)))
	_, err := f.Evaluate(context.Background(), make([]float64, 6))
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
	assert.Zero(t, mock.Calls())

	g, _ := newQuadraticFunction(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Evaluate(ctx, make([]float64, 6))
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
}

func TestFork_HasFreshHistory(t *testing.T) {
	var seen []int
	f, _ := newQuadraticFunction(t, WithObserver(func(r EvaluationRecord) { seen = append(seen, r.Iteration) }))
	_, err := f.Evaluate(context.Background(), make([]float64, 6))
	require.NoError(t, err)

	fork := f.Fork()
	assert.Zero(t, fork.Len())

	_, err = fork.Evaluate(context.Background(), make([]float64, 6))
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())
	assert.Equal(t, 1, fork.Len())
	assert.Equal(t, []int{0, 0}, seen, "observers carry over to the fork")
}

func TestForkStream_TagsRecords(t *testing.T) {
	var seen []EvaluationRecord
	f, _ := newQuadraticFunction(t, WithObserver(func(r EvaluationRecord) { seen = append(seen, r) }))
	ctx := context.Background()

	fork := f.ForkStream("powell", 1)
	_, err := fork.Evaluate(ctx, make([]float64, 6))
	require.NoError(t, err)
	_, err = f.Evaluate(ctx, make([]float64, 6))
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, "powell", seen[0].Source)
	assert.Empty(t, seen[1].Source)
	assert.Equal(t, "powell", fork.Records()[0].Source)
	assert.Equal(t, "powell", fork.Fork().ForkStream("powell", 2).source)
}

func TestBest(t *testing.T) {
	f, _ := newQuadraticFunction(t)
	_, ok := f.Best()
	assert.False(t, ok)

	ctx := context.Background()
	for _, x := range []float64{2, 0.5, 0.5, 1} {
		p := make([]float64, 6)
		p[0] = x
		_, err := f.Evaluate(ctx, p)
		require.NoError(t, err)
	}

	best, ok := f.Best()
	require.True(t, ok)
	assert.Equal(t, 1, best.Iteration, "ties keep the earliest record")
	assert.InDelta(t, -0.75, best.Energy, 1e-12)
}

func TestNew_Validation(t *testing.T) {
	_, a := testingpkg.IsingProblem(t)
	h2, err := hamiltonian.NewH2()
	require.NoError(t, err)
	mock := testingpkg.NewMockOracle(testingpkg.Quadratic(make([]float64, 6), 0))

	_, err = New(a, h2, mock)
	assert.Error(t, err, "qubit mismatch")

	_, err = New(a, nil, mock)
	assert.Error(t, err)
}
