package optimizers

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vqe/internal/modules/cost"
)

var errBroken = errors.New("driver exploded")

// brokenDriver fails after a single evaluation.
type brokenDriver struct{}

func (brokenDriver) Name() string { return "broken" }

func (brokenDriver) Optimize(ctx context.Context, fn *cost.Function, initial []float64, _ Settings) (*Result, error) {
	if _, err := fn.Evaluate(ctx, initial); err != nil {
		return nil, err
	}
	return nil, errBroken
}

// nanDriver reports a result whose best energy is NaN.
type nanDriver struct{}

func (nanDriver) Name() string { return "nan" }

func (nanDriver) Optimize(ctx context.Context, fn *cost.Function, initial []float64, _ Settings) (*Result, error) {
	return &Result{Method: "nan", BestEnergy: math.NaN(), BestParameters: initial, Evaluations: 1}, nil
}

func registryWithBroken() *Registry {
	reg := newRegistry()
	reg.Register("broken", func() Driver { return brokenDriver{} })
	reg.Register("nan", func() Driver { return nanDriver{} })
	return reg
}

var adaptiveSettings = Settings{MaxIterations: 60, Tolerance: 1e-6}

func TestAdaptive_NeverWorseThanBestCandidate(t *testing.T) {
	center := []float64{0.6, -0.9, 0.2}
	initial := []float64{0, 0, 0}
	candidates := []string{"cobyla", "nelder-mead", "powell"}

	best := 0.0
	for i, name := range candidates {
		fn, _ := quadraticFunction(t, center)
		res, err := lookup(t, Kind(name)).Optimize(context.Background(), fn, initial, adaptiveSettings)
		require.NoError(t, err)
		if i == 0 || res.BestEnergy < best {
			best = res.BestEnergy
		}
	}

	for _, parallel := range []bool{false, true} {
		fn, _ := quadraticFunction(t, center)
		drv := NewAdaptive(newRegistry(), candidates, parallel, zerolog.Nop())
		res, err := drv.Optimize(context.Background(), fn, initial, adaptiveSettings)
		require.NoError(t, err)

		assert.Equal(t, best, res.BestEnergy, "parallel=%v", parallel)
		assert.Equal(t, "adaptive", res.Method)
		assert.Contains(t, candidates, res.Strategy)
		require.Len(t, res.Candidates, 3)
		for i, c := range res.Candidates {
			assert.Equal(t, candidates[i], c.Method)
			assert.Empty(t, c.Error)
			assert.LessOrEqual(t, res.BestEnergy, c.BestEnergy)
		}
		assert.Equal(t, minEnergy(res.History), res.BestEnergy)
		assert.Zero(t, fn.Len(), "candidates run on forks of the cost function")

		state := drv.State()
		assert.Equal(t, PhaseDone, state.Phase)
		assert.Equal(t, 3, state.Completed)
		assert.Empty(t, state.Running)
	}
}

func TestAdaptive_SkipsFailingCandidate(t *testing.T) {
	fn, _ := quadraticFunction(t, []float64{0.5, 0.5})
	drv := NewAdaptive(registryWithBroken(), []string{"broken", "cobyla"}, false, zerolog.Nop())

	res, err := drv.Optimize(context.Background(), fn, []float64{0, 0}, adaptiveSettings)
	require.NoError(t, err)
	assert.Equal(t, "cobyla", res.Strategy)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "broken", res.Candidates[0].Method)
	assert.Contains(t, res.Candidates[0].Error, "driver exploded")
	assert.Empty(t, res.Candidates[1].Error)
}

func TestAdaptive_AllStrategiesFailed(t *testing.T) {
	fn, mock := quadraticFunction(t, []float64{0.5, 0.5})
	mock.SetError(errors.New("backend offline"))
	drv := NewAdaptive(registryWithBroken(), []string{"broken", "nelder-mead"}, true, zerolog.Nop())

	_, err := drv.Optimize(context.Background(), fn, []float64{0, 0}, adaptiveSettings)
	require.Error(t, err)

	var all *AllStrategiesFailedError
	require.True(t, errors.As(err, &all))
	assert.Len(t, all.Failures, 2)
	assert.True(t, errors.Is(all.Failures["nelder-mead"], cost.ErrOracleEvaluation))
	assert.Contains(t, err.Error(), "broken")
}

func TestAdaptive_RejectsBadCandidates(t *testing.T) {
	fn, _ := quadraticFunction(t, []float64{0.5, 0.5})

	_, err := NewAdaptive(newRegistry(), []string{"cobyla", "anneal"}, false, zerolog.Nop()).
		Optimize(context.Background(), fn, []float64{0, 0}, adaptiveSettings)
	var unknown *UnknownMethodError
	assert.True(t, errors.As(err, &unknown))

	_, err = NewAdaptive(newRegistry(), []string{"adaptive"}, false, zerolog.Nop()).
		Optimize(context.Background(), fn, []float64{0, 0}, adaptiveSettings)
	assert.Error(t, err)
}

func TestAdaptive_DefaultCandidatesFromRegistry(t *testing.T) {
	fn, _ := quadraticFunction(t, []float64{0.5, 0.5})
	drv, err := newRegistry().Lookup("adaptive")
	require.NoError(t, err)

	res, err := drv.Optimize(context.Background(), fn, []float64{0, 0}, adaptiveSettings)
	require.NoError(t, err)
	require.Len(t, res.Candidates, len(DefaultCandidates))
	assert.Equal(t, DefaultCandidates[0], res.Candidates[0].Method)
	assert.InDelta(t, -1.0, res.BestEnergy, 1e-3)
}

func TestAdaptive_NonFiniteCandidateNeverWins(t *testing.T) {
	fn, _ := quadraticFunction(t, []float64{0.5, 0.5})
	drv := NewAdaptive(registryWithBroken(), []string{"nan", "cobyla"}, true, zerolog.Nop())

	res, err := drv.Optimize(context.Background(), fn, []float64{0, 0}, adaptiveSettings)
	require.NoError(t, err)
	assert.Equal(t, "cobyla", res.Strategy)
	assert.InDelta(t, -1.0, res.BestEnergy, 1e-3)
	require.Len(t, res.Candidates, 2)
	assert.Contains(t, res.Candidates[0].Error, "non-finite")
}

func TestAdaptive_NaNFromOracleFailsOnlyThatCandidate(t *testing.T) {
	fn, mock := quadraticFunction(t, []float64{0.5, 0.5})
	quadratic := func(p []float64) float64 {
		return (p[0]-0.5)*(p[0]-0.5) + (p[1]-0.5)*(p[1]-0.5) - 1
	}
	var calls atomic.Int64
	mock.SetEnergy(func(p []float64) float64 {
		if calls.Add(1) == 1 {
			return math.NaN()
		}
		return quadratic(p)
	})

	// Sequential, so the first call belongs to cobyla.
	drv := NewAdaptive(newRegistry(), []string{"cobyla", "nelder-mead"}, false, zerolog.Nop())
	res, err := drv.Optimize(context.Background(), fn, []float64{0, 0}, adaptiveSettings)
	require.NoError(t, err)

	assert.Equal(t, "nelder-mead", res.Strategy)
	assert.False(t, math.IsNaN(res.BestEnergy))
	assert.Equal(t, minEnergy(res.History), res.BestEnergy)
	require.Len(t, res.Candidates, 2)
	assert.Contains(t, res.Candidates[0].Error, "non-finite")
	for _, r := range res.History {
		assert.False(t, math.IsNaN(r.Energy))
	}
}

func TestGonumDrivers_SurfaceNonFiniteEnergy(t *testing.T) {
	for _, kind := range []Kind{KindNelderMead, KindPowell, KindCOBYLA, KindBFGS} {
		fn, mock := quadraticFunction(t, []float64{0.5, 0.5})
		mock.SetEnergy(func([]float64) float64 { return math.NaN() })

		_, err := lookup(t, kind).Optimize(context.Background(), fn, []float64{0, 0}, adaptiveSettings)
		require.Error(t, err, "method=%s", kind)
		assert.True(t, errors.Is(err, cost.ErrNonFiniteEnergy), "method=%s", kind)
		assert.Zero(t, fn.Len())
	}
}

func TestAdaptive_ObservedRecordsNameTheirCandidate(t *testing.T) {
	var mu sync.Mutex
	perSource := make(map[string][]int)
	observer := func(r cost.EvaluationRecord) {
		mu.Lock()
		defer mu.Unlock()
		perSource[r.Source] = append(perSource[r.Source], r.Iteration)
	}
	fn, _ := quadraticFunction(t, []float64{0.5, 0.5}, cost.WithObserver(observer))
	candidates := []string{"cobyla", "nelder-mead"}
	drv := NewAdaptive(newRegistry(), candidates, true, zerolog.Nop())

	res, err := drv.Optimize(context.Background(), fn, []float64{0, 0}, adaptiveSettings)
	require.NoError(t, err)

	require.Len(t, perSource, 2)
	for _, name := range candidates {
		iterations := perSource[name]
		require.NotEmpty(t, iterations, name)
		for i, it := range iterations {
			assert.Equal(t, i, it, "%s numbers its own records", name)
		}
	}
	for _, r := range res.History {
		assert.Equal(t, res.Strategy, r.Source)
	}
}
