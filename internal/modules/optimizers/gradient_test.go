package optimizers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vqe/internal/modules/cost"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
	"github.com/aristath/vqe/internal/modules/oracle/statevector"
	testingpkg "github.com/aristath/vqe/internal/testing"
)

func TestGradientDrivers_OneRecordPerIteration(t *testing.T) {
	for _, kind := range []Kind{KindGradientDescent, KindAdam} {
		t.Run(string(kind), func(t *testing.T) {
			fn, mock := quadraticFunction(t, []float64{0.4, -0.3})

			// Zero tolerance never triggers the |ΔE| test.
			res, err := lookup(t, kind).Optimize(context.Background(), fn, []float64{0, 0}, Settings{
				MaxIterations: 20,
				Tolerance:     0,
			})
			require.NoError(t, err)

			assert.Equal(t, 20, fn.Len())
			assert.Len(t, res.History, 20)
			assert.Equal(t, 20, res.Iterations)
			assert.Equal(t, StatusIterationLimit, res.Status)
			// One gradient (2 shifts per parameter) between consecutive records.
			assert.Equal(t, 19*2*2, fn.ShiftEvaluations())
			assert.Equal(t, 20+19*2*2, mock.Calls())
			for i, rec := range res.History {
				assert.Equal(t, i, rec.Iteration)
			}
		})
	}
}

func TestGradientDescent_StopsOnTolerance(t *testing.T) {
	fn, _ := quadraticFunction(t, []float64{0.4, -0.3})

	res, err := lookup(t, KindGradientDescent).Optimize(context.Background(), fn, []float64{0, 0}, Settings{
		MaxIterations: 500,
		Tolerance:     1e-6,
	})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Less(t, res.Evaluations, 500)
	assert.InDelta(t, -1.0, res.BestEnergy, 1e-5)

	energies := res.Energies()
	n := len(energies)
	assert.Less(t, energies[n-2]-energies[n-1], 1e-6)
}

func TestGradientDrivers_RotationGroundState(t *testing.T) {
	// E(θ) = cos θ, minimized at θ = π.
	h, a := testingpkg.RotationProblem(t, 1, 0)
	for _, kind := range []Kind{KindGradientDescent, KindAdam, KindBFGS} {
		t.Run(string(kind), func(t *testing.T) {
			fn, err := cost.New(a, h, statevector.NewSimulator())
			require.NoError(t, err)

			res, err := lookup(t, kind).Optimize(context.Background(), fn, []float64{0.5}, Settings{
				MaxIterations: 300,
				Tolerance:     1e-10,
			})
			require.NoError(t, err)
			assert.InDelta(t, -1.0, res.BestEnergy, 1e-4)
		})
	}
}

func TestBFGS_H2GroundEnergy(t *testing.T) {
	h, a := testingpkg.H2Problem(t)
	fn, err := cost.New(a, h, statevector.NewSimulator())
	require.NoError(t, err)

	res, err := lookup(t, KindBFGS).Optimize(context.Background(), fn, []float64{0}, Settings{
		MaxIterations: 100,
		Tolerance:     1e-9,
	})
	require.NoError(t, err)
	assert.InDelta(t, hamiltonian.H2ElectronicGroundEnergy, res.BestEnergy, 1e-6)
	assert.Greater(t, fn.ShiftEvaluations(), 0)
}

func TestGradientDrivers_CustomEstimator(t *testing.T) {
	fn, _ := quadraticFunction(t, []float64{0.4, -0.3})

	res, err := lookup(t, KindGradientDescent).Optimize(context.Background(), fn, []float64{0, 0}, Settings{
		MaxIterations: 200,
		Tolerance:     1e-10,
		LearningRate:  0.25,
		Gradient:      cost.FiniteDifference{Step: 1e-6},
	})
	require.NoError(t, err)
	// With the true gradient 2(θ−c) and lr 0.25 each step halves the distance.
	assert.InDelta(t, 0.4, res.BestParameters[0], 1e-4)
	assert.InDelta(t, -0.3, res.BestParameters[1], 1e-4)
}
