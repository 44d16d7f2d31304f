package cost

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/vqe/internal/modules/oracle"
)

// Estimator computes ∇E(θ) without adding records to the history.
type Estimator interface {
	Gradient(ctx context.Context, f *Function, params []float64) ([]float64, error)
}

// ParameterShift is the exact two-point rule for gates generated by a Pauli
// with eigenvalues ±1/2:
//
//	∂E/∂θ_i = [E(θ + s e_i) − E(θ − s e_i)] / (2 sin s)
//
// which is [E(θ + π/2 e_i) − E(θ − π/2 e_i)] / 2 at the default shift.
// It costs exactly 2n oracle calls.
type ParameterShift struct {
	Shift   float64 // 0 means π/2
	Workers int     // concurrent oracle calls; <= 1 runs sequentially
}

// Gradient evaluates the 2n shifted energies, in one batch when the oracle
// supports it and otherwise through a bounded worker group.
func (p ParameterShift) Gradient(ctx context.Context, f *Function, params []float64) ([]float64, error) {
	shift := p.Shift
	if shift == 0 {
		shift = math.Pi / 2
	}
	denom := 2 * math.Sin(shift)
	if math.Abs(denom) < 1e-12 {
		return nil, fmt.Errorf("parameter shift %g has a vanishing denominator", shift)
	}
	return centered(ctx, f, params, shift, denom, p.Workers)
}

// FiniteDifference is the centered difference [E(θ+h e_i) − E(θ−h e_i)]/(2h).
// It is biased by O(h²) and by shot noise divided by h, so it is mainly a
// cross-check for ParameterShift.
type FiniteDifference struct {
	Step    float64 // 0 means 1e-5
	Workers int
}

// Gradient evaluates the centered differences.
func (d FiniteDifference) Gradient(ctx context.Context, f *Function, params []float64) ([]float64, error) {
	step := d.Step
	if step == 0 {
		step = 1e-5
	}
	return centered(ctx, f, params, step, 2*step, d.Workers)
}

// centered evaluates E(θ ± delta e_i) for every i and returns
// (E+ − E−)/denom per component.
func centered(ctx context.Context, f *Function, params []float64, delta, denom float64, workers int) ([]float64, error) {
	n := len(params)
	if n != f.NumParameters() {
		return nil, fmt.Errorf("gradient needs %d parameters, got %d", f.NumParameters(), n)
	}

	batch := make([][]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		plus := snapshot(params)
		plus[i] += delta
		minus := snapshot(params)
		minus[i] -= delta
		batch = append(batch, plus, minus)
	}

	energies, err := evaluateAll(ctx, f, batch, workers)
	if err != nil {
		return nil, err
	}

	grad := make([]float64, n)
	for i := 0; i < n; i++ {
		grad[i] = (energies[2*i] - energies[2*i+1]) / denom
	}
	return grad, nil
}

func evaluateAll(ctx context.Context, f *Function, batch [][]float64, workers int) ([]float64, error) {
	if b, ok := f.oracle.(oracle.BatchOracle); ok {
		if err := f.checkDeadline(ctx); err != nil {
			return nil, err
		}
		energies, err := b.EvaluateBatch(ctx, f.ansatz, batch, f.ham)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrBudgetExhausted, ctxErr)
			}
			return nil, &OracleEvaluationError{Iteration: -1, Parameters: snapshot(batch[0]), Err: err}
		}
		if len(energies) != len(batch) {
			return nil, &OracleEvaluationError{
				Iteration:  -1,
				Parameters: snapshot(batch[0]),
				Err:        fmt.Errorf("batch returned %d energies for %d inputs", len(energies), len(batch)),
			}
		}
		for i, e := range energies {
			if err := checkFinite(e); err != nil {
				return nil, &OracleEvaluationError{Iteration: -1, Parameters: snapshot(batch[i]), Err: err}
			}
		}
		f.mu.Lock()
		f.shifts += len(batch)
		f.mu.Unlock()
		return energies, nil
	}

	energies := make([]float64, len(batch))
	if workers <= 1 {
		for i, params := range batch {
			e, err := f.evaluateShift(ctx, params)
			if err != nil {
				return nil, err
			}
			energies[i] = e
		}
		return energies, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, params := range batch {
		i, params := i, params
		g.Go(func() error {
			e, err := f.evaluateShift(gctx, params)
			if err != nil {
				return err
			}
			energies[i] = e
			return nil
		})
	}
	// Wait reports the first failure; the cancellations it triggers in
	// sibling calls are discarded.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return energies, nil
}
