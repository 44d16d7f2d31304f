package optimizers

import (
	"context"
	"math"

	"github.com/aristath/vqe/internal/modules/cost"
)

// Adam moment parameters.
const (
	AdamBeta1   = 0.9
	AdamBeta2   = 0.999
	AdamEpsilon = 1e-8
)

// GradientDescent is θ ← θ − lr·∇E(θ).
type GradientDescent struct{}

func (*GradientDescent) Name() string { return string(KindGradientDescent) }

func (d *GradientDescent) Optimize(ctx context.Context, fn *cost.Function, initial []float64, settings Settings) (*Result, error) {
	r, err := begin(fn, KindGradientDescent, initial, settings)
	if err != nil {
		return nil, err
	}
	lr := settings.learningRate()
	return descend(ctx, r, initial, settings, func(_ int, theta, grad []float64) []float64 {
		next := make([]float64, len(theta))
		for i := range theta {
			next[i] = theta[i] - lr*grad[i]
		}
		return next
	})
}

// Adam is gradient descent with bias-corrected first and second moment
// estimates.
type Adam struct{}

func (*Adam) Name() string { return string(KindAdam) }

func (d *Adam) Optimize(ctx context.Context, fn *cost.Function, initial []float64, settings Settings) (*Result, error) {
	r, err := begin(fn, KindAdam, initial, settings)
	if err != nil {
		return nil, err
	}
	lr := settings.learningRate()
	m := make([]float64, len(initial))
	v := make([]float64, len(initial))
	return descend(ctx, r, initial, settings, func(step int, theta, grad []float64) []float64 {
		t := float64(step)
		c1 := 1 - math.Pow(AdamBeta1, t)
		c2 := 1 - math.Pow(AdamBeta2, t)
		next := make([]float64, len(theta))
		for i := range theta {
			m[i] = AdamBeta1*m[i] + (1-AdamBeta1)*grad[i]
			v[i] = AdamBeta2*v[i] + (1-AdamBeta2)*grad[i]*grad[i]
			mHat := m[i] / c1
			vHat := v[i] / c2
			next[i] = theta[i] - lr*mHat/(math.Sqrt(vHat)+AdamEpsilon)
		}
		return next
	})
}

// descend is the loop shared by the gradient drivers: one recorded cost call
// and at most one gradient per iteration, stopping when |E_t − E_{t−1}| drops
// below the tolerance. update receives the 1-based step number.
func descend(ctx context.Context, r *run, initial []float64, settings Settings,
	update func(step int, theta, grad []float64) []float64) (*Result, error) {
	est := settings.estimator()
	theta := clone(initial)
	prev := math.NaN()

	for it := 1; it <= settings.MaxIterations; it++ {
		e, exhausted, err := r.evaluate(ctx, theta)
		if err != nil {
			return nil, err
		}
		if exhausted {
			return r.finish(StatusBudgetExhausted, it-1)
		}
		if it > 1 && math.Abs(e-prev) < settings.Tolerance {
			return r.finish(StatusConverged, it)
		}
		prev = e
		if it == settings.MaxIterations {
			break
		}

		grad, err := est.Gradient(ctx, r.fn, theta)
		if err != nil {
			exhausted, abort := r.stop(err)
			if abort != nil {
				return nil, abort
			}
			if exhausted {
				return r.finish(StatusBudgetExhausted, it)
			}
		}
		theta = update(it, theta, grad)
	}
	return r.finish(StatusIterationLimit, settings.MaxIterations)
}
