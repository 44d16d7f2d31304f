package optimizers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/vqe/internal/modules/cost"
)

// NelderMead is the downhill simplex search from gonum.
type NelderMead struct {
	// SimplexSize is the edge length of the initial simplex (0 means gonum's
	// default of 0.05).
	SimplexSize float64
}

func (*NelderMead) Name() string { return string(KindNelderMead) }

func (d *NelderMead) Optimize(ctx context.Context, fn *cost.Function, initial []float64, settings Settings) (*Result, error) {
	r, err := begin(fn, KindNelderMead, initial, settings)
	if err != nil {
		return nil, err
	}
	return minimizeGonum(ctx, r, initial, settings, &optimize.NelderMead{SimplexSize: d.SimplexSize}, nil)
}

// BFGS is gonum's quasi-Newton method with gradients from the configured
// estimator.
type BFGS struct{}

func (*BFGS) Name() string { return string(KindBFGS) }

func (d *BFGS) Optimize(ctx context.Context, fn *cost.Function, initial []float64, settings Settings) (*Result, error) {
	r, err := begin(fn, KindBFGS, initial, settings)
	if err != nil {
		return nil, err
	}
	return minimizeGonum(ctx, r, initial, settings, &optimize.BFGS{}, settings.estimator())
}

// CMAES is gonum's covariance matrix adaptation evolution strategy. Runs are
// reproducible for a fixed Settings.Seed.
type CMAES struct {
	// StepSize is the initial standard deviation (0 means 0.5).
	StepSize float64
	// Population is the number of samples per generation (0 means gonum's default).
	Population int
}

func (*CMAES) Name() string { return string(KindCMAES) }

func (d *CMAES) Optimize(ctx context.Context, fn *cost.Function, initial []float64, settings Settings) (*Result, error) {
	r, err := begin(fn, KindCMAES, initial, settings)
	if err != nil {
		return nil, err
	}
	method := &optimize.CmaEsChol{
		InitStepSize: d.StepSize,
		Population:   d.Population,
		Src:          rand.NewPCG(settings.Seed, settings.Seed^0x9e3779b97f4a7c15),
	}
	return minimizeGonum(ctx, r, initial, settings, method, nil)
}

// gonumProblem adapts a cost function to optimize.Problem. The first
// evaluation error is kept and reported through Status, which ends the run.
type gonumProblem struct {
	ctx context.Context
	fn  *cost.Function
	est cost.Estimator

	mu  sync.Mutex
	err error
}

func (p *gonumProblem) failed() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *gonumProblem) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

func (p *gonumProblem) problem() optimize.Problem {
	prob := optimize.Problem{
		Func: func(x []float64) float64 {
			if p.failed() != nil {
				return math.Inf(1)
			}
			e, err := p.fn.Evaluate(p.ctx, x)
			if err != nil {
				p.fail(err)
				return math.Inf(1)
			}
			return e
		},
		Status: func() (optimize.Status, error) {
			if err := p.failed(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	if p.est != nil {
		prob.Grad = func(grad, x []float64) {
			if p.failed() != nil {
				return
			}
			g, err := p.est.Gradient(p.ctx, p.fn, x)
			if err != nil {
				p.fail(err)
				return
			}
			copy(grad, g)
		}
	}
	return prob
}

func minimizeGonum(ctx context.Context, r *run, initial []float64, settings Settings, method optimize.Method, est cost.Estimator) (*Result, error) {
	p := &gonumProblem{ctx: ctx, fn: r.fn, est: est}
	gs := &optimize.Settings{
		MajorIterations: settings.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   settings.Tolerance,
			Iterations: stallIterations,
		},
	}
	if est != nil {
		gs.GradientThreshold = settings.Tolerance
	}

	res, err := optimize.Minimize(p.problem(), clone(initial), gs, method)
	if evalErr := p.failed(); evalErr != nil {
		exhausted, abort := r.stop(evalErr)
		if abort != nil {
			return nil, abort
		}
		if exhausted {
			return r.finish(StatusBudgetExhausted, majorIterations(res))
		}
	}

	status := StatusStalled
	if res != nil {
		status = normalizeStatus(res.Status)
	}
	if err != nil {
		// Line search failures near the minimum still leave a usable history.
		if !lineSearchFailure(err) || r.fn.Len() == 0 {
			return nil, fmt.Errorf("%s: %w", r.method, err)
		}
	}
	return r.finish(status, majorIterations(res))
}

func lineSearchFailure(err error) bool {
	return errors.Is(err, optimize.ErrLinesearcherFailure) ||
		errors.Is(err, optimize.ErrNoProgress) ||
		errors.Is(err, optimize.ErrNonDescentDirection)
}

func majorIterations(res *optimize.Result) int {
	if res == nil {
		return 0
	}
	return res.Stats.MajorIterations
}

// normalizeStatus folds gonum's termination reasons into Status.
func normalizeStatus(s optimize.Status) Status {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold,
		optimize.MethodConverge, optimize.StepConvergence, optimize.FunctionThreshold:
		return StatusConverged
	case optimize.IterationLimit:
		return StatusIterationLimit
	case optimize.FunctionEvaluationLimit, optimize.GradientEvaluationLimit, optimize.HessianEvaluationLimit:
		return StatusEvaluationLimit
	case optimize.RuntimeLimit:
		return StatusRuntimeLimit
	default:
		return StatusStalled
	}
}
