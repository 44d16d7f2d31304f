// Package optimizers holds the classical drivers that minimize a cost
// function: derivative-free searches, gradient methods, and an adaptive
// driver that runs several of them and keeps the best outcome.
package optimizers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aristath/vqe/internal/modules/cost"
)

// Kind names a driver.
type Kind string

const (
	KindNelderMead      Kind = "nelder-mead"
	KindPowell          Kind = "powell"
	KindCOBYLA          Kind = "cobyla"
	KindCMAES           Kind = "cmaes"
	KindGradientDescent Kind = "gradient-descent"
	KindAdam            Kind = "adam"
	KindBFGS            Kind = "bfgs"
	KindAdaptive        Kind = "adaptive"
)

// Status is the normalized termination reason of a run.
type Status string

const (
	StatusConverged       Status = "converged"
	StatusIterationLimit  Status = "iteration_limit"
	StatusEvaluationLimit Status = "evaluation_limit"
	StatusRuntimeLimit    Status = "runtime_limit"
	StatusBudgetExhausted Status = "budget_exhausted"
	StatusStalled         Status = "stalled"
)

// Default tuning values.
const (
	DefaultLearningRate = 0.1
	DefaultTolerance    = 1e-6
	// stallIterations is how many major iterations without an improvement
	// larger than the tolerance end a gonum-backed run.
	stallIterations = 20
)

// Settings configures a single driver run.
type Settings struct {
	MaxIterations int
	Tolerance     float64

	// LearningRate is used by gradient-descent and adam (0 means 0.1).
	LearningRate float64
	// Gradient overrides the estimator used by derivative-based drivers.
	// Nil means parameter shift with GradientWorkers workers.
	Gradient        cost.Estimator
	GradientWorkers int
	// Seed drives stochastic drivers (cmaes).
	Seed uint64
}

func (s Settings) learningRate() float64 {
	if s.LearningRate > 0 {
		return s.LearningRate
	}
	return DefaultLearningRate
}

func (s Settings) estimator() cost.Estimator {
	if s.Gradient != nil {
		return s.Gradient
	}
	return cost.ParameterShift{Workers: s.GradientWorkers}
}

func (s Settings) validate() error {
	if s.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", s.MaxIterations)
	}
	if s.Tolerance < 0 || math.IsNaN(s.Tolerance) {
		return fmt.Errorf("tolerance must be non-negative, got %v", s.Tolerance)
	}
	return nil
}

// CandidateOutcome summarizes one strategy tried by the adaptive driver.
type CandidateOutcome struct {
	Method      string  `json:"method" msgpack:"method"`
	BestEnergy  float64 `json:"best_energy" msgpack:"best_energy"`
	Evaluations int     `json:"evaluations" msgpack:"evaluations"`
	Converged   bool    `json:"converged" msgpack:"converged"`
	Status      Status  `json:"status,omitempty" msgpack:"status,omitempty"`
	Error       string  `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Result is the outcome of one optimization run. BestEnergy and
// BestParameters always come from the recorded history.
type Result struct {
	Method          string                  `json:"method"`
	BestEnergy      float64                 `json:"best_energy"`
	BestParameters  []float64               `json:"best_parameters"`
	History         []cost.EvaluationRecord `json:"history"`
	Converged       bool                    `json:"converged"`
	Status          Status                  `json:"status"`
	Iterations      int                     `json:"iterations"`
	Evaluations     int                     `json:"evaluations"`
	BudgetExhausted bool                    `json:"budget_exhausted"`
	Runtime         time.Duration           `json:"runtime"`
	// Strategy is the winning candidate when Method is adaptive.
	Strategy   string             `json:"strategy,omitempty"`
	Candidates []CandidateOutcome `json:"candidates,omitempty"`
}

// Energies returns the energy sequence of the history.
func (r *Result) Energies() []float64 {
	out := make([]float64, len(r.History))
	for i, rec := range r.History {
		out[i] = rec.Energy
	}
	return out
}

// Driver minimizes fn starting from initial. Every evaluation goes through
// fn so the history is recorded the same way for every driver. Drivers never
// modify initial.
type Driver interface {
	Name() string
	Optimize(ctx context.Context, fn *cost.Function, initial []float64, settings Settings) (*Result, error)
}

// UnknownMethodError is returned for a driver name the registry cannot resolve.
type UnknownMethodError struct {
	Method string
	Known  []string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown optimization method %q (known: %s)", e.Method, strings.Join(e.Known, ", "))
}

// AllStrategiesFailedError is returned by the adaptive driver when every
// candidate failed. Failures maps method name to its error.
type AllStrategiesFailedError struct {
	Failures map[string]error
}

func (e *AllStrategiesFailedError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %v", name, e.Failures[name])
	}
	return fmt.Sprintf("all %d optimization strategies failed: %s", len(names), strings.Join(parts, "; "))
}

// run carries the bookkeeping shared by all drivers.
type run struct {
	fn     *cost.Function
	method Kind
	start  time.Time
}

func begin(fn *cost.Function, method Kind, initial []float64, settings Settings) (*run, error) {
	if fn == nil {
		return nil, errors.New("optimizer needs a cost function")
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if len(initial) != fn.NumParameters() {
		return nil, fmt.Errorf("%s: initial point has %d parameters, cost function expects %d",
			method, len(initial), fn.NumParameters())
	}
	return &run{fn: fn, method: method, start: time.Now()}, nil
}

// stop inspects an evaluation error. A spent budget is a clean stop; any
// other error aborts the run.
func (r *run) stop(err error) (bool, error) {
	if errors.Is(err, cost.ErrBudgetExhausted) {
		return true, nil
	}
	return false, fmt.Errorf("%s: %w", r.method, err)
}

// finish builds the Result from the recorded history.
func (r *run) finish(status Status, iterations int) (*Result, error) {
	best, ok := r.fn.Best()
	if !ok {
		if status == StatusBudgetExhausted {
			return nil, fmt.Errorf("%s: %w before the first evaluation", r.method, cost.ErrBudgetExhausted)
		}
		return nil, fmt.Errorf("%s: no evaluations recorded", r.method)
	}
	history := r.fn.Records()
	return &Result{
		Method:          string(r.method),
		BestEnergy:      best.Energy,
		BestParameters:  best.Parameters,
		History:         history,
		Converged:       status == StatusConverged,
		Status:          status,
		Iterations:      iterations,
		Evaluations:     len(history),
		BudgetExhausted: status == StatusBudgetExhausted,
		Runtime:         time.Since(r.start),
	}, nil
}

// evaluate is a thin helper that turns the error into a stop decision.
func (r *run) evaluate(ctx context.Context, params []float64) (float64, bool, error) {
	e, err := r.fn.Evaluate(ctx, params)
	if err != nil {
		exhausted, abort := r.stop(err)
		return 0, exhausted, abort
	}
	return e, false, nil
}

func clone(x []float64) []float64 {
	return append([]float64(nil), x...)
}
