package optimizers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/vqe/internal/modules/cost"
)

// Phase is the lifecycle stage of an adaptive run.
type Phase string

const (
	PhasePending Phase = "PENDING"
	PhaseRunning Phase = "RUNNING"
	PhaseDone    Phase = "DONE"
)

// State is a snapshot of an adaptive run.
type State struct {
	Phase     Phase
	Running   []string
	Completed int
	Total     int
}

// Adaptive runs every candidate strategy to completion, each on its own
// fork of the cost function, and returns the lowest energy found. A failing
// candidate is recorded and skipped.
type Adaptive struct {
	registry   *Registry
	candidates []string
	parallel   bool
	log        zerolog.Logger

	mu      sync.Mutex
	phase   Phase
	running map[string]bool
	done    int
}

// NewAdaptive builds an adaptive driver over candidates resolved through
// registry. With parallel set the candidates run concurrently.
func NewAdaptive(registry *Registry, candidates []string, parallel bool, log zerolog.Logger) *Adaptive {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	return &Adaptive{
		registry:   registry,
		candidates: append([]string(nil), candidates...),
		parallel:   parallel,
		log:        log.With().Str("driver", string(KindAdaptive)).Logger(),
		phase:      PhasePending,
		running:    make(map[string]bool),
	}
}

func (*Adaptive) Name() string { return string(KindAdaptive) }

// State reports the current phase and the candidates in flight.
func (a *Adaptive) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := State{Phase: a.phase, Completed: a.done, Total: len(a.candidates)}
	for _, name := range a.candidates {
		if a.running[name] {
			s.Running = append(s.Running, name)
		}
	}
	return s
}

func (a *Adaptive) transition(method string, started bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if started {
		a.phase = PhaseRunning
		a.running[method] = true
		return
	}
	delete(a.running, method)
	a.done++
	if a.done == len(a.candidates) {
		a.phase = PhaseDone
	}
}

type attempt struct {
	method string
	result *Result
	err    error
}

func (a *Adaptive) Optimize(ctx context.Context, fn *cost.Function, initial []float64, settings Settings) (*Result, error) {
	r, err := begin(fn, KindAdaptive, initial, settings)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.phase, a.done = PhasePending, 0
	a.running = make(map[string]bool)
	a.mu.Unlock()

	drivers := make([]Driver, len(a.candidates))
	for i, name := range a.candidates {
		kind, err := a.registry.Resolve(name)
		if err != nil {
			return nil, err
		}
		if kind == KindAdaptive {
			return nil, fmt.Errorf("adaptive driver cannot race itself")
		}
		if drivers[i], err = a.registry.Lookup(name); err != nil {
			return nil, err
		}
	}

	attempts := make([]attempt, len(drivers))
	runOne := func(i int) {
		name := drivers[i].Name()
		a.transition(name, true)
		a.log.Info().Str("method", name).Msg("Starting candidate")

		// Each candidate draws from its own stream so seeded sampling runs
		// give the same outcome in parallel and in sequence.
		res, err := drivers[i].Optimize(ctx, fn.ForkStream(name, uint64(i)), initial, settings)
		attempts[i] = attempt{method: name, result: res, err: err}

		a.transition(name, false)
		if err != nil {
			a.log.Warn().Err(err).Str("method", name).Msg("Candidate failed")
			return
		}
		a.log.Info().
			Str("method", name).
			Float64("best_energy", res.BestEnergy).
			Int("evaluations", res.Evaluations).
			Msg("Candidate finished")
	}

	if a.parallel {
		var g errgroup.Group
		for i := range drivers {
			g.Go(func() error {
				runOne(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range drivers {
			runOne(i)
		}
	}

	return a.pick(r, attempts)
}

// pick selects the lowest best energy; ties go to the earlier candidate.
// A candidate reporting a non-finite energy counts as failed.
func (a *Adaptive) pick(r *run, attempts []attempt) (*Result, error) {
	var winner *Result
	failures := make(map[string]error)
	outcomes := make([]CandidateOutcome, 0, len(attempts))

	for _, at := range attempts {
		if at.err == nil && !isFinite(at.result.BestEnergy) {
			at.err = fmt.Errorf("%s: %w", at.method, cost.ErrNonFiniteEnergy)
		}
		if at.err != nil {
			failures[at.method] = at.err
			outcomes = append(outcomes, CandidateOutcome{Method: at.method, Error: at.err.Error()})
			continue
		}
		outcomes = append(outcomes, CandidateOutcome{
			Method:      at.method,
			BestEnergy:  at.result.BestEnergy,
			Evaluations: at.result.Evaluations,
			Converged:   at.result.Converged,
			Status:      at.result.Status,
		})
		if winner == nil || at.result.BestEnergy < winner.BestEnergy {
			winner = at.result
		}
	}

	if winner == nil {
		// A shared deadline that expired before any candidate recorded an
		// evaluation is a spent budget, not a strategy failure.
		allBudget := true
		for _, err := range failures {
			if !errors.Is(err, cost.ErrBudgetExhausted) {
				allBudget = false
			}
		}
		if allBudget {
			return nil, fmt.Errorf("%s: %w", KindAdaptive, cost.ErrBudgetExhausted)
		}
		return nil, &AllStrategiesFailedError{Failures: failures}
	}

	out := *winner
	out.Method = string(KindAdaptive)
	out.Strategy = winner.Method
	out.Candidates = outcomes
	out.Runtime = time.Since(r.start)
	a.log.Info().
		Str("strategy", out.Strategy).
		Float64("best_energy", out.BestEnergy).
		Int("failed", len(failures)).
		Msg("Adaptive optimization selected strategy")
	return &out, nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
