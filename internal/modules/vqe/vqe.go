// Package vqe composes a Hamiltonian, an ansatz, an expectation oracle and
// an optimizer driver into the variational eigensolver loop.
package vqe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vqe/internal/metrics"
	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/cost"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
	"github.com/aristath/vqe/internal/modules/optimizers"
	"github.com/aristath/vqe/internal/modules/oracle"
)

// Options configures a solver. Every field is optional.
type Options struct {
	// Oracle is used as-is when set; otherwise Backend selects a built-in one.
	Oracle  oracle.Oracle
	Backend oracle.Options

	// Seed seeds InitialParameters and stochastic drivers. Nil means
	// ansatz.DefaultSeed.
	Seed *uint64

	Registry *optimizers.Registry
	Metrics  *metrics.Metrics

	// Candidates overrides the adaptive driver's strategy list.
	Candidates []string
	// SequentialCandidates runs adaptive candidates one after another.
	SequentialCandidates bool

	GradientWorkers int
	LearningRate    float64

	// Timeout and MaxEvaluations bound every Optimize call. Hitting either
	// ends the run with the best result so far.
	Timeout        time.Duration
	MaxEvaluations int

	// Observer sees every recorded evaluation.
	Observer cost.Observer
}

// VQE runs optimizations for one (Hamiltonian, ansatz) pair. Each Optimize
// call builds its own cost function and history; nothing is shared between
// calls except the last result kept for History.
type VQE struct {
	ham      *hamiltonian.Hamiltonian
	ansatz   ansatz.Ansatz
	oracle   oracle.Oracle
	registry *optimizers.Registry
	opts     Options
	log      zerolog.Logger

	mu   sync.RWMutex
	last *optimizers.Result
}

// New validates the pair and resolves the oracle.
func New(h *hamiltonian.Hamiltonian, a ansatz.Ansatz, opts Options, log zerolog.Logger) (*VQE, error) {
	if h == nil || a == nil {
		return nil, errors.New("vqe needs a hamiltonian and an ansatz")
	}
	if h.NumQubits() != a.NumQubits() {
		return nil, fmt.Errorf("ansatz %s acts on %d qubits, hamiltonian on %d", a.Name(), a.NumQubits(), h.NumQubits())
	}

	o := opts.Oracle
	if o == nil {
		var err error
		if o, err = oracle.New(opts.Backend); err != nil {
			return nil, err
		}
	}
	o = oracle.NewMetered(o, opts.Metrics)

	registry := opts.Registry
	if registry == nil {
		registry = optimizers.NewRegistry(log)
	}

	return &VQE{
		ham:      h,
		ansatz:   a,
		oracle:   o,
		registry: registry,
		opts:     opts,
		log: log.With().
			Str("component", "vqe").
			Str("ansatz", a.Name()).
			Int("qubits", h.NumQubits()).
			Logger(),
	}, nil
}

// Hamiltonian returns the target Hamiltonian.
func (v *VQE) Hamiltonian() *hamiltonian.Hamiltonian { return v.ham }

// Ansatz returns the trial-state family.
func (v *VQE) Ansatz() ansatz.Ansatz { return v.ansatz }

// Backend names the oracle in use.
func (v *VQE) Backend() string { return oracle.Name(v.oracle) }

func (v *VQE) seed() uint64 {
	if v.opts.Seed != nil {
		return *v.opts.Seed
	}
	return ansatz.DefaultSeed
}

// InitialParameters draws a starting point from the ansatz with the
// configured seed.
func (v *VQE) InitialParameters() []float64 {
	return v.ansatz.InitialParameters(v.seed())
}

// Optimize minimizes ⟨ψ(θ)|H|ψ(θ)⟩ from initial with the named method.
func (v *VQE) Optimize(ctx context.Context, initial []float64, method string, maxIterations int, tolerance float64) (*optimizers.Result, error) {
	if err := ansatz.ValidateParameters(v.ansatz, initial); err != nil {
		return nil, err
	}

	driver, err := v.driver(method)
	if err != nil {
		return nil, err
	}

	var deadline time.Time
	if v.opts.Timeout > 0 {
		deadline = time.Now().Add(v.opts.Timeout)
	}
	fn, err := cost.New(v.ansatz, v.ham, v.oracle,
		cost.WithLogger(v.log),
		cost.WithObserver(v.opts.Observer),
		cost.WithBudget(v.opts.MaxEvaluations, deadline),
	)
	if err != nil {
		return nil, err
	}

	settings := optimizers.Settings{
		MaxIterations:   maxIterations,
		Tolerance:       tolerance,
		LearningRate:    v.opts.LearningRate,
		GradientWorkers: v.opts.GradientWorkers,
		Seed:            v.seed(),
	}

	v.log.Info().
		Str("method", driver.Name()).
		Int("max_iterations", maxIterations).
		Float64("tolerance", tolerance).
		Str("backend", v.Backend()).
		Msg("Starting optimization")

	result, err := driver.Optimize(ctx, fn, initial, settings)
	if err != nil {
		if v.opts.Metrics != nil {
			v.opts.Metrics.ObserveRun(driver.Name(), "error", fn.Len(), 0)
		}
		v.log.Error().Err(err).Str("method", driver.Name()).Msg("Optimization failed")
		return nil, err
	}

	if v.opts.Metrics != nil {
		v.opts.Metrics.ObserveRun(result.Method, string(result.Status), result.Evaluations, result.BestEnergy)
	}
	v.log.Info().
		Str("method", result.Method).
		Str("status", string(result.Status)).
		Float64("best_energy", result.BestEnergy).
		Int("evaluations", result.Evaluations).
		Dur("runtime", result.Runtime).
		Msg("Optimization finished")

	v.mu.Lock()
	v.last = result
	v.mu.Unlock()
	return result, nil
}

func (v *VQE) driver(method string) (optimizers.Driver, error) {
	kind, err := v.registry.Resolve(method)
	if err != nil {
		return nil, err
	}
	if kind == optimizers.KindAdaptive && len(v.opts.Candidates) > 0 {
		return optimizers.NewAdaptive(v.registry, v.opts.Candidates, !v.opts.SequentialCandidates, v.log), nil
	}
	return v.registry.Lookup(string(kind))
}

// Result returns the last successful result, or nil.
func (v *VQE) Result() *optimizers.Result {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.last
}

// History returns the energies and parameter vectors recorded by the last
// successful Optimize call. For the adaptive driver this is the winning
// candidate's history.
func (v *VQE) History() ([]float64, [][]float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.last == nil {
		return nil, nil
	}
	energies := make([]float64, len(v.last.History))
	params := make([][]float64, len(v.last.History))
	for i, rec := range v.last.History {
		energies[i] = rec.Energy
		params[i] = append([]float64(nil), rec.Parameters...)
	}
	return energies, params
}
