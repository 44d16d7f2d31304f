package runs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vqe/internal/config"
	"github.com/aristath/vqe/internal/metrics"
	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/cost"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
	"github.com/aristath/vqe/internal/modules/optimizers"
	"github.com/aristath/vqe/internal/modules/oracle"
	"github.com/aristath/vqe/internal/modules/verification"
	"github.com/aristath/vqe/internal/modules/vqe"
)

// Defaults fill the fields a request leaves empty.
type Defaults struct {
	Method          string
	MaxIterations   int
	Tolerance       float64
	Backend         string
	Shots           int
	Seed            *uint64
	Timeout         time.Duration
	Candidates      []string
	GradientWorkers int
	ExactQubitLimit int
}

// DefaultsFromConfig copies the optimizer and backend defaults out of cfg.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		Method:          cfg.Method,
		MaxIterations:   cfg.MaxIterations,
		Tolerance:       cfg.Tolerance,
		Backend:         cfg.Backend,
		Shots:           cfg.Shots,
		Seed:            cfg.Seed,
		Timeout:         cfg.Timeout,
		Candidates:      cfg.Strategies,
		GradientWorkers: cfg.GradientWorkers,
		ExactQubitLimit: cfg.ExactQubitLimit,
	}
}

// Service builds, executes, verifies and stores runs.
type Service struct {
	repo     *Repository
	registry *optimizers.Registry
	verifier *verification.Verifier
	metrics  *metrics.Metrics
	oracle   oracle.Oracle
	defaults Defaults
	log      zerolog.Logger
}

// NewService creates a run service. metrics may be nil.
func NewService(repo *Repository, verifier *verification.Verifier, m *metrics.Metrics, defaults Defaults, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: optimizers.NewRegistry(log),
		verifier: verifier,
		metrics:  m,
		defaults: defaults,
		log:      log.With().Str("service", "runs").Logger(),
	}
}

// SetOracle makes every run use o instead of the backend named in the
// request. Passing nil restores the built-in backends.
func (s *Service) SetOracle(o oracle.Oracle) {
	s.oracle = o
}

// Normalize returns req with every empty field set from the defaults.
func (s *Service) Normalize(req Request) Request {
	if req.Problem == "" {
		req.Problem = ProblemIsing
	}
	req.Problem = Problem(strings.ToLower(string(req.Problem)))

	if req.Problem == ProblemIsing {
		if req.Sites == 0 {
			req.Sites = DefaultSites
		}
		if req.Coupling == nil {
			j := DefaultCoupling
			req.Coupling = &j
		}
		if req.Field == nil {
			h := DefaultField
			req.Field = &h
		}
		if req.Periodic == nil {
			p := true
			req.Periodic = &p
		}
	}

	if req.Ansatz == "" {
		req.Ansatz = AnsatzHardwareEfficient
		if req.Problem == ProblemH2 {
			req.Ansatz = AnsatzExcitation
		}
	}
	if req.Depth == 0 {
		req.Depth = DefaultDepth
	}
	if req.Method == "" {
		req.Method = s.defaults.Method
	}
	if req.MaxIterations == 0 {
		req.MaxIterations = s.defaults.MaxIterations
	}
	if req.Tolerance == 0 {
		req.Tolerance = s.defaults.Tolerance
	}
	if req.Backend == "" {
		req.Backend = s.defaults.Backend
	}
	if req.Shots == 0 && req.Backend == string(oracle.KindSampling) {
		req.Shots = s.defaults.Shots
	}
	if req.Seed == nil {
		req.Seed = s.defaults.Seed
	}
	if len(req.Candidates) == 0 {
		req.Candidates = s.defaults.Candidates
	}
	return req
}

// Build constructs the Hamiltonian and ansatz a normalized request names.
func (s *Service) Build(req Request) (*hamiltonian.Hamiltonian, ansatz.Ansatz, error) {
	var hopts []hamiltonian.Option
	if s.defaults.ExactQubitLimit > 0 {
		hopts = append(hopts, hamiltonian.WithExactQubitLimit(s.defaults.ExactQubitLimit))
	}

	var (
		h   *hamiltonian.Hamiltonian
		err error
	)
	switch req.Problem {
	case ProblemIsing:
		h, err = hamiltonian.NewIsing(req.Sites, *req.Coupling, *req.Field, *req.Periodic, hopts...)
	case ProblemH2:
		h, err = hamiltonian.NewH2(hopts...)
	default:
		err = fmt.Errorf("unknown problem %q", req.Problem)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var a ansatz.Ansatz
	switch req.Ansatz {
	case AnsatzHardwareEfficient:
		a, err = ansatz.NewHardwareEfficient(h.NumQubits(), req.Depth)
	case AnsatzExcitation:
		a = ansatz.NewH2Excitation()
	case AnsatzUCCSingles:
		a, err = ansatz.NewUCCSingles(h.NumQubits(), max(1, h.NumQubits()/2))
	default:
		err = fmt.Errorf("unknown ansatz %q", req.Ansatz)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return h, a, nil
}

// Run executes req and stores the outcome. Malformed requests, parameter
// shape mismatches and unknown methods come back as errors and are not
// stored. Failures during optimization are stored as failed runs and
// returned without an error. observer, when set, sees every recorded
// evaluation as it happens.
func (s *Service) Run(ctx context.Context, req Request, observer cost.Observer) (*Run, error) {
	req = s.Normalize(req)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.registry.Resolve(req.Method); err != nil {
		return nil, err
	}
	for _, c := range req.Candidates {
		kind, err := s.registry.Resolve(c)
		if err != nil {
			return nil, err
		}
		if kind == optimizers.KindAdaptive {
			return nil, fmt.Errorf("%w: adaptive cannot be its own candidate", ErrInvalidRequest)
		}
	}

	h, a, err := s.Build(req)
	if err != nil {
		return nil, err
	}

	solver, err := vqe.New(h, a, vqe.Options{
		Oracle:  s.oracle,
		Backend: oracle.Options{
			Backend: oracle.Kind(req.Backend),
			Shots:   req.Shots,
			Seed:    req.Seed,
		},
		Seed:            req.Seed,
		Registry:        s.registry,
		Metrics:         s.metrics,
		Candidates:      req.Candidates,
		GradientWorkers: s.defaults.GradientWorkers,
		Timeout:         s.defaults.Timeout,
		Observer:        observer,
	}, s.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	initial := req.Initial
	if len(initial) == 0 {
		initial = solver.InitialParameters()
	}
	if err := ansatz.ValidateParameters(a, initial); err != nil {
		return nil, err
	}

	run := &Run{
		Request:       req,
		Problem:       req.Problem,
		Ansatz:        req.Ansatz,
		Method:        req.Method,
		Backend:       solver.Backend(),
		NumQubits:     h.NumQubits(),
		NumParameters: a.NumParameters(),
	}

	// A client that disconnects ends the optimization early, but whatever
	// was computed is still stored.
	saveCtx := context.WithoutCancel(ctx)

	start := time.Now()
	result, err := solver.Optimize(ctx, initial, req.Method, req.MaxIterations, req.Tolerance)
	run.RuntimeMS = time.Since(start).Milliseconds()
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		s.log.Warn().Err(err).
			Str("problem", string(req.Problem)).
			Str("method", req.Method).
			Msg("Run failed")
		if saveErr := s.repo.Save(saveCtx, run); saveErr != nil {
			return nil, saveErr
		}
		return run, nil
	}

	run.Status = StatusCompleted
	run.Method = result.Method
	run.Strategy = result.Strategy
	run.Converged = result.Converged
	run.BudgetExhausted = result.BudgetExhausted
	run.Iterations = result.Iterations
	run.Evaluations = result.Evaluations
	run.BestEnergy = result.BestEnergy
	run.BestParameters = result.BestParameters
	run.History = result.History
	run.Candidates = result.Candidates

	if !req.SkipVerification && s.verifier != nil {
		s.verify(h, result, run)
	}

	if err := s.repo.Save(saveCtx, run); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("id", run.ID).
		Str("problem", string(run.Problem)).
		Str("method", run.Method).
		Float64("best_energy", run.BestEnergy).
		Int("evaluations", run.Evaluations).
		Msg("Run completed")
	return run, nil
}

func (s *Service) verify(h *hamiltonian.Hamiltonian, result *optimizers.Result, run *Run) {
	report, err := s.verifier.Check(h, result, 0)
	if err != nil {
		if errors.Is(err, hamiltonian.ErrIntractableSize) {
			s.log.Warn().Err(err).Int("qubits", h.NumQubits()).Msg("Skipping verification")
			return
		}
		s.log.Error().Err(err).Msg("Verification failed")
		return
	}
	run.ExactEnergy = &report.ExactEnergy
	run.AbsoluteError = &report.AbsoluteError
	run.WithinTolerance = &report.Within
}

// Get returns a stored run.
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.repo.Get(ctx, id)
}

// List returns recent runs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*Run, error) {
	return s.repo.List(ctx, limit)
}
