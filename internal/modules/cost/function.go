// Package cost wraps an expectation oracle into the scalar objective the
// optimizers minimize, tracks the history of every recorded evaluation, and
// estimates gradients with the parameter-shift rule.
package cost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
	"github.com/aristath/vqe/internal/modules/oracle"
)

// EvaluationRecord is one recorded cost call. Parameters is a private copy.
// Source names the strategy that produced the record when several run at
// once; Iteration counts within that source.
type EvaluationRecord struct {
	Iteration  int       `json:"iteration" msgpack:"iteration"`
	Energy     float64   `json:"energy" msgpack:"energy"`
	Parameters []float64 `json:"parameters" msgpack:"parameters"`
	Source     string    `json:"source,omitempty" msgpack:"source,omitempty"`
}

// Observer is notified after every recorded evaluation.
type Observer func(EvaluationRecord)

// Option configures a Function.
type Option func(*Function)

// WithLogger sets the logger used for progress messages.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Function) { f.log = log.With().Str("component", "cost").Logger() }
}

// WithObserver registers a callback for every recorded evaluation.
func WithObserver(obs Observer) Option {
	return func(f *Function) {
		if obs != nil {
			f.observers = append(f.observers, obs)
		}
	}
}

// WithProgressEvery logs progress every n recorded evaluations (0 disables).
func WithProgressEvery(n int) Option {
	return func(f *Function) { f.progressEvery = n }
}

// WithBudget caps recorded evaluations (0 = unlimited) and sets a wall-clock
// deadline (zero time = none).
func WithBudget(maxEvaluations int, deadline time.Time) Option {
	return func(f *Function) {
		f.maxEvaluations = maxEvaluations
		f.deadline = deadline
	}
}

// Function is E(θ) = oracle(ansatz, θ, H) with a history tracker. It is safe
// for concurrent use; records are numbered in completion order.
type Function struct {
	ansatz ansatz.Ansatz
	ham    *hamiltonian.Hamiltonian
	oracle oracle.Oracle

	log            zerolog.Logger
	source         string
	observers      []Observer
	progressEvery  int
	maxEvaluations int
	deadline       time.Time

	mu      sync.Mutex
	records []EvaluationRecord
	shifts  int
}

// New builds the cost function for (a, h) evaluated by o.
func New(a ansatz.Ansatz, h *hamiltonian.Hamiltonian, o oracle.Oracle, opts ...Option) (*Function, error) {
	if a == nil || h == nil || o == nil {
		return nil, fmt.Errorf("cost function needs an ansatz, a hamiltonian and an oracle")
	}
	if a.NumQubits() != h.NumQubits() {
		return nil, fmt.Errorf("ansatz acts on %d qubits, hamiltonian on %d", a.NumQubits(), h.NumQubits())
	}
	f := &Function{
		ansatz:        a,
		ham:           h,
		oracle:        o,
		log:           zerolog.Nop(),
		progressEvery: 10,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fork returns a Function over the same ansatz, Hamiltonian, oracle and
// options with an empty history.
func (f *Function) Fork() *Function {
	return &Function{
		ansatz:         f.ansatz,
		ham:            f.ham,
		oracle:         f.oracle,
		log:            f.log,
		source:         f.source,
		observers:      append([]Observer(nil), f.observers...),
		progressEvery:  f.progressEvery,
		maxEvaluations: f.maxEvaluations,
		deadline:       f.deadline,
	}
}

// ForkStream is Fork for one of several concurrent consumers. The oracle is
// split onto its own random stream and every record of the fork carries
// source.
func (f *Function) ForkStream(source string, stream uint64) *Function {
	fork := f.Fork()
	fork.oracle = oracle.Split(f.oracle, stream)
	fork.source = source
	return fork
}

// Ansatz returns the ansatz being optimized.
func (f *Function) Ansatz() ansatz.Ansatz { return f.ansatz }

// Hamiltonian returns the target Hamiltonian.
func (f *Function) Hamiltonian() *hamiltonian.Hamiltonian { return f.ham }

// NumParameters is the dimension of the search space.
func (f *Function) NumParameters() int { return f.ansatz.NumParameters() }

// Evaluate calls the oracle, records the result and returns the energy.
// Oracle failures and non-finite energies come back as
// *OracleEvaluationError and nothing is recorded. Once the budget is spent it returns ErrBudgetExhausted without
// calling the oracle.
func (f *Function) Evaluate(ctx context.Context, params []float64) (float64, error) {
	if err := f.checkBudget(ctx); err != nil {
		return 0, err
	}

	energy, err := f.oracle.Evaluate(ctx, f.ansatz, params, f.ham)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrBudgetExhausted, ctxErr)
		}
		return 0, &OracleEvaluationError{Iteration: f.Len(), Parameters: snapshot(params), Err: err}
	}
	if err := checkFinite(energy); err != nil {
		return 0, &OracleEvaluationError{Iteration: f.Len(), Parameters: snapshot(params), Err: err}
	}

	rec := EvaluationRecord{Energy: energy, Parameters: snapshot(params), Source: f.source}
	f.mu.Lock()
	rec.Iteration = len(f.records)
	f.records = append(f.records, rec)
	f.mu.Unlock()

	for _, obs := range f.observers {
		obs(rec)
	}
	if f.progressEvery > 0 && (rec.Iteration+1)%f.progressEvery == 0 {
		f.log.Debug().
			Int("iteration", rec.Iteration).
			Float64("energy", energy).
			Msg("Cost evaluated")
	}
	return energy, nil
}

// evaluateShift calls the oracle without recording, for gradient estimation.
func (f *Function) evaluateShift(ctx context.Context, params []float64) (float64, error) {
	if err := f.checkDeadline(ctx); err != nil {
		return 0, err
	}
	energy, err := f.oracle.Evaluate(ctx, f.ansatz, params, f.ham)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrBudgetExhausted, ctxErr)
		}
		return 0, &OracleEvaluationError{Iteration: -1, Parameters: snapshot(params), Err: err}
	}
	if err := checkFinite(energy); err != nil {
		return 0, &OracleEvaluationError{Iteration: -1, Parameters: snapshot(params), Err: err}
	}
	f.mu.Lock()
	f.shifts++
	f.mu.Unlock()
	return energy, nil
}

func (f *Function) checkDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBudgetExhausted, err)
	}
	if !f.deadline.IsZero() && !time.Now().Before(f.deadline) {
		return fmt.Errorf("%w: deadline passed", ErrBudgetExhausted)
	}
	return nil
}

func (f *Function) checkBudget(ctx context.Context) error {
	if err := f.checkDeadline(ctx); err != nil {
		return err
	}
	if f.maxEvaluations > 0 && f.Len() >= f.maxEvaluations {
		return fmt.Errorf("%w: %d evaluations used", ErrBudgetExhausted, f.maxEvaluations)
	}
	return nil
}

// Exhausted reports whether another Evaluate would hit the budget.
func (f *Function) Exhausted(ctx context.Context) bool {
	return f.checkBudget(ctx) != nil
}

// Len returns the number of recorded evaluations.
func (f *Function) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// ShiftEvaluations returns the number of unrecorded gradient evaluations.
func (f *Function) ShiftEvaluations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shifts
}

// History returns copies of the recorded energies and parameter vectors.
func (f *Function) History() ([]float64, [][]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	energies := make([]float64, len(f.records))
	params := make([][]float64, len(f.records))
	for i, r := range f.records {
		energies[i] = r.Energy
		params[i] = snapshot(r.Parameters)
	}
	return energies, params
}

// Records returns a copy of the recorded evaluations.
func (f *Function) Records() []EvaluationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EvaluationRecord, len(f.records))
	for i, r := range f.records {
		out[i] = r
		out[i].Parameters = snapshot(r.Parameters)
	}
	return out
}

// Best returns the lowest-energy record; ties keep the earliest.
func (f *Function) Best() (EvaluationRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		return EvaluationRecord{}, false
	}
	best := f.records[0]
	for _, r := range f.records[1:] {
		if r.Energy < best.Energy {
			best = r
		}
	}
	best.Parameters = snapshot(best.Parameters)
	return best, true
}

func snapshot(p []float64) []float64 {
	return append([]float64(nil), p...)
}
