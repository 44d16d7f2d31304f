// Package runs executes VQE runs on named reference problems, verifies them
// against exact diagonalization, and keeps them in the runs database.
package runs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/vqe/internal/modules/cost"
	"github.com/aristath/vqe/internal/modules/optimizers"
)

// Problem names a built-in Hamiltonian.
type Problem string

const (
	ProblemIsing Problem = "ising"
	ProblemH2    Problem = "h2"
)

// AnsatzKind names a built-in ansatz.
type AnsatzKind string

const (
	AnsatzHardwareEfficient AnsatzKind = "hardware-efficient"
	AnsatzExcitation        AnsatzKind = "excitation"
	AnsatzUCCSingles        AnsatzKind = "ucc-singles"
)

// Status is the lifecycle state of a stored run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Ising chain defaults.
const (
	DefaultSites    = 4
	DefaultCoupling = 1.0
	DefaultField    = 0.5
	DefaultDepth    = 2
)

// ErrInvalidRequest marks a request the service refused to run.
var ErrInvalidRequest = errors.New("invalid run request")

// ErrNotFound is returned for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Request describes one run. Zero values fall back to the service defaults.
type Request struct {
	Problem Problem `json:"problem" msgpack:"problem"`

	// Ising chain shape.
	Sites    int      `json:"sites,omitempty" msgpack:"sites,omitempty"`
	Coupling *float64 `json:"coupling,omitempty" msgpack:"coupling,omitempty"`
	Field    *float64 `json:"field,omitempty" msgpack:"field,omitempty"`
	Periodic *bool    `json:"periodic,omitempty" msgpack:"periodic,omitempty"`

	Ansatz AnsatzKind `json:"ansatz,omitempty" msgpack:"ansatz,omitempty"`
	Depth  int        `json:"depth,omitempty" msgpack:"depth,omitempty"`

	Method        string   `json:"method,omitempty" msgpack:"method,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty" msgpack:"max_iterations,omitempty"`
	Tolerance     float64  `json:"tolerance,omitempty" msgpack:"tolerance,omitempty"`
	Candidates    []string `json:"candidates,omitempty" msgpack:"candidates,omitempty"`

	Backend string  `json:"backend,omitempty" msgpack:"backend,omitempty"`
	Shots   int     `json:"shots,omitempty" msgpack:"shots,omitempty"`
	Seed    *uint64 `json:"seed,omitempty" msgpack:"seed,omitempty"`

	// Initial overrides the seeded starting point.
	Initial []float64 `json:"initial,omitempty" msgpack:"initial,omitempty"`

	// SkipVerification disables the exact diagonalization check.
	SkipVerification bool `json:"skip_verification,omitempty" msgpack:"skip_verification,omitempty"`
}

// Validate checks the fields that do not depend on service defaults.
func (r Request) Validate() error {
	switch r.Problem {
	case ProblemIsing:
		if r.Sites < 1 {
			return fmt.Errorf("%w: ising needs at least one site, got %d", ErrInvalidRequest, r.Sites)
		}
	case ProblemH2:
	default:
		return fmt.Errorf("%w: unknown problem %q (known: %s, %s)", ErrInvalidRequest, r.Problem, ProblemIsing, ProblemH2)
	}

	switch r.Ansatz {
	case AnsatzHardwareEfficient, AnsatzExcitation, AnsatzUCCSingles:
	default:
		return fmt.Errorf("%w: unknown ansatz %q", ErrInvalidRequest, r.Ansatz)
	}
	if r.Ansatz == AnsatzExcitation && r.Problem != ProblemH2 {
		return fmt.Errorf("%w: the excitation ansatz is defined for h2 only", ErrInvalidRequest)
	}
	if r.Depth < 1 {
		return fmt.Errorf("%w: depth must be positive, got %d", ErrInvalidRequest, r.Depth)
	}
	if r.MaxIterations <= 0 {
		return fmt.Errorf("%w: max_iterations must be positive, got %d", ErrInvalidRequest, r.MaxIterations)
	}
	if r.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be non-negative, got %v", ErrInvalidRequest, r.Tolerance)
	}
	if r.Shots < 0 {
		return fmt.Errorf("%w: shots must be non-negative, got %d", ErrInvalidRequest, r.Shots)
	}
	if strings.TrimSpace(r.Method) == "" {
		return fmt.Errorf("%w: method is required", ErrInvalidRequest)
	}
	return nil
}

// Run is a stored run.
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Request   Request   `json:"request"`

	Problem       Problem    `json:"problem"`
	Ansatz        AnsatzKind `json:"ansatz"`
	Method        string     `json:"method"`
	Strategy      string     `json:"strategy,omitempty"`
	Backend       string     `json:"backend"`
	NumQubits     int        `json:"num_qubits"`
	NumParameters int        `json:"num_parameters"`

	Status          Status  `json:"status"`
	Converged       bool    `json:"converged"`
	BudgetExhausted bool    `json:"budget_exhausted"`
	Iterations      int     `json:"iterations"`
	Evaluations     int     `json:"evaluations"`
	BestEnergy      float64 `json:"best_energy"`
	RuntimeMS       int64   `json:"runtime_ms"`

	ExactEnergy     *float64 `json:"exact_energy,omitempty"`
	AbsoluteError   *float64 `json:"absolute_error,omitempty"`
	WithinTolerance *bool    `json:"within_tolerance,omitempty"`

	BestParameters []float64                     `json:"best_parameters,omitempty"`
	History        []cost.EvaluationRecord       `json:"history,omitempty"`
	Candidates     []optimizers.CandidateOutcome `json:"candidates,omitempty"`
	Error          string                        `json:"error,omitempty"`
}
