package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/vqe/internal/database"
	"github.com/aristath/vqe/internal/modules/cost"
	"github.com/aristath/vqe/internal/modules/optimizers"
)

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 50

// runColumns is the column list shared by every SELECT. Order must match scanRun.
const runColumns = `id, created_at, problem, ansatz, method, strategy, backend, num_qubits, num_parameters,
status, converged, budget_exhausted, iterations, evaluations, best_energy, exact_energy, absolute_error,
within_tolerance, runtime_ms, request, best_parameters, history, candidates, error`

// summaryColumns leaves out the history blob, which dominates row size.
const summaryColumns = `id, created_at, problem, ansatz, method, strategy, backend, num_qubits, num_parameters,
status, converged, budget_exhausted, iterations, evaluations, best_energy, exact_energy, absolute_error,
within_tolerance, runtime_ms, request, best_parameters, NULL, candidates, error`

// Repository stores runs in runs.db.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a run repository over db.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}
}

// Save inserts run, assigning an ID and creation time when they are empty.
func (r *Repository) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	request, err := msgpack.Marshal(run.Request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	params, err := msgpack.Marshal(run.BestParameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	history, err := msgpack.Marshal(run.History)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	candidates, err := msgpack.Marshal(run.Candidates)
	if err != nil {
		return fmt.Errorf("failed to encode candidates: %w", err)
	}

	query := `
		INSERT INTO runs
		(id, created_at, problem, ansatz, method, strategy, backend, num_qubits, num_parameters,
		 status, converged, budget_exhausted, iterations, evaluations, best_energy, exact_energy,
		 absolute_error, within_tolerance, runtime_ms, request, best_parameters, history, candidates, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.CreatedAt.UnixMilli(),
		string(run.Problem),
		string(run.Ansatz),
		run.Method,
		nullString(run.Strategy),
		run.Backend,
		run.NumQubits,
		run.NumParameters,
		string(run.Status),
		boolToInt(run.Converged),
		boolToInt(run.BudgetExhausted),
		run.Iterations,
		run.Evaluations,
		run.BestEnergy,
		nullFloat(run.ExactEnergy),
		nullFloat(run.AbsoluteError),
		nullBool(run.WithinTolerance),
		run.RuntimeMS,
		request,
		params,
		history,
		candidates,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	r.log.Debug().
		Str("id", run.ID).
		Str("problem", string(run.Problem)).
		Str("method", run.Method).
		Str("status", string(run.Status)).
		Msg("Run saved")
	return nil
}

// Get loads a run with its full history.
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return run, nil
}

// List returns the newest runs first, without their histories.
func (r *Repository) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+summaryColumns+" FROM runs ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return out, nil
}

// Count returns the number of stored runs.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run                                     Run
		createdAt                               int64
		problem, ansatz, status                 string
		strategy, errText                       sql.NullString
		converged, exhausted                    int
		bestEnergy, exact, absErr               sql.NullFloat64
		within                                  sql.NullInt64
		request, params, history, candidatesRaw []byte
	)
	err := s.Scan(
		&run.ID, &createdAt, &problem, &ansatz, &run.Method, &strategy, &run.Backend,
		&run.NumQubits, &run.NumParameters, &status, &converged, &exhausted,
		&run.Iterations, &run.Evaluations, &bestEnergy, &exact, &absErr, &within,
		&run.RuntimeMS, &request, &params, &history, &candidatesRaw, &errText,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	run.Problem = Problem(problem)
	run.Ansatz = AnsatzKind(ansatz)
	run.Status = Status(status)
	run.Strategy = strategy.String
	run.Error = errText.String
	run.Converged = converged != 0
	run.BudgetExhausted = exhausted != 0
	run.BestEnergy = bestEnergy.Float64
	if exact.Valid {
		v := exact.Float64
		run.ExactEnergy = &v
	}
	if absErr.Valid {
		v := absErr.Float64
		run.AbsoluteError = &v
	}
	if within.Valid {
		v := within.Int64 != 0
		run.WithinTolerance = &v
	}

	if len(request) > 0 {
		if err := msgpack.Unmarshal(request, &run.Request); err != nil {
			return nil, fmt.Errorf("failed to decode request: %w", err)
		}
	}
	if len(params) > 0 {
		if err := msgpack.Unmarshal(params, &run.BestParameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
	}
	if len(history) > 0 {
		var records []cost.EvaluationRecord
		if err := msgpack.Unmarshal(history, &records); err != nil {
			return nil, fmt.Errorf("failed to decode history: %w", err)
		}
		run.History = records
	}
	if len(candidatesRaw) > 0 {
		var candidates []optimizers.CandidateOutcome
		if err := msgpack.Unmarshal(candidatesRaw, &candidates); err != nil {
			return nil, fmt.Errorf("failed to decode candidates: %w", err)
		}
		run.Candidates = candidates
	}
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullBool(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}
