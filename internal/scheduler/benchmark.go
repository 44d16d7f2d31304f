package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vqe/internal/modules/cost"
	"github.com/aristath/vqe/internal/modules/runs"
)

// DefaultBenchmarkTimeout bounds one benchmark run.
const DefaultBenchmarkTimeout = 10 * time.Minute

// RunExecutor executes and stores a run.
type RunExecutor interface {
	Run(ctx context.Context, req runs.Request, observer cost.Observer) (*runs.Run, error)
}

// BenchmarkJob re-runs a reference problem so optimizer drift against the
// exact energy shows up in the runs history
type BenchmarkJob struct {
	log     zerolog.Logger
	runner  RunExecutor
	request runs.Request
	timeout time.Duration
}

// DefaultBenchmarkRequest is the periodic four-site Ising chain with the
// service defaults for everything else.
func DefaultBenchmarkRequest() runs.Request {
	return runs.Request{Problem: runs.ProblemIsing}
}

// NewBenchmarkJob creates a new BenchmarkJob. A timeout of zero means
// DefaultBenchmarkTimeout.
func NewBenchmarkJob(runner RunExecutor, request runs.Request, timeout time.Duration, log zerolog.Logger) *BenchmarkJob {
	if timeout <= 0 {
		timeout = DefaultBenchmarkTimeout
	}
	return &BenchmarkJob{
		log:     log.With().Str("job", "benchmark").Logger(),
		runner:  runner,
		request: request,
		timeout: timeout,
	}
}

// Name returns the job name
func (j *BenchmarkJob) Name() string {
	return "benchmark"
}

// Run executes the benchmark run
func (j *BenchmarkJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	run, err := j.runner.Run(ctx, j.request, nil)
	if err != nil {
		return fmt.Errorf("benchmark run rejected: %w", err)
	}
	if run.Status == runs.StatusFailed {
		return fmt.Errorf("benchmark run %s failed: %s", run.ID, run.Error)
	}

	event := j.log.Info()
	if run.WithinTolerance != nil && !*run.WithinTolerance {
		event = j.log.Warn()
	}
	event = event.
		Str("id", run.ID).
		Str("method", run.Method).
		Float64("best_energy", run.BestEnergy).
		Int("evaluations", run.Evaluations)
	if run.AbsoluteError != nil {
		event = event.Float64("abs_error", *run.AbsoluteError)
	}
	event.Msg("Benchmark finished")
	return nil
}
