package oracle

import (
	"context"
	"time"

	"github.com/aristath/vqe/internal/metrics"
	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
)

// Metered records call counts and latency for every evaluation of the
// wrapped oracle.
type Metered struct {
	inner   Oracle
	backend string
	metrics *metrics.Metrics
}

// MeteredBatch is Metered over an oracle that accepts batches. Each vector
// in a batch is counted once.
type MeteredBatch struct {
	*Metered
	batch BatchOracle
}

// NewMetered wraps o. A nil m returns o unchanged. The wrapper implements
// BatchOracle only when o does, so callers keep choosing between batching
// and their own concurrency.
func NewMetered(o Oracle, m *metrics.Metrics) Oracle {
	if m == nil {
		return o
	}
	base := &Metered{inner: o, backend: Name(o), metrics: m}
	if b, ok := o.(BatchOracle); ok {
		return &MeteredBatch{Metered: base, batch: b}
	}
	return base
}

// Evaluate forwards to the inner oracle.
func (o *Metered) Evaluate(ctx context.Context, a ansatz.Ansatz, params []float64, h *hamiltonian.Hamiltonian) (float64, error) {
	start := time.Now()
	e, err := o.inner.Evaluate(ctx, a, params, h)
	o.metrics.ObserveOracle(o.backend, time.Since(start), err)
	return e, err
}

// EvaluateBatch forwards to the inner batch oracle and spreads the elapsed
// time evenly over the batch.
func (o *MeteredBatch) EvaluateBatch(ctx context.Context, a ansatz.Ansatz, batch [][]float64, h *hamiltonian.Hamiltonian) ([]float64, error) {
	start := time.Now()
	values, err := o.batch.EvaluateBatch(ctx, a, batch, h)
	per := time.Since(start)
	if len(batch) > 0 {
		per /= time.Duration(len(batch))
	}
	for range batch {
		o.metrics.ObserveOracle(o.backend, per, err)
	}
	return values, err
}
