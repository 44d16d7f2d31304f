// Package oracle defines the expectation-value seam between the classical
// optimization core and whatever evaluates <ψ(θ)|H|ψ(θ)>.
//
// Implementations may be stochastic, slow, or remote; callers must not assume
// two calls with the same arguments agree.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
	"github.com/aristath/vqe/internal/modules/oracle/statevector"
)

// Oracle estimates the energy of the ansatz state for params.
type Oracle interface {
	Evaluate(ctx context.Context, a ansatz.Ansatz, params []float64, h *hamiltonian.Hamiltonian) (float64, error)
}

// BatchOracle is implemented by backends that evaluate many parameter
// vectors in one submission. Results are in input order.
type BatchOracle interface {
	Oracle
	EvaluateBatch(ctx context.Context, a ansatz.Ansatz, batch [][]float64, h *hamiltonian.Hamiltonian) ([]float64, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, a ansatz.Ansatz, params []float64, h *hamiltonian.Hamiltonian) (float64, error)

// Evaluate calls f.
func (f Func) Evaluate(ctx context.Context, a ansatz.Ansatz, params []float64, h *hamiltonian.Hamiltonian) (float64, error) {
	return f(ctx, a, params, h)
}

// Kind names a built-in backend.
type Kind string

const (
	KindStatevector Kind = "statevector"
	KindSampling    Kind = "sampling"
)

// ErrUnknownBackend is returned by New for an unrecognized Kind.
var ErrUnknownBackend = errors.New("unknown oracle backend")

// Options selects and configures a built-in backend.
type Options struct {
	Backend Kind
	Shots   int     // required for sampling; 0 otherwise
	Seed    *uint64 // nil draws a random seed
}

// New constructs the backend named by opts.Backend. An empty backend with
// Shots > 0 selects sampling; otherwise statevector.
func New(opts Options) (Oracle, error) {
	kind := Kind(strings.ToLower(string(opts.Backend)))
	if kind == "" {
		kind = KindStatevector
		if opts.Shots > 0 {
			kind = KindSampling
		}
	}

	switch kind {
	case KindStatevector:
		return statevector.NewSimulator(), nil
	case KindSampling:
		s, err := statevector.NewSampler(opts.Shots, opts.Seed)
		if err != nil {
			return nil, fmt.Errorf("sampling backend: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// Split gives a concurrent consumer its own view of o. Stochastic backends
// hand out an independent stream derived from their seed, through any
// metering wrapper. Deterministic backends are returned unchanged.
func Split(o Oracle, stream uint64) Oracle {
	switch v := o.(type) {
	case *statevector.Sampler:
		return v.Split(stream)
	case *MeteredBatch:
		return NewMetered(Split(v.inner, stream), v.metrics)
	case *Metered:
		return NewMetered(Split(v.inner, stream), v.metrics)
	default:
		return o
	}
}

// Name returns a short label for o, used in logs and metrics.
func Name(o Oracle) string {
	switch v := o.(type) {
	case *Metered:
		return v.backend
	case *MeteredBatch:
		return v.backend
	case *statevector.Simulator:
		return string(KindStatevector)
	case *statevector.Sampler:
		return string(KindSampling)
	case Func:
		return "func"
	default:
		return fmt.Sprintf("%T", o)
	}
}
