package statevector

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
)

// Sampler estimates each Pauli term from a finite number of shots. A term
// with exact expectation e yields +1 with probability (1+e)/2, so its
// estimate is 2k/shots - 1 for k ~ Binomial(shots, (1+e)/2). Identity terms
// are exact.
//
// A seeded Sampler is reproducible as long as one goroutine drives it, or
// callers use EvaluateBatch. Concurrent consumers should each take their
// own stream with Split.
type Sampler struct {
	Shots     int
	MaxQubits int

	seed uint64
	mu   sync.Mutex
	src  *rand.PCG
}

// NewSampler returns a shot-noise oracle. A nil seed draws one at random.
func NewSampler(shots int, seed *uint64) (*Sampler, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("sampler needs a positive shot count, got %d", shots)
	}
	var s uint64
	if seed != nil {
		s = *seed
	} else {
		s = rand.Uint64()
	}
	return newSampler(shots, DefaultMaxQubits, s), nil
}

func newSampler(shots, maxQubits int, seed uint64) *Sampler {
	return &Sampler{
		Shots:     shots,
		MaxQubits: maxQubits,
		seed:      seed,
		src:       rand.NewPCG(seed, seed^0xda3e39cb94b95bdb),
	}
}

// Split returns a Sampler with the same settings on an independent stream
// derived from this sampler's seed and stream. The same (seed, stream) pair
// always yields the same draws.
func (s *Sampler) Split(stream uint64) *Sampler {
	derived := s.seed ^ ((stream + 1) * 0x9e3779b97f4a7c15)
	return newSampler(s.Shots, s.MaxQubits, derived)
}

// Evaluate returns a shot-noise estimate of <ψ(θ)|H|ψ(θ)>.
func (s *Sampler) Evaluate(ctx context.Context, a ansatz.Ansatz, params []float64, h *hamiltonian.Hamiltonian) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	state, err := prepare(a, params, h, s.maxQubits())
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample(state, h), nil
}

// EvaluateBatch prepares every state first and then draws shots in input
// order under one lock, so the energies do not depend on scheduling.
func (s *Sampler) EvaluateBatch(ctx context.Context, a ansatz.Ansatz, batch [][]float64, h *hamiltonian.Hamiltonian) ([]float64, error) {
	states := make([]*State, len(batch))
	for i, params := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		state, err := prepare(a, params, h, s.maxQubits())
		if err != nil {
			return nil, err
		}
		states[i] = state
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(states))
	for i, state := range states {
		out[i] = s.sample(state, h)
	}
	return out, nil
}

func (s *Sampler) maxQubits() int {
	if s.MaxQubits <= 0 {
		return DefaultMaxQubits
	}
	return s.MaxQubits
}

// sample must be called with s.mu held.
func (s *Sampler) sample(state *State, h *hamiltonian.Hamiltonian) float64 {
	var energy float64
	for _, t := range h.Terms() {
		if t.Label() == "I" {
			energy += t.Coefficient
			continue
		}
		energy += t.Coefficient * s.estimate(state.TermExpectation(t))
	}
	return energy
}

func (s *Sampler) estimate(exact float64) float64 {
	p := (1 + exact) / 2
	switch {
	case p <= 0:
		return -1
	case p >= 1:
		return 1
	}
	k := distuv.Binomial{N: float64(s.Shots), P: p, Src: s.src}.Rand()
	return 2*k/float64(s.Shots) - 1
}
