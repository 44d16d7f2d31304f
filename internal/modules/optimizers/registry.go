package optimizers

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Constructor builds a fresh driver instance.
type Constructor func() Driver

// Registry resolves method names to drivers. Lookup is case-insensitive and
// accepts aliases.
type Registry struct {
	mu      sync.RWMutex
	drivers map[Kind]Constructor
	aliases map[string]Kind
	log     zerolog.Logger
}

// DefaultCandidates are the strategies the adaptive driver races when none
// are given.
var DefaultCandidates = []string{string(KindCOBYLA), string(KindNelderMead)}

// NewRegistry returns a registry holding every built-in driver.
func NewRegistry(log zerolog.Logger) *Registry {
	r := &Registry{
		drivers: make(map[Kind]Constructor),
		aliases: make(map[string]Kind),
		log:     log.With().Str("component", "optimizers").Logger(),
	}

	r.Register(KindNelderMead, func() Driver { return &NelderMead{} }, "nelder_mead", "neldermead", "simplex")
	r.Register(KindPowell, func() Driver { return &Powell{} })
	r.Register(KindCOBYLA, func() Driver { return &COBYLA{} })
	r.Register(KindCMAES, func() Driver { return &CMAES{} }, "cma-es", "cma")
	r.Register(KindGradientDescent, func() Driver { return &GradientDescent{} }, "gradient", "gradient_descent", "gd")
	r.Register(KindAdam, func() Driver { return &Adam{} })
	r.Register(KindBFGS, func() Driver { return &BFGS{} })
	r.Register(KindAdaptive, func() Driver {
		return NewAdaptive(r, DefaultCandidates, true, r.log)
	}, "multi", "multi-strategy")

	return r
}

// Register adds (or replaces) a driver under kind and its aliases.
func (r *Registry) Register(kind Kind, c Constructor, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[kind] = c
	r.aliases[normalize(string(kind))] = kind
	for _, a := range aliases {
		r.aliases[normalize(a)] = kind
	}
}

// Resolve maps a user supplied name to its canonical Kind.
func (r *Registry) Resolve(name string) (Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.aliases[normalize(name)]
	if !ok {
		return "", &UnknownMethodError{Method: name, Known: r.knownLocked()}
	}
	return kind, nil
}

// Lookup returns a fresh driver for name.
func (r *Registry) Lookup(name string) (Driver, error) {
	kind, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	c := r.drivers[kind]
	r.mu.RUnlock()
	return c(), nil
}

// Known lists the canonical driver names, sorted.
func (r *Registry) Known() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.knownLocked()
}

func (r *Registry) knownLocked() []string {
	out := make([]string, 0, len(r.drivers))
	for k := range r.drivers {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
