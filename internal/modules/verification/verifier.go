// Package verification checks optimizer output against exact
// diagonalization of the Hamiltonian.
package verification

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/vqe/internal/modules/hamiltonian"
	"github.com/aristath/vqe/internal/modules/optimizers"
)

// ChemicalAccuracy is 1.6 mHa, the usual target for molecular energies.
const ChemicalAccuracy = 1.6e-3

// defaultHeadroom is the share of available memory a dense matrix may use.
const defaultHeadroom = 0.5

// MemoryProbe reports the bytes of memory currently available.
type MemoryProbe func() (uint64, error)

// SystemMemory reads available memory from the operating system.
func SystemMemory() (uint64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("failed to read memory stats: %w", err)
	}
	return v.Available, nil
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMemoryProbe replaces the system memory probe.
func WithMemoryProbe(p MemoryProbe) Option {
	return func(v *Verifier) { v.probe = p }
}

// WithHeadroom sets the fraction of available memory exact
// diagonalization may claim.
func WithHeadroom(fraction float64) Option {
	return func(v *Verifier) {
		if fraction > 0 && fraction <= 1 {
			v.headroom = fraction
		}
	}
}

// Verifier compares results with the exact ground energy.
type Verifier struct {
	probe    MemoryProbe
	headroom float64
	log      zerolog.Logger
}

// New creates a verifier that guards exact diagonalization with the system
// memory probe.
func New(log zerolog.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		probe:    SystemMemory,
		headroom: defaultHeadroom,
		log:      log.With().Str("component", "verification").Logger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Report is the outcome of a verification.
type Report struct {
	ExactEnergy   float64 `json:"exact_energy"`
	FirstExcited  float64 `json:"first_excited,omitempty"`
	SpectralGap   float64 `json:"spectral_gap,omitempty"`
	BestEnergy    float64 `json:"best_energy"`
	AbsoluteError float64 `json:"absolute_error"`
	RelativeError float64 `json:"relative_error"`
	Tolerance     float64 `json:"tolerance"`
	Within        bool    `json:"within"`
	// BelowGround flags a best energy under the exact ground energy, which
	// only shot noise can produce.
	BelowGround bool `json:"below_ground"`

	Evaluations  int     `json:"evaluations"`
	MeanEnergy   float64 `json:"mean_energy"`
	StdDevEnergy float64 `json:"stddev_energy"`
	FinalEnergy  float64 `json:"final_energy"`
}

// Spectrum returns the eigenvalues of h in ascending order, refusing up
// front when the dense matrix would not fit in memory.
func (v *Verifier) Spectrum(h *hamiltonian.Hamiltonian) ([]float64, error) {
	if h.NumQubits() > h.ExactQubitLimit() {
		return nil, &hamiltonian.IntractableSizeError{NumQubits: h.NumQubits(), Limit: h.ExactQubitLimit()}
	}

	need := h.DenseBytes()
	available, err := v.probe()
	if err != nil {
		v.log.Warn().Err(err).Msg("Memory probe failed, skipping memory guard")
	} else if float64(need) > v.headroom*float64(available) {
		return nil, &hamiltonian.IntractableSizeError{
			NumQubits: h.NumQubits(),
			Limit:     h.ExactQubitLimit(),
			Bytes:     need,
			Available: available,
		}
	}

	return h.Eigenvalues()
}

// ExactGroundEnergy is the lowest eigenvalue of h.
func (v *Verifier) ExactGroundEnergy(h *hamiltonian.Hamiltonian) (float64, error) {
	values, err := v.Spectrum(h)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// Check compares result with the exact ground energy of h. A tolerance of
// zero or less means ChemicalAccuracy.
func (v *Verifier) Check(h *hamiltonian.Hamiltonian, result *optimizers.Result, tolerance float64) (*Report, error) {
	if h == nil || result == nil {
		return nil, errors.New("verification needs a hamiltonian and a result")
	}
	if tolerance <= 0 {
		tolerance = ChemicalAccuracy
	}

	values, err := v.Spectrum(h)
	if err != nil {
		return nil, err
	}

	exact := values[0]
	r := &Report{
		ExactEnergy:   exact,
		BestEnergy:    result.BestEnergy,
		AbsoluteError: math.Abs(result.BestEnergy - exact),
		Tolerance:     tolerance,
		BelowGround:   result.BestEnergy < exact-1e-9,
		Evaluations:   len(result.History),
	}
	if exact != 0 {
		r.RelativeError = r.AbsoluteError / math.Abs(exact)
	}
	r.Within = r.AbsoluteError <= tolerance

	// First level strictly above the ground energy.
	for _, e := range values[1:] {
		if e-exact > 1e-9 {
			r.FirstExcited = e
			r.SpectralGap = e - exact
			break
		}
	}

	if energies := result.Energies(); len(energies) > 0 {
		r.FinalEnergy = energies[len(energies)-1]
		mean, std := stat.MeanStdDev(energies, nil)
		r.MeanEnergy = mean
		if len(energies) > 1 {
			r.StdDevEnergy = std
		}
	}

	v.log.Debug().
		Float64("exact", exact).
		Float64("best", result.BestEnergy).
		Float64("abs_error", r.AbsoluteError).
		Bool("within", r.Within).
		Msg("Verified result")
	return r, nil
}
