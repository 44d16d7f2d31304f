package verification

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vqe/internal/modules/cost"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
	"github.com/aristath/vqe/internal/modules/optimizers"
)

var quiet = zerolog.New(nil).Level(zerolog.Disabled)

func plenty() (uint64, error) { return 1 << 40, nil }

func resultWith(energies ...float64) *optimizers.Result {
	res := &optimizers.Result{BestEnergy: math.Inf(1)}
	for i, e := range energies {
		res.History = append(res.History, cost.EvaluationRecord{Iteration: i, Energy: e})
		res.BestEnergy = math.Min(res.BestEnergy, e)
	}
	res.Evaluations = len(energies)
	return res
}

func TestCheck_IsingWithinTolerance(t *testing.T) {
	h, err := hamiltonian.NewIsing(3, 1, 0.5, false)
	require.NoError(t, err)
	v := New(quiet, WithMemoryProbe(plenty))

	report, err := v.Check(h, resultWith(-1.0, -2.2, -2.4031), 1e-3)
	require.NoError(t, err)

	assert.InDelta(t, -2.4032119, report.ExactEnergy, 1e-6)
	assert.InDelta(t, 0.0001119, report.AbsoluteError, 1e-6)
	assert.InDelta(t, report.AbsoluteError/2.4032119, report.RelativeError, 1e-9)
	assert.True(t, report.Within)
	assert.False(t, report.BelowGround)
	assert.Greater(t, report.SpectralGap, 0.0)
	assert.InDelta(t, report.FirstExcited-report.ExactEnergy, report.SpectralGap, 1e-12)

	assert.Equal(t, 3, report.Evaluations)
	assert.Equal(t, -2.4031, report.FinalEnergy)
	assert.InDelta(t, (-1.0-2.2-2.4031)/3, report.MeanEnergy, 1e-12)
	assert.Greater(t, report.StdDevEnergy, 0.0)
}

func TestCheck_DefaultsToChemicalAccuracy(t *testing.T) {
	h, err := hamiltonian.NewH2()
	require.NoError(t, err)
	v := New(quiet, WithMemoryProbe(plenty))

	report, err := v.Check(h, resultWith(hamiltonian.H2ElectronicGroundEnergy+0.01), 0)
	require.NoError(t, err)
	assert.Equal(t, ChemicalAccuracy, report.Tolerance)
	assert.False(t, report.Within)
	assert.Zero(t, report.StdDevEnergy, "a single evaluation has no spread")

	report, err = v.Check(h, resultWith(hamiltonian.H2ElectronicGroundEnergy-0.01), 0)
	require.NoError(t, err)
	assert.True(t, report.BelowGround)
}

func TestSpectrum_RefusesWhenMemoryIsShort(t *testing.T) {
	h, err := hamiltonian.NewIsing(8, 1, 1, true)
	require.NoError(t, err)

	scarce := func() (uint64, error) { return 1 << 10, nil }
	v := New(quiet, WithMemoryProbe(scarce))

	_, err = v.ExactGroundEnergy(h)
	require.Error(t, err)
	assert.True(t, errors.Is(err, hamiltonian.ErrIntractableSize))

	var size *hamiltonian.IntractableSizeError
	require.True(t, errors.As(err, &size))
	assert.Equal(t, 8, size.NumQubits)
	assert.Equal(t, h.DenseBytes(), size.Bytes)
	assert.Equal(t, uint64(1<<10), size.Available)
}

func TestSpectrum_RefusesAboveQubitLimit(t *testing.T) {
	h, err := hamiltonian.NewIsing(5, 1, 1, false, hamiltonian.WithExactQubitLimit(4))
	require.NoError(t, err)

	called := false
	v := New(quiet, WithMemoryProbe(func() (uint64, error) {
		called = true
		return 1 << 40, nil
	}))

	_, err = v.ExactGroundEnergy(h)
	var size *hamiltonian.IntractableSizeError
	require.True(t, errors.As(err, &size))
	assert.Equal(t, 4, size.Limit)
	assert.False(t, called, "the qubit limit is checked before probing memory")
}

func TestSpectrum_ProbeFailureDoesNotBlock(t *testing.T) {
	h, err := hamiltonian.NewIsing(4, 1, 1, true)
	require.NoError(t, err)
	v := New(quiet, WithMemoryProbe(func() (uint64, error) { return 0, errors.New("no /proc") }))

	e, err := v.ExactGroundEnergy(h)
	require.NoError(t, err)
	assert.InDelta(t, -4.2715584, e, 1e-6)
}

func TestWithHeadroom_IgnoresNonsense(t *testing.T) {
	v := New(quiet, WithHeadroom(0), WithHeadroom(2))
	assert.Equal(t, defaultHeadroom, v.headroom)

	v = New(quiet, WithHeadroom(0.9))
	assert.Equal(t, 0.9, v.headroom)
}

func TestCheck_NilInputs(t *testing.T) {
	v := New(quiet, WithMemoryProbe(plenty))
	_, err := v.Check(nil, resultWith(1), 0)
	assert.Error(t, err)
}
