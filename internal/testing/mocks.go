package testing

import (
	"context"
	"sync"

	"github.com/aristath/vqe/internal/modules/ansatz"
	"github.com/aristath/vqe/internal/modules/hamiltonian"
)

// EnergyFunc is a synthetic energy landscape over the parameter vector.
type EnergyFunc func(params []float64) float64

// MockOracle is a scripted expectation oracle. It evaluates an EnergyFunc,
// counts calls, and can be told to fail on specific calls.
type MockOracle struct {
	mu       sync.RWMutex
	energy   EnergyFunc
	err      error
	failOn   map[int]error // 1-based call number -> error
	calls    int
	lastSeen []float64
}

// NewMockOracle creates a mock oracle over energy.
func NewMockOracle(energy EnergyFunc) *MockOracle {
	return &MockOracle{energy: energy, failOn: make(map[int]error)}
}

// SetError makes every subsequent call fail with err (nil clears it)
func (m *MockOracle) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailOnCall makes the n-th call (1-based, counted from creation) fail with err
func (m *MockOracle) FailOnCall(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[n] = err
}

// SetEnergy replaces the landscape
func (m *MockOracle) SetEnergy(energy EnergyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.energy = energy
}

// Calls returns how many times Evaluate ran
func (m *MockOracle) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// LastParameters returns a copy of the most recent parameter vector
func (m *MockOracle) LastParameters() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float64(nil), m.lastSeen...)
}

// Evaluate returns energy(params) or the scripted error.
func (m *MockOracle) Evaluate(ctx context.Context, a ansatz.Ansatz, params []float64, h *hamiltonian.Hamiltonian) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.calls++
	call := m.calls
	m.lastSeen = append([]float64(nil), params...)
	err := m.err
	if scripted, ok := m.failOn[call]; ok {
		err = scripted
	}
	energy := m.energy
	m.mu.Unlock()

	if err != nil {
		return 0, err
	}
	return energy(params), nil
}
