package hamiltonian

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTerm is the sentinel behind every InvalidTermError.
	ErrInvalidTerm = errors.New("invalid pauli term")
	// ErrIntractableSize is the sentinel behind every IntractableSizeError.
	ErrIntractableSize = errors.New("hamiltonian too large for exact treatment")
)

// InvalidTermError reports a Pauli term that cannot belong to the Hamiltonian.
type InvalidTermError struct {
	Term      int // index the term would have had
	Qubit     int
	NumQubits int
	Reason    string
}

func (e *InvalidTermError) Error() string {
	return fmt.Sprintf("%s: term %d, qubit %d on %d qubits: %s",
		ErrInvalidTerm, e.Term, e.Qubit, e.NumQubits, e.Reason)
}

func (e *InvalidTermError) Unwrap() error { return ErrInvalidTerm }

// IntractableSizeError reports a dense matrix request above the configured ceiling.
type IntractableSizeError struct {
	NumQubits int
	Limit     int
	Bytes     uint64 // estimated allocation, zero when the qubit limit tripped
	Available uint64 // memory available at the time, zero when unknown
}

func (e *IntractableSizeError) Error() string {
	if e.Bytes > 0 && e.Available > 0 {
		return fmt.Sprintf("%s: %d qubits need %d bytes, %d available",
			ErrIntractableSize, e.NumQubits, e.Bytes, e.Available)
	}
	return fmt.Sprintf("%s: %d qubits exceeds limit of %d", ErrIntractableSize, e.NumQubits, e.Limit)
}

func (e *IntractableSizeError) Unwrap() error { return ErrIntractableSize }
