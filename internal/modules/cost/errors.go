package cost

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrOracleEvaluation matches every OracleEvaluationError.
	ErrOracleEvaluation = errors.New("oracle evaluation failed")
	// ErrBudgetExhausted is returned by Evaluate once the evaluation budget,
	// deadline, or caller context has run out. Drivers treat it as a clean
	// stop and report the best record so far.
	ErrBudgetExhausted = errors.New("evaluation budget exhausted")
	// ErrNonFiniteEnergy is wrapped in an OracleEvaluationError when a
	// backend returns NaN or ±Inf.
	ErrNonFiniteEnergy = errors.New("oracle returned non-finite energy")
)

// OracleEvaluationError wraps a backend failure with the evaluation that
// triggered it. Failures are never retried by the core.
type OracleEvaluationError struct {
	Iteration  int // index the record would have had; -1 for gradient shifts
	Parameters []float64
	Err        error
}

func (e *OracleEvaluationError) Error() string {
	return fmt.Sprintf("%s at iteration %d with %d parameters: %v",
		ErrOracleEvaluation, e.Iteration, len(e.Parameters), e.Err)
}

func (e *OracleEvaluationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrOracleEvaluation) match.
func (e *OracleEvaluationError) Is(target error) bool { return target == ErrOracleEvaluation }

func checkFinite(energy float64) error {
	if math.IsNaN(energy) || math.IsInf(energy, 0) {
		return fmt.Errorf("%w: %v", ErrNonFiniteEnergy, energy)
	}
	return nil
}
