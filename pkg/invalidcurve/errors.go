package invalidcurve

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrInvalidB is returned for a curve constant outside (0, p).
	ErrInvalidB = errors.New("b must satisfy 0 < b < p")
	// ErrSingularCurve is returned when 4a³ + 27b² ≡ 0 (mod p).
	ErrSingularCurve = errors.New("curve is singular")
	// ErrNotPrime is returned when the field modulus is not prime.
	ErrNotPrime = errors.New("field modulus is not prime")
	// ErrCalibration is returned when g0 does not lie on the expected curve.
	ErrCalibration = errors.New("calibration point is not on the expected curve")
	// ErrOracle marks a failed or rejected oracle query.
	ErrOracle = errors.New("oracle query failed")
	// ErrUnsolved marks a subgroup whose discrete log could not be found.
	ErrUnsolved = errors.New("subgroup discrete log unsolved")
	// ErrInconsistent marks residues that disagree on a shared modulus.
	ErrInconsistent = errors.New("inconsistent residues")
)

// ValidationError reports an unusable input parameter. It is always fatal
// to the call that received it.
type ValidationError struct {
	Param string
	Value *big.Int
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %v", e.Param, e.Err)
	}
	return fmt.Sprintf("invalid %s=%s: %v", e.Param, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// InconsistentError is returned when two subgroup residues cannot both
// hold: they overlap on gcd(Existing.Modulus, Incoming.Modulus) and
// disagree there. The attack stops rather than guess.
type InconsistentError struct {
	Existing ResidueRecord
	Incoming ResidueRecord
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("%v: x ≡ %s (mod %s) contradicts x ≡ %s (mod %s)",
		ErrInconsistent, e.Incoming.Residue, e.Incoming.Modulus, e.Existing.Residue, e.Existing.Modulus)
}

func (e *InconsistentError) Unwrap() error {
	return ErrInconsistent
}
