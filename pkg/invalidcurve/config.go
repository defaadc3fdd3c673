package invalidcurve

import (
	"errors"
	"math/big"
	"time"

	"github.com/mahdiidarabi/invalid-curve/internal/deadline"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// GeneratorConfig configures a curve generation run.
type GeneratorConfig struct {
	// Target is the number of curves to accept in random mode (0 = stop
	// only on coverage or MaxCandidates)
	Target int

	// BValues replaces random search with an explicit list of curve constants
	BValues []*big.Int

	// IncludeG0 adds a calibration point on the honest curve to the catalog
	IncludeG0 bool

	// HonestB is the constant of the curve the oracle is supposed to use
	HonestB *big.Int

	// G0 overrides the randomly drawn calibration point
	G0 *Calibration

	// OutputPath persists the catalog when set
	OutputPath string

	// Timeout, TimeoutStep and MaxTimeout bound every order count and
	// factorization: the first attempt gets Timeout, each retry TimeoutStep
	// more, and the last one MaxTimeout. The defaults give a short try and
	// then three minutes, enough for a Mestre count over a 90-bit field
	// (about two minutes on one core).
	Timeout     time.Duration
	TimeoutStep time.Duration
	MaxTimeout  time.Duration

	// MaxCandidates limits how many random b values are tried
	MaxCandidates int

	// MaxFactorBits skips primes longer than this
	MaxFactorBits int

	// PointAttempts is the number of random points tried per prime power
	PointAttempts int

	// SecretBound is an exclusive upper bound on the secret (nil = Hasse
	// bound). A set bound is saved in the catalog for the attack.
	SecretBound *big.Int

	// Workers controls parallelization (0 = auto-detect)
	Workers int

	// Seed makes the run reproducible (empty = random seed)
	Seed string

	// AllowRepeatPrimes accepts a prime again when it comes with a higher power
	AllowRepeatPrimes bool
}

// DefaultGeneratorConfig returns a sensible default configuration.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Timeout:       10 * time.Second,
		TimeoutStep:   3 * time.Minute,
		MaxTimeout:    3 * time.Minute,
		MaxCandidates: 1000,
		MaxFactorBits: 40,
		PointAttempts: 32,
		Workers:       0, // Auto-detect
	}
}

// Policy returns the escalating deadline used for external math calls.
func (c GeneratorConfig) Policy() deadline.Policy {
	return deadline.Policy{Initial: c.Timeout, Step: c.TimeoutStep, Max: c.MaxTimeout}
}

// AttackConfig configures an attack run.
type AttackConfig struct {
	// QueryTimeout bounds each oracle query (0 = no timeout)
	QueryTimeout time.Duration

	// Workers controls discrete log parallelization (0 = auto-detect)
	Workers int

	// SecretBound is an exclusive upper bound on the secret (nil = the
	// catalog's bound, or the Hasse bound when the catalog has none)
	SecretBound *big.Int

	// MaxLogBits skips subgroups whose prime is longer than this
	MaxLogBits int
}

// DefaultAttackConfig returns a sensible default configuration.
func DefaultAttackConfig() AttackConfig {
	return AttackConfig{
		QueryTimeout: 10 * time.Second,
		MaxLogBits:   40,
	}
}

// DefaultSecretBound returns p + 1 + 2√p rounded up, the largest possible
// order of a curve over the field and so of the honest generator.
func DefaultSecretBound(f *weierstrass.Field) *big.Int {
	_, hi := f.HasseInterval()
	return hi
}

func boundOr(bound *big.Int, f *weierstrass.Field) *big.Int {
	if bound != nil && bound.Sign() > 0 {
		return bound
	}
	return DefaultSecretBound(f)
}

func validateField(f *weierstrass.Field) error {
	if err := f.Validate(); err != nil {
		if f != nil && f.P != nil && f.P.Cmp(big.NewInt(3)) > 0 && !f.P.ProbablyPrime(32) {
			return &ValidationError{Param: "p", Value: f.P, Err: ErrNotPrime}
		}
		return &ValidationError{Param: "field", Err: err}
	}
	return nil
}

// validateB checks 0 < b < p and that the curve is not singular.
func validateB(f *weierstrass.Field, b *big.Int) error {
	if b == nil {
		return &ValidationError{Param: "b", Err: ErrInvalidB}
	}
	if b.Sign() <= 0 || b.Cmp(f.P) >= 0 {
		return &ValidationError{Param: "b", Value: b, Err: ErrInvalidB}
	}
	if f.IsSingular(b) {
		return &ValidationError{Param: "b", Value: b, Err: ErrSingularCurve}
	}
	return nil
}

// IsValidationError reports whether err is fatal input validation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
