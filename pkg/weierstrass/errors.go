package weierstrass

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInvalidField is returned by Field.Validate for unusable parameters.
var ErrInvalidField = errors.New("invalid field parameters")

// DomainError reports an arithmetic operation that has no result in the
// field, typically a denominator that is not invertible. Over a prime
// field this only happens for a zero denominator; over a composite
// modulus Value shares a factor with Modulus, which ECM relies on.
type DomainError struct {
	Op      string
	Value   *big.Int
	Modulus *big.Int
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s has no inverse modulo %s", e.Op, e.Value, e.Modulus)
}

// IsDomainError reports whether err carries a DomainError.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}
