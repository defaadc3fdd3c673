// Package factor provides integer factorization for curve group orders.
//
// A Factorizer either returns a complete, verified factorization or an
// error. Partial progress is reported through *PartialError so that a
// Chain can hand the remaining composites to the next method, the same
// way a FactorDB lookup is completed by a local ECM run.
package factor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/mahdiidarabi/invalid-curve/internal/deadline"
)

// ErrUnknown means the factorization could not be completed.
var ErrUnknown = errors.New("factorization unknown")

// Factorizer splits n into primes.
type Factorizer interface {
	Factor(ctx context.Context, n *big.Int) (Factorization, error)
	Name() string
}

// PrimePower is one entry of a factorization.
type PrimePower struct {
	Prime *big.Int
	Exp   int
}

// Value returns Prime^Exp.
func (pp PrimePower) Value() *big.Int {
	return new(big.Int).Exp(pp.Prime, big.NewInt(int64(pp.Exp)), nil)
}

// Factorization lists distinct primes in increasing order with their
// exponents.
type Factorization []PrimePower

// FromMap builds a sorted factorization from prime → exponent pairs.
// Repeated or zero entries are merged or dropped.
func FromMap(m map[string]int) (Factorization, error) {
	var f Factorization
	for k, e := range m {
		p, ok := new(big.Int).SetString(k, 10)
		if !ok {
			return nil, fmt.Errorf("invalid prime %q", k)
		}
		f = f.Add(p, e)
	}
	return f, nil
}

// Add returns f with prime^exp multiplied in.
func (f Factorization) Add(prime *big.Int, exp int) Factorization {
	if exp <= 0 {
		return f
	}
	out := make(Factorization, 0, len(f)+1)
	merged := false
	for _, pp := range f {
		if pp.Prime.Cmp(prime) == 0 {
			out = append(out, PrimePower{Prime: pp.Prime, Exp: pp.Exp + exp})
			merged = true
			continue
		}
		out = append(out, pp)
	}
	if !merged {
		out = append(out, PrimePower{Prime: new(big.Int).Set(prime), Exp: exp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prime.Cmp(out[j].Prime) < 0 })
	return out
}

// Merge multiplies two factorizations.
func (f Factorization) Merge(g Factorization) Factorization {
	out := f
	for _, pp := range g {
		out = out.Add(pp.Prime, pp.Exp)
	}
	return out
}

// Product returns the integer f describes.
func (f Factorization) Product() *big.Int {
	n := big.NewInt(1)
	for _, pp := range f {
		n.Mul(n, pp.Value())
	}
	return n
}

// Primes returns the distinct primes.
func (f Factorization) Primes() []*big.Int {
	out := make([]*big.Int, len(f))
	for i, pp := range f {
		out[i] = pp.Prime
	}
	return out
}

// PrimePowers returns Prime^Exp for every entry, smallest prime first.
func (f Factorization) PrimePowers() []*big.Int {
	out := make([]*big.Int, len(f))
	for i, pp := range f {
		out[i] = pp.Value()
	}
	return out
}

// Map returns the factorization keyed by decimal prime.
func (f Factorization) Map() map[string]int {
	m := make(map[string]int, len(f))
	for _, pp := range f {
		m[pp.Prime.String()] = pp.Exp
	}
	return m
}

// Verify checks that f multiplies to n and that every entry is prime.
func (f Factorization) Verify(n *big.Int) error {
	for _, pp := range f {
		if pp.Exp <= 0 || !pp.Prime.ProbablyPrime(32) {
			return fmt.Errorf("%w: %s is not prime", ErrUnknown, pp.Prime)
		}
	}
	if f.Product().Cmp(n) != 0 {
		return fmt.Errorf("%w: factors do not multiply to %s", ErrUnknown, n)
	}
	return nil
}

func (f Factorization) String() string {
	parts := make([]string, len(f))
	for i, pp := range f {
		if pp.Exp == 1 {
			parts[i] = pp.Prime.String()
		} else {
			parts[i] = fmt.Sprintf("%s^%d", pp.Prime, pp.Exp)
		}
	}
	return strings.Join(parts, " * ")
}

// PartialError reports a factorization that stopped with composite
// cofactors left. Known holds the primes found so far.
type PartialError struct {
	Known     Factorization
	Composite []*big.Int
	Err       error
}

func (e *PartialError) Error() string {
	parts := make([]string, len(e.Composite))
	for i, c := range e.Composite {
		parts[i] = c.String()
	}
	msg := fmt.Sprintf("partial factorization %s, composite left: %s", e.Known, strings.Join(parts, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PartialError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUnknown, e.Err}
	}
	return []error{ErrUnknown}
}

// Chain tries each factorizer in turn. Composite leftovers reported by one
// member through *PartialError are passed on to the following members.
type Chain []Factorizer

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, f := range c {
		names[i] = f.Name()
	}
	return strings.Join(names, "+")
}

func (c Chain) Factor(ctx context.Context, n *big.Int) (Factorization, error) {
	var known Factorization
	pending := []*big.Int{new(big.Int).Set(n)}
	var errs []error

	for _, f := range c {
		if len(pending) == 0 {
			break
		}
		var next []*big.Int
		for _, m := range pending {
			res, err := f.Factor(ctx, m)
			if err == nil {
				known = known.Merge(res)
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			var pe *PartialError
			if errors.As(err, &pe) {
				known = known.Merge(pe.Known)
				next = append(next, pe.Composite...)
				continue
			}
			next = append(next, m)
		}
		pending = next
	}

	if len(pending) > 0 {
		return nil, &PartialError{Known: known, Composite: pending, Err: errors.Join(errs...)}
	}
	if err := known.Verify(n); err != nil {
		return nil, err
	}
	return known, nil
}

// Escalating runs a factorizer under an escalating deadline policy.
type Escalating struct {
	Factorizer Factorizer
	Policy     deadline.Policy
}

func (e Escalating) Name() string {
	return e.Factorizer.Name()
}

func (e Escalating) Factor(ctx context.Context, n *big.Int) (Factorization, error) {
	return deadline.Escalate(ctx, e.Policy, func(ctx context.Context) (Factorization, error) {
		return e.Factorizer.Factor(ctx, n)
	})
}

// Func adapts a plain function to Factorizer.
type Func func(ctx context.Context, n *big.Int) (Factorization, error)

func (f Func) Name() string { return "func" }

func (f Func) Factor(ctx context.Context, n *big.Int) (Factorization, error) {
	return f(ctx, n)
}
