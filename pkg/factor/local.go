package factor

import (
	"context"
	"fmt"
	"math/big"
)

// Local factors by trial division followed by Pollard–Brent rho. It finds
// factors up to roughly 2^50 quickly; larger cofactors are left to ECM or
// a remote database.
type Local struct {
	// TrialBound is the largest trial divisor (default 1<<16).
	TrialBound int64
	// Iterations bounds the rho work spent on a single composite
	// (default 1<<22).
	Iterations int64
}

func (l Local) Name() string { return "local" }

func (l Local) trialBound() int64 {
	if l.TrialBound <= 0 {
		return 1 << 16
	}
	return l.TrialBound
}

func (l Local) iterations() int64 {
	if l.Iterations <= 0 {
		return 1 << 22
	}
	return l.Iterations
}

// Factor returns the complete factorization of n, or a *PartialError
// holding the composites rho could not split within its budget.
func (l Local) Factor(ctx context.Context, n *big.Int) (Factorization, error) {
	if n.Cmp(big.NewInt(2)) < 0 {
		return nil, fmt.Errorf("%w: cannot factor %s", ErrUnknown, n)
	}

	f, rest := TrialDivide(n, l.trialBound())
	var composites []*big.Int
	stack := []*big.Int{}
	if rest.Cmp(big.NewInt(1)) > 0 {
		stack = append(stack, rest)
	}

	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if m.ProbablyPrime(32) {
			f = f.Add(m, 1)
			continue
		}
		if r := perfectSquareRoot(m); r != nil {
			stack = append(stack, r, new(big.Int).Set(r))
			continue
		}

		d, err := brent(ctx, m, l.iterations())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			composites = append(composites, m)
			continue
		}
		stack = append(stack, d, new(big.Int).Quo(m, d))
	}

	if len(composites) > 0 {
		return nil, &PartialError{Known: f, Composite: composites}
	}
	if err := f.Verify(n); err != nil {
		return nil, err
	}
	return f, nil
}

// TrialDivide strips every prime factor up to bound from n and returns
// them with the remaining cofactor.
func TrialDivide(n *big.Int, bound int64) (Factorization, *big.Int) {
	var f Factorization
	rest := new(big.Int).Set(n)
	q, r := new(big.Int), new(big.Int)

	for d := int64(2); d <= bound; d++ {
		if d > 2 && d%2 == 0 {
			continue
		}
		dd := big.NewInt(d)
		if new(big.Int).Mul(dd, dd).Cmp(rest) > 0 {
			break
		}
		exp := 0
		for {
			q.QuoRem(rest, dd, r)
			if r.Sign() != 0 {
				break
			}
			rest.Set(q)
			exp++
		}
		f = f.Add(dd, exp)
	}

	// what is left below bound² is prime
	limit := new(big.Int).Mul(big.NewInt(bound), big.NewInt(bound))
	if rest.Cmp(big.NewInt(1)) > 0 && rest.Cmp(limit) < 0 {
		f = f.Add(rest, 1)
		rest = big.NewInt(1)
	}
	return f, rest
}

func perfectSquareRoot(n *big.Int) *big.Int {
	r := new(big.Int).Sqrt(n)
	if new(big.Int).Mul(r, r).Cmp(n) == 0 {
		return r
	}
	return nil
}

// brent finds a nontrivial divisor of the odd composite n with Brent's
// variant of Pollard rho, trying successive polynomial constants.
func brent(ctx context.Context, n *big.Int, budget int64) (*big.Int, error) {
	if n.Bit(0) == 0 {
		return big.NewInt(2), nil
	}

	one := big.NewInt(1)
	var spent int64
	for c := int64(1); spent < budget; c++ {
		cc := big.NewInt(c)
		step := func(v *big.Int) {
			v.Mul(v, v)
			v.Add(v, cc)
			v.Mod(v, n)
		}

		y := big.NewInt(2)
		x := new(big.Int)
		ys := new(big.Int)
		q := big.NewInt(1)
		g := big.NewInt(1)
		diff := new(big.Int)
		const m = 128

		for r := int64(1); g.Cmp(one) == 0; r *= 2 {
			x.Set(y)
			for i := int64(0); i < r; i++ {
				step(y)
			}
			for k := int64(0); k < r && g.Cmp(one) == 0; k += m {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				ys.Set(y)
				lim := r - k
				if lim > m {
					lim = m
				}
				for i := int64(0); i < lim; i++ {
					step(y)
					diff.Sub(x, y)
					diff.Abs(diff)
					q.Mul(q, diff)
					q.Mod(q, n)
				}
				g.GCD(nil, nil, q, n)
				spent += lim
			}
			if spent >= budget {
				break
			}
		}

		if g.Cmp(n) == 0 {
			// backtrack from the last saved position
			for {
				step(ys)
				diff.Sub(x, ys)
				diff.Abs(diff)
				g.GCD(nil, nil, diff, n)
				if g.Cmp(one) > 0 {
					break
				}
			}
		}
		if g.Cmp(one) > 0 && g.Cmp(n) < 0 {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: rho budget exhausted for %s", ErrUnknown, n)
}
