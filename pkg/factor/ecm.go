package factor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/mahdiidarabi/invalid-curve/internal/drbg"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// ECM is Lenstra's elliptic curve method, stage 1 only. Random curves over
// Z/nZ are multiplied by every prime power up to B1; a slope denominator
// that is not invertible modulo n exposes a factor.
type ECM struct {
	B1     int64
	Curves int
	// Rand drives curve selection. Defaults to a fixed-seed stream.
	Rand io.Reader
}

func (e ECM) Name() string { return "ecm" }

func (e ECM) b1() int64 {
	if e.B1 <= 0 {
		return 10000
	}
	return e.B1
}

func (e ECM) curves() int {
	if e.Curves <= 0 {
		return 200
	}
	return e.Curves
}

func (e ECM) Factor(ctx context.Context, n *big.Int) (Factorization, error) {
	if n.Cmp(big.NewInt(2)) < 0 {
		return nil, fmt.Errorf("%w: cannot factor %s", ErrUnknown, n)
	}
	rand := e.Rand
	if rand == nil {
		rand = drbg.New("ecm/" + n.String())
	}

	f, rest := TrialDivide(n, 1000)
	stack := []*big.Int{}
	if rest.Cmp(big.NewInt(1)) > 0 {
		stack = append(stack, rest)
	}
	var composites []*big.Int
	var lastErr error

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
		d, err := e.findFactor(ctx, m, rand)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			composites = append(composites, m)
			continue
		}
		stack = append(stack, d, new(big.Int).Quo(m, d))
	}

	if len(composites) > 0 {
		return nil, &PartialError{Known: f, Composite: composites, Err: lastErr}
	}
	if err := f.Verify(n); err != nil {
		return nil, err
	}
	return f, nil
}

func (e ECM) findFactor(ctx context.Context, n *big.Int, rand io.Reader) (*big.Int, error) {
	primes := sieve(e.b1())
	b1 := big.NewInt(e.b1())

	for c := 0; c < e.curves(); c++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		x, err := weierstrass.RandInt(rand, n)
		if err != nil {
			return nil, err
		}
		y, err := weierstrass.RandInt(rand, n)
		if err != nil {
			return nil, err
		}
		a, err := weierstrass.RandInt(rand, n)
		if err != nil {
			return nil, err
		}
		curve := &weierstrass.Field{P: n, A: a}
		pt := weierstrass.Point{X: x, Y: y}

		for _, q := range primes {
			// largest power of q not above B1
			qe := big.NewInt(q)
			for next := new(big.Int).Mul(qe, big.NewInt(q)); next.Cmp(b1) <= 0; next.Mul(next, big.NewInt(q)) {
				qe.Set(next)
			}

			pt, err = curve.ScalarMult(pt, qe)
			if err != nil {
				var de *weierstrass.DomainError
				if !errors.As(err, &de) {
					return nil, err
				}
				g := new(big.Int).GCD(nil, nil, de.Value, n)
				if g.Cmp(big.NewInt(1)) > 0 && g.Cmp(n) < 0 {
					return g, nil
				}
				break
			}
			if pt.IsInfinity() {
				break
			}
		}
	}
	return nil, fmt.Errorf("%w: no factor of %s found with %d curves at B1=%d", ErrUnknown, n, e.curves(), e.b1())
}

// sieve returns the primes up to n.
func sieve(n int64) []int64 {
	composite := make([]bool, n+1)
	var out []int64
	for i := int64(2); i <= n; i++ {
		if composite[i] {
			continue
		}
		out = append(out, i)
		for j := i * i; j <= n; j += i {
			composite[j] = true
		}
	}
	return out
}
