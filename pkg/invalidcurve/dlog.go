package invalidcurve

import (
	"context"
	"fmt"
	"math/big"

	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// SubgroupLog returns x in [0, prime^exp) with x·g = h, where g has order
// exactly prime^exp. The exponent is recovered one base-prime digit at a
// time (Pohlig–Hellman), each digit by baby-step giant-step in the
// subgroup of order prime. It fails with ErrUnsolved when h is not in <g>.
func SubgroupLog(ctx context.Context, f *weierstrass.Field, g, h weierstrass.Point, prime *big.Int, exp int) (*big.Int, error) {
	if exp < 1 {
		return nil, fmt.Errorf("%w: exponent %d", ErrUnsolved, exp)
	}
	q := new(big.Int).Exp(prime, big.NewInt(int64(exp)), nil)

	// gamma generates the order-prime subgroup
	top := new(big.Int).Exp(prime, big.NewInt(int64(exp-1)), nil)
	gamma, err := f.ScalarMult(g, top)
	if err != nil {
		return nil, err
	}
	if gamma.IsInfinity() {
		return nil, fmt.Errorf("%w: base point order is below %s", ErrUnsolved, q)
	}

	x := new(big.Int)
	pk := big.NewInt(1) // prime^k
	for k := 0; k < exp; k++ {
		// h_k = prime^(exp-1-k) · (h - x·g)
		xg, err := f.ScalarMult(g, x)
		if err != nil {
			return nil, err
		}
		rem, err := f.Add(h, f.Neg(xg))
		if err != nil {
			return nil, err
		}
		e := new(big.Int).Exp(prime, big.NewInt(int64(exp-1-k)), nil)
		hk, err := f.ScalarMult(rem, e)
		if err != nil {
			return nil, err
		}

		d, err := BabyStepGiantStep(ctx, f, gamma, hk, prime)
		if err != nil {
			return nil, err
		}
		x.Add(x, new(big.Int).Mul(d, pk))
		pk.Mul(pk, prime)
	}

	check, err := f.ScalarMult(g, x)
	if err != nil {
		return nil, err
	}
	if !check.Equal(h) {
		return nil, fmt.Errorf("%w: response is not in the subgroup of order %s", ErrUnsolved, q)
	}
	return x.Mod(x, q), nil
}

// BabyStepGiantStep returns x in [0, n) with x·g = h for g of order n.
func BabyStepGiantStep(ctx context.Context, f *weierstrass.Field, g, h weierstrass.Point, n *big.Int) (*big.Int, error) {
	if h.IsInfinity() {
		return new(big.Int), nil
	}
	m := weierstrass.SqrtCeil(n)
	if !m.IsInt64() || m.Int64() > 1<<28 {
		return nil, fmt.Errorf("%w: subgroup order %s too large", ErrUnsolved, n)
	}
	steps := m.Int64()

	table := make(map[string]int64, steps)
	acc := weierstrass.Infinity()
	var err error
	for j := int64(0); j < steps; j++ {
		if j%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, ok := table[acc.Key()]; !ok {
			table[acc.Key()] = j
		}
		if acc, err = f.Add(acc, g); err != nil {
			return nil, err
		}
	}

	// giant stride -m·g
	stride, err := f.ScalarMult(g, m)
	if err != nil {
		return nil, err
	}
	stride = f.Neg(stride)

	y := h.Clone()
	for i := int64(0); i <= steps; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if j, ok := table[y.Key()]; ok {
			x := new(big.Int).Mul(big.NewInt(i), m)
			x.Add(x, big.NewInt(j))
			return x.Mod(x, n), nil
		}
		if y, err = f.Add(y, stride); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: no logarithm in subgroup of order %s", ErrUnsolved, n)
}
