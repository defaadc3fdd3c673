package order

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/mahdiidarabi/invalid-curve/internal/drbg"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// Supersingular handles y² = x³ + b over p ≡ 2 (mod 3), where every curve
// has exactly p + 1 points.
type Supersingular struct{}

func (Supersingular) Name() string { return "supersingular" }

func (Supersingular) Order(ctx context.Context, f *weierstrass.Field, b *big.Int) (*big.Int, error) {
	if f.A.Sign() != 0 {
		return nil, fmt.Errorf("%w: a != 0", ErrUnsupported)
	}
	if new(big.Int).Mod(f.P, big.NewInt(3)).Int64() != 2 {
		return nil, fmt.Errorf("%w: p is not 2 mod 3", ErrUnsupported)
	}
	if new(big.Int).Mod(b, f.P).Sign() == 0 {
		return nil, fmt.Errorf("%w: singular curve", ErrUnsupported)
	}
	return new(big.Int).Add(f.P, big.NewInt(1)), nil
}

// JZero counts y² = x³ + b over p ≡ 1 (mod 3) by complex multiplication.
// Writing p = x² + 3y² (Cornacchia), the six twists have traces ±2x and
// ±(x ± 3y); random points pick out the one belonging to b.
type JZero struct {
	// Points bounds how many random points are tried (default 16).
	Points int
	Rand   io.Reader
}

func (JZero) Name() string { return "jzero" }

func (j JZero) Order(ctx context.Context, f *weierstrass.Field, b *big.Int) (*big.Int, error) {
	if f.A.Sign() != 0 {
		return nil, fmt.Errorf("%w: a != 0", ErrUnsupported)
	}
	if new(big.Int).Mod(f.P, big.NewInt(3)).Int64() != 1 {
		return nil, fmt.Errorf("%w: p is not 1 mod 3", ErrUnsupported)
	}
	if new(big.Int).Mod(b, f.P).Sign() == 0 {
		return nil, fmt.Errorf("%w: singular curve", ErrUnsupported)
	}

	cands, err := JZeroCandidates(f.P)
	if err != nil {
		return nil, err
	}

	points := j.Points
	if points <= 0 {
		points = 16
	}
	rand := j.Rand
	if rand == nil {
		rand = drbg.New(fmt.Sprintf("jzero/%s/%s", f.P, b))
	}

	for i := 0; i < points && len(cands) > 1; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pt, err := f.RandomPoint(rand, b)
		if err != nil {
			return nil, err
		}
		if cands, err = candidatesFor(f, pt, cands); err != nil {
			return nil, err
		}
	}
	if len(cands) != 1 {
		return nil, fmt.Errorf("%w: %d candidates left for b=%s", ErrUnknown, len(cands), b)
	}
	return cands[0], nil
}

// JZeroCandidates returns the six possible group orders p + 1 - t of the
// curves y² = x³ + b over p ≡ 1 (mod 3).
func JZeroCandidates(p *big.Int) ([]*big.Int, error) {
	x, y, err := Cornacchia(p, big.NewInt(3))
	if err != nil {
		return nil, err
	}
	threeY := new(big.Int).Mul(y, big.NewInt(3))
	traces := []*big.Int{
		new(big.Int).Lsh(x, 1),
		new(big.Int).Add(x, threeY),
		new(big.Int).Sub(x, threeY),
	}
	var out []*big.Int
	p1 := new(big.Int).Add(p, big.NewInt(1))
	for _, t := range traces {
		out = append(out, new(big.Int).Sub(p1, t), new(big.Int).Add(p1, t))
	}
	return dedupe(out), nil
}

// Cornacchia solves x² + d·y² = p for a prime p.
func Cornacchia(p, d *big.Int) (x, y *big.Int, err error) {
	negD := new(big.Int).Sub(p, new(big.Int).Mod(d, p))
	r0, ok := weierstrass.ModSqrt(negD, p)
	if !ok {
		return nil, nil, fmt.Errorf("%w: -%s is not a square mod %s", ErrUnsupported, d, p)
	}

	// either root may be the right starting point
	for _, start := range []*big.Int{r0, new(big.Int).Sub(p, r0)} {
		a, b := new(big.Int).Set(p), new(big.Int).Set(start)
		for new(big.Int).Mul(b, b).Cmp(p) >= 0 {
			a, b = b, new(big.Int).Mod(a, b)
		}
		rem := new(big.Int).Sub(p, new(big.Int).Mul(b, b))
		q, r := new(big.Int).QuoRem(rem, d, new(big.Int))
		if r.Sign() != 0 {
			continue
		}
		s := new(big.Int).Sqrt(q)
		if new(big.Int).Mul(s, s).Cmp(q) == 0 {
			return b, s, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s is not of the form x² + %s·y²", ErrUnknown, p, d)
}
