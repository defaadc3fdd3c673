package weierstrass

import (
	"errors"
	"fmt"
	"io"
	"math/big"
)

// Field holds the parameters shared by every curve y² = x³ + a·x + b over
// GF(P). The group law never reads b, which is what makes the invalid
// curve attack possible: a point of any curve with the same (P, A) is
// multiplied by the same formulas.
type Field struct {
	P *big.Int
	A *big.Int
}

// NewField validates and returns a field.
func NewField(p, a *big.Int) (*Field, error) {
	f := &Field{P: new(big.Int).Set(p), A: new(big.Int).Set(a)}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks that P is an odd prime larger than 3 and that A is
// already reduced.
func (f *Field) Validate() error {
	if f == nil || f.P == nil || f.A == nil {
		return fmt.Errorf("%w: missing p or a", ErrInvalidField)
	}
	if f.P.Cmp(big.NewInt(3)) <= 0 || !f.P.ProbablyPrime(32) {
		return fmt.Errorf("%w: p=%s is not a prime > 3", ErrInvalidField, f.P)
	}
	if f.A.Sign() < 0 || f.A.Cmp(f.P) >= 0 {
		return fmt.Errorf("%w: a=%s is outside [0, p)", ErrInvalidField, f.A)
	}
	return nil
}

// Evaluate returns x³ + a·x + b mod p.
func (f *Field) Evaluate(x, b *big.Int) *big.Int {
	r := new(big.Int).Mul(x, x)
	r.Add(r, f.A)
	r.Mul(r, x)
	r.Add(r, b)
	return r.Mod(r, f.P)
}

// IsOnCurve reports whether pt satisfies the equation with constant b.
// The identity belongs to every curve.
func (f *Field) IsOnCurve(pt Point, b *big.Int) bool {
	if pt.IsInfinity() {
		return true
	}
	if pt.X.Sign() < 0 || pt.X.Cmp(f.P) >= 0 || pt.Y.Sign() < 0 || pt.Y.Cmp(f.P) >= 0 {
		return false
	}
	lhs := new(big.Int).Mul(pt.Y, pt.Y)
	lhs.Mod(lhs, f.P)
	return lhs.Cmp(f.Evaluate(pt.X, b)) == 0
}

// IsSingular reports whether 4a³ + 27b² ≡ 0 (mod p).
func (f *Field) IsSingular(b *big.Int) bool {
	d := new(big.Int).Exp(f.A, big.NewInt(3), nil)
	d.Mul(d, big.NewInt(4))
	b2 := new(big.Int).Mul(b, b)
	b2.Mul(b2, big.NewInt(27))
	d.Add(d, b2)
	return d.Mod(d, f.P).Sign() == 0
}

// Neg returns -pt.
func (f *Field) Neg(pt Point) Point {
	if pt.IsInfinity() {
		return Infinity()
	}
	y := new(big.Int).Neg(pt.Y)
	return Point{X: new(big.Int).Set(pt.X), Y: y.Mod(y, f.P)}
}

// Add returns p1 + p2 under the chord-and-tangent law.
func (f *Field) Add(p1, p2 Point) (Point, error) {
	if p1.IsInfinity() {
		return p2.Clone(), nil
	}
	if p2.IsInfinity() {
		return p1.Clone(), nil
	}

	var num, den *big.Int
	if p1.X.Cmp(p2.X) == 0 {
		sum := new(big.Int).Add(p1.Y, p2.Y)
		if sum.Mod(sum, f.P).Sign() == 0 {
			return Infinity(), nil
		}
		// tangent: (3x² + a) / 2y
		num = new(big.Int).Mul(p1.X, p1.X)
		num.Mul(num, three)
		num.Add(num, f.A)
		den = new(big.Int).Lsh(p1.Y, 1)
	} else {
		num = new(big.Int).Sub(p2.Y, p1.Y)
		den = new(big.Int).Sub(p2.X, p1.X)
	}

	inv, err := Inverse(den, f.P)
	if err != nil {
		return Point{}, err
	}
	lambda := num.Mul(num, inv)
	lambda.Mod(lambda, f.P)

	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, p1.X)
	x3.Sub(x3, p2.X)
	x3.Mod(x3, f.P)

	y3 := new(big.Int).Sub(p1.X, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, p1.Y)
	y3.Mod(y3, f.P)

	return Point{X: x3, Y: y3}, nil
}

// Double returns 2·pt.
func (f *Field) Double(pt Point) (Point, error) {
	return f.Add(pt, pt)
}

// ScalarMult returns n·pt by left-to-right double-and-add.
func (f *Field) ScalarMult(pt Point, n *big.Int) (Point, error) {
	if n.Sign() < 0 {
		return Point{}, &DomainError{Op: "scalar multiplication", Value: new(big.Int).Set(n), Modulus: new(big.Int).Set(f.P)}
	}
	r := Infinity()
	if pt.IsInfinity() {
		return r, nil
	}
	var err error
	for i := n.BitLen() - 1; i >= 0; i-- {
		if r, err = f.Double(r); err != nil {
			return Point{}, err
		}
		if n.Bit(i) == 1 {
			if r, err = f.Add(r, pt); err != nil {
				return Point{}, err
			}
		}
	}
	return r, nil
}

// RandomPoint draws x uniformly until x³ + ax + b is a square and returns
// one of the two matching points. The sign of y is chosen from the random
// stream as well.
func (f *Field) RandomPoint(rand io.Reader, b *big.Int) (Point, error) {
	for i := 0; i < 1<<16; i++ {
		x, err := RandInt(rand, f.P)
		if err != nil {
			return Point{}, err
		}
		rhs := f.Evaluate(x, b)
		if rhs.Sign() == 0 {
			continue
		}
		y, ok := ModSqrt(rhs, f.P)
		if !ok {
			continue
		}
		var flip [1]byte
		if _, err := io.ReadFull(rand, flip[:]); err != nil {
			return Point{}, err
		}
		if flip[0]&1 == 1 {
			y.Sub(f.P, y)
		}
		return Point{X: x, Y: y}, nil
	}
	return Point{}, errors.New("no point found on curve")
}

// PointOrder returns the exact order of pt given a multiple n of it and
// the distinct primes dividing n.
func (f *Field) PointOrder(pt Point, n *big.Int, primes []*big.Int) (*big.Int, error) {
	check, err := f.ScalarMult(pt, n)
	if err != nil {
		return nil, err
	}
	if !check.IsInfinity() {
		return nil, fmt.Errorf("%s is not a multiple of the order of %s", n, pt)
	}

	ord := new(big.Int).Set(n)
	for _, l := range primes {
		for {
			q, r := new(big.Int).QuoRem(ord, l, new(big.Int))
			if r.Sign() != 0 {
				break
			}
			t, err := f.ScalarMult(pt, q)
			if err != nil {
				return nil, err
			}
			if !t.IsInfinity() {
				break
			}
			ord = q
		}
	}
	return ord, nil
}

// HasseInterval returns [p+1-2√p, p+1+2√p] widened to integers.
func (f *Field) HasseInterval() (lo, hi *big.Int) {
	w := SqrtCeil(new(big.Int).Mul(f.P, four))
	base := new(big.Int).Add(f.P, one)
	lo = new(big.Int).Sub(base, w)
	if lo.Sign() < 0 {
		lo.SetInt64(0)
	}
	hi = new(big.Int).Add(base, w)
	return lo, hi
}

// RandInt returns a uniform value in [0, max) read from rand by rejection
// sampling.
func RandInt(rand io.Reader, max *big.Int) (*big.Int, error) {
	if max.Sign() <= 0 {
		return nil, errors.New("RandInt: max must be positive")
	}
	bits := max.BitLen()
	buf := make([]byte, (bits+7)/8)
	mask := byte(0xff)
	if r := bits % 8; r != 0 {
		mask = byte(1<<uint(r)) - 1
	}
	n := new(big.Int)
	for {
		if _, err := io.ReadFull(rand, buf); err != nil {
			return nil, err
		}
		buf[0] &= mask
		n.SetBytes(buf)
		if n.Cmp(max) < 0 {
			return n, nil
		}
	}
}
