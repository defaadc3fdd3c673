package weierstrass

import (
	"math/big"
)

var (
	zero  = big.NewInt(0)
	one   = big.NewInt(1)
	two   = big.NewInt(2)
	three = big.NewInt(3)
	four  = big.NewInt(4)
)

// Mod returns v reduced into [0, m).
func Mod(v, m *big.Int) *big.Int {
	return new(big.Int).Mod(v, m)
}

// Exp returns base^e mod m. Negative exponents are not supported.
func Exp(base, e, m *big.Int) *big.Int {
	return new(big.Int).Exp(Mod(base, m), e, m)
}

// Inverse returns the inverse of v modulo m. It fails with a DomainError
// when gcd(v, m) != 1, which for a prime modulus only happens for v ≡ 0.
func Inverse(v, m *big.Int) (*big.Int, error) {
	r := Mod(v, m)
	inv := new(big.Int).ModInverse(r, m)
	if inv == nil {
		return nil, &DomainError{Op: "inverse", Value: r, Modulus: new(big.Int).Set(m)}
	}
	return inv, nil
}

// Legendre returns the Legendre symbol (v|p) for an odd prime p:
// 0 when v ≡ 0, 1 for a nonzero square and -1 otherwise.
func Legendre(v, p *big.Int) int {
	r := Mod(v, p)
	if r.Sign() == 0 {
		return 0
	}
	e := new(big.Int).Rsh(new(big.Int).Sub(p, one), 1)
	s := new(big.Int).Exp(r, e, p)
	if s.Cmp(one) == 0 {
		return 1
	}
	return -1
}

// ModSqrt returns some y with y² ≡ v (mod p), or false when v is a
// non-residue. p must be an odd prime.
//
// For p ≡ 3 (mod 4) the root is v^((p+1)/4). Otherwise Tonelli–Shanks is
// used with the smallest quadratic non-residue as generator.
func ModSqrt(v, p *big.Int) (*big.Int, bool) {
	r := Mod(v, p)
	if r.Sign() == 0 {
		return new(big.Int), true
	}
	if Legendre(r, p) != 1 {
		return nil, false
	}

	if new(big.Int).Mod(p, four).Cmp(three) == 0 {
		e := new(big.Int).Add(p, one)
		e.Rsh(e, 2)
		return new(big.Int).Exp(r, e, p), true
	}

	// p - 1 = q·2^s with q odd
	q := new(big.Int).Sub(p, one)
	s := 0
	for q.Bit(0) == 0 {
		q.Rsh(q, 1)
		s++
	}

	z := big.NewInt(2)
	for Legendre(z, p) != -1 {
		z.Add(z, one)
	}

	m := s
	c := new(big.Int).Exp(z, q, p)
	t := new(big.Int).Exp(r, q, p)
	e := new(big.Int).Add(q, one)
	e.Rsh(e, 1)
	x := new(big.Int).Exp(r, e, p)

	for t.Cmp(one) != 0 {
		// least i with t^(2^i) = 1
		i := 0
		t2 := new(big.Int).Set(t)
		for t2.Cmp(one) != 0 {
			t2.Mul(t2, t2).Mod(t2, p)
			i++
			if i == m {
				return nil, false
			}
		}

		b := new(big.Int).Set(c)
		for j := 0; j < m-i-1; j++ {
			b.Mul(b, b).Mod(b, p)
		}
		m = i
		c.Mul(b, b).Mod(c, p)
		t.Mul(t, c).Mod(t, p)
		x.Mul(x, b).Mod(x, p)
	}
	return x, true
}

// SqrtCeil returns the integer square root of n rounded up.
func SqrtCeil(n *big.Int) *big.Int {
	r := new(big.Int).Sqrt(n)
	if new(big.Int).Mul(r, r).Cmp(n) < 0 {
		r.Add(r, one)
	}
	return r
}
