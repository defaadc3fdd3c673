package weierstrass

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// enumerate lists every affine point of y² = x³ + ax + b over a tiny field.
func enumerate(f *Field, b *big.Int) []Point {
	var pts []Point
	p := f.P.Int64()
	for x := int64(0); x < p; x++ {
		for y := int64(0); y < p; y++ {
			pt := Point{X: big.NewInt(x), Y: big.NewInt(y)}
			if !pt.IsInfinity() && f.IsOnCurve(pt, b) {
				pts = append(pts, pt)
			}
		}
	}
	return pts
}

func TestModSqrt(t *testing.T) {
	t.Parallel()

	for _, p := range []int64{97, 103, 113, 7919, 10009} {
		p := big.NewInt(p)
		t.Run(p.String(), func(t *testing.T) {
			for v := int64(0); v < p.Int64(); v++ {
				val := big.NewInt(v)
				y, ok := ModSqrt(val, p)
				if Legendre(val, p) == -1 {
					require.False(t, ok, "v=%d", v)
					continue
				}
				require.True(t, ok, "v=%d", v)
				sq := new(big.Int).Mul(y, y)
				require.Zero(t, sq.Mod(sq, p).Cmp(val), "v=%d y=%s", v, y)
			}
		})
	}
}

func TestModSqrtLargeField(t *testing.T) {
	p, _ := new(big.Int).SetString("183864092725132365247326101", 10)
	rng := rand.New(rand.NewSource(7))

	found := 0
	for i := 0; i < 200; i++ {
		v := new(big.Int).Rand(rng, p)
		y, ok := ModSqrt(v, p)
		if !ok {
			require.Equal(t, -1, Legendre(v, p))
			continue
		}
		found++
		sq := new(big.Int).Mul(y, y)
		require.Zero(t, sq.Mod(sq, p).Cmp(v))
	}
	require.Greater(t, found, 50)
}

func TestField_Validate(t *testing.T) {
	tests := []struct {
		name string
		p, a int64
		ok   bool
	}{
		{"prime", 97, 2, true},
		{"composite", 91, 2, false},
		{"a out of range", 97, 97, false},
		{"negative a", 97, -1, false},
		{"too small", 3, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewField(big.NewInt(tt.p), big.NewInt(tt.a))
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidField)
			}
		})
	}
}

func TestField_IsSingular(t *testing.T) {
	// a = -3: 4a³ + 27b² = 27(b² - 4), singular for b = ±2
	f := &Field{P: big.NewInt(97), A: big.NewInt(94)}
	require.True(t, f.IsSingular(big.NewInt(2)))
	require.True(t, f.IsSingular(big.NewInt(95)))
	require.False(t, f.IsSingular(big.NewInt(3)))

	g := &Field{P: big.NewInt(97), A: big.NewInt(0)}
	require.True(t, g.IsSingular(big.NewInt(0)))
	require.False(t, g.IsSingular(big.NewInt(7)))
}

func TestField_GroupLaw(t *testing.T) {
	f := &Field{P: big.NewInt(97), A: big.NewInt(2)}
	b := big.NewInt(3)
	pts := enumerate(f, b)
	n := big.NewInt(int64(len(pts) + 1))

	for _, pt := range pts {
		// closure and inverse
		neg := f.Neg(pt)
		sum, err := f.Add(pt, neg)
		require.NoError(t, err)
		require.True(t, sum.IsInfinity())

		dbl, err := f.Double(pt)
		require.NoError(t, err)
		require.True(t, f.IsOnCurve(dbl, b))

		// Lagrange: #E·P = O
		z, err := f.ScalarMult(pt, n)
		require.NoError(t, err)
		require.True(t, z.IsInfinity(), "point %s", pt)
	}

	// associativity and scalar multiplication against repeated addition
	p1, p2, p3 := pts[1], pts[7], pts[20]
	l, err := f.Add(p1, p2)
	require.NoError(t, err)
	l, err = f.Add(l, p3)
	require.NoError(t, err)
	r, err := f.Add(p2, p3)
	require.NoError(t, err)
	r, err = f.Add(p1, r)
	require.NoError(t, err)
	require.True(t, l.Equal(r))

	acc := Infinity()
	for k := int64(0); k < 40; k++ {
		got, err := f.ScalarMult(p1, big.NewInt(k))
		require.NoError(t, err)
		require.True(t, got.Equal(acc), "k=%d", k)
		acc, err = f.Add(acc, p1)
		require.NoError(t, err)
	}
}

func TestField_AddIgnoresB(t *testing.T) {
	// Two curves sharing (p, a) add points with identical formulas, and
	// results stay on the curve the operands came from.
	f := &Field{P: big.NewInt(10009), A: big.NewInt(5)}
	rng := rand.New(rand.NewSource(1))
	for _, b := range []int64{1, 17, 4242} {
		bb := big.NewInt(b)
		p1, err := f.RandomPoint(rng, bb)
		require.NoError(t, err)
		p2, err := f.RandomPoint(rng, bb)
		require.NoError(t, err)
		s, err := f.Add(p1, p2)
		require.NoError(t, err)
		require.True(t, f.IsOnCurve(s, bb))
		m, err := f.ScalarMult(p1, big.NewInt(1234567))
		require.NoError(t, err)
		require.True(t, f.IsOnCurve(m, bb))
	}
}

func TestField_PointOrder(t *testing.T) {
	f := &Field{P: big.NewInt(97), A: big.NewInt(2)}
	b := big.NewInt(3)
	pts := enumerate(f, b)
	n := big.NewInt(int64(len(pts) + 1))

	primes := []*big.Int{}
	m := n.Int64()
	for d := int64(2); d <= m; d++ {
		if m%d == 0 {
			primes = append(primes, big.NewInt(d))
			for m%d == 0 {
				m /= d
			}
		}
	}

	for _, pt := range pts[:10] {
		ord, err := f.PointOrder(pt, n, primes)
		require.NoError(t, err)

		// smallest k with k·P = O
		acc := pt.Clone()
		k := int64(1)
		for !acc.IsInfinity() {
			acc, err = f.Add(acc, pt)
			require.NoError(t, err)
			k++
		}
		require.Equal(t, k, ord.Int64(), "point %s", pt)
	}
}

func TestField_DomainError(t *testing.T) {
	f := &Field{P: big.NewInt(91), A: big.NewInt(1)}
	_, err := f.Add(NewPoint(big.NewInt(1), big.NewInt(1)), NewPoint(big.NewInt(8), big.NewInt(3)))
	require.Error(t, err)

	var de *DomainError
	require.True(t, errors.As(err, &de))
	require.Equal(t, int64(7), de.Value.Int64())
	require.True(t, IsDomainError(err))

	_, err = f.ScalarMult(NewPoint(big.NewInt(1), big.NewInt(1)), big.NewInt(-1))
	require.True(t, IsDomainError(err))
}

func TestRandInt(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	max := big.NewInt(1000)
	for i := 0; i < 500; i++ {
		v, err := RandInt(rng, max)
		require.NoError(t, err)
		require.True(t, v.Sign() >= 0 && v.Cmp(max) < 0)
	}
	_, err := RandInt(rng, big.NewInt(0))
	require.Error(t, err)
}

func TestHasseInterval(t *testing.T) {
	f := &Field{P: big.NewInt(97), A: big.NewInt(2)}
	lo, hi := f.HasseInterval()
	n := int64(len(enumerate(f, big.NewInt(3))) + 1)
	require.LessOrEqual(t, lo.Int64(), n)
	require.GreaterOrEqual(t, hi.Int64(), n)
}
