package order

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/mahdiidarabi/invalid-curve/internal/drbg"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// Mestre counts points with baby-step giant-step over the Hasse interval:
// for random points P it collects every N in [p+1-2√p, p+1+2√p] with
// N·P = O and intersects the sets until one value is left. Cost grows
// with p^(1/4), so the counter refuses fields wider than MaxBits. At the
// default limit a count takes a couple of minutes and about a gigabyte of memory.
type Mestre struct {
	// MaxBits is the largest field size accepted (default DefaultMestreBits).
	MaxBits int
	// Points bounds how many random points are tried (default 20).
	Points int
	// Rand drives point selection. Defaults to a stream seeded by the curve.
	Rand io.Reader
}

// DefaultMestreBits is the field size limit used when Mestre.MaxBits is 0.
const DefaultMestreBits = 96

// maxCandidates is the largest candidate set a single point may leave;
// points of small order are skipped instead.
const maxCandidates = 64

func (m Mestre) Name() string { return "mestre" }

func (m Mestre) Order(ctx context.Context, f *weierstrass.Field, b *big.Int) (*big.Int, error) {
	maxBits := m.MaxBits
	if maxBits <= 0 {
		maxBits = DefaultMestreBits
	}
	if f.P.BitLen() > maxBits {
		return nil, fmt.Errorf("%w: %d-bit field exceeds %d bits", ErrUnsupported, f.P.BitLen(), maxBits)
	}
	if f.IsSingular(b) {
		return nil, fmt.Errorf("%w: singular curve b=%s", ErrUnsupported, b)
	}
	points := m.Points
	if points <= 0 {
		points = 20
	}
	rand := m.Rand
	if rand == nil {
		rand = drbg.New(fmt.Sprintf("mestre/%s/%s/%s", f.P, f.A, b))
	}

	lo, hi := f.HasseInterval()
	var cands []*big.Int
	for i := 0; i < points; i++ {
		pt, err := f.RandomPoint(rand, b)
		if err != nil {
			return nil, err
		}

		if cands != nil {
			if cands, err = candidatesFor(f, pt, cands); err != nil {
				return nil, err
			}
		} else {
			got, err := annihilators(ctx, f, pt, lo, hi)
			if err != nil {
				return nil, err
			}
			if got == nil {
				continue
			}
			cands = got
		}

		switch len(cands) {
		case 0:
			return nil, fmt.Errorf("%w: no group order in the Hasse interval for b=%s", ErrUnknown, b)
		case 1:
			return cands[0], nil
		}
	}
	return nil, fmt.Errorf("%w: %d candidates left for b=%s", ErrUnknown, len(cands), b)
}

// annihilators returns every N in [lo, hi] with N·pt = O, or nil when pt
// has too small an order to be useful.
func annihilators(ctx context.Context, f *weierstrass.Field, pt weierstrass.Point, lo, hi *big.Int) ([]*big.Int, error) {
	width := new(big.Int).Sub(hi, lo)
	m := new(big.Int).Sqrt(width)
	m.Add(m, big.NewInt(1))
	if !m.IsInt64() {
		return nil, fmt.Errorf("%w: interval too wide", ErrUnsupported)
	}
	steps := m.Int64()

	// baby steps: j·P for 0 <= j < m
	baby := make(map[string]int64, steps)
	acc := weierstrass.Infinity()
	var err error
	for j := int64(0); j < steps; j++ {
		if j > 0 && acc.IsInfinity() {
			// order of P is j: every multiple of j in range qualifies
			return multiplesIn(big.NewInt(j), lo, hi), nil
		}
		baby[acc.Key()] = j
		if acc, err = f.Add(acc, pt); err != nil {
			return nil, err
		}
	}

	// giant steps: Q_i = (lo + i·m)·P; a hit means Q_i = -j·P
	giant, err := f.ScalarMult(pt, m)
	if err != nil {
		return nil, err
	}
	q, err := f.ScalarMult(pt, lo)
	if err != nil {
		return nil, err
	}

	var out []*big.Int
	base := new(big.Int).Set(lo)
	for i := int64(0); base.Cmp(hi) <= 0; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if j, ok := baby[f.Neg(q).Key()]; ok {
			n := new(big.Int).Add(base, big.NewInt(j))
			if n.Cmp(hi) <= 0 && n.Sign() > 0 {
				out = append(out, n)
				if len(out) > maxCandidates {
					return nil, nil
				}
			}
		}
		if q, err = f.Add(q, giant); err != nil {
			return nil, err
		}
		base.Add(base, m)
	}
	return dedupe(out), nil
}

func multiplesIn(d, lo, hi *big.Int) []*big.Int {
	first := new(big.Int).Add(lo, new(big.Int).Sub(d, big.NewInt(1)))
	first.Quo(first, d)
	first.Mul(first, d)
	count := new(big.Int).Sub(hi, first)
	count.Quo(count, d)
	if count.Cmp(big.NewInt(maxCandidates)) >= 0 {
		return nil
	}
	var out []*big.Int
	for v := first; v.Cmp(hi) <= 0; v = new(big.Int).Add(v, d) {
		if v.Sign() > 0 {
			out = append(out, v)
		}
	}
	return out
}
