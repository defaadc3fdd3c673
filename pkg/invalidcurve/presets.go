package invalidcurve

import (
	"crypto/elliptic"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"filippo.io/edwards25519"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// Preset is a named honest curve: the field, its constant B and, when
// known, a generator G of prime order N.
type Preset struct {
	Name  string
	Field weierstrass.Field
	B     *big.Int
	G     weierstrass.Point
	N     *big.Int
}

// Calibration returns G as a calibration point, or nil when the preset has
// no generator.
func (p Preset) Calibration() *Calibration {
	if p.N == nil {
		return nil
	}
	return &Calibration{B: new(big.Int).Set(p.B), Point: p.G.Clone()}
}

func mustInt(s string, base int) *big.Int {
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		panic("invalidcurve: bad constant " + s)
	}
	return v
}

// SmallField is an 88-bit test field with a known honest curve. Its
// orders are within reach of order.Mestre at its default limit, at about
// two minutes per curve.
func SmallField() Preset {
	return Preset{
		Name: "small",
		Field: weierstrass.Field{
			P: mustInt("183864092725132365247326101", 10),
			A: mustInt("35464063352748132137167577", 10),
		},
		B: mustInt("73813813485549545642019671", 10),
	}
}

// Secp256k1 returns the Bitcoin curve y² = x³ + 7.
func Secp256k1() Preset {
	params := secp256k1.S256().Params()
	return Preset{
		Name:  "secp256k1",
		Field: weierstrass.Field{P: new(big.Int).Set(params.P), A: new(big.Int)},
		B:     new(big.Int).Set(params.B),
		G:     weierstrass.NewPoint(params.Gx, params.Gy),
		N:     new(big.Int).Set(params.N),
	}
}

// P256 returns NIST P-256, whose a is p - 3.
func P256() Preset {
	params := elliptic.P256().Params()
	return Preset{
		Name: "p256",
		Field: weierstrass.Field{
			P: new(big.Int).Set(params.P),
			A: new(big.Int).Sub(params.P, big.NewInt(3)),
		},
		B: new(big.Int).Set(params.B),
		G: weierstrass.NewPoint(params.Gx, params.Gy),
		N: new(big.Int).Set(params.N),
	}
}

// Wei25519 returns Curve25519 in short Weierstrass form. The generator is
// the Ed25519 base point mapped through its Montgomery u-coordinate:
// x = u + A/3, with a = (3 - A²)/3 and b = (2A³ - 9A)/27 for A = 486662.
func Wei25519() Preset {
	p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))
	A := big.NewInt(486662)
	inv3 := new(big.Int).ModInverse(big.NewInt(3), p)
	inv27 := new(big.Int).ModInverse(big.NewInt(27), p)

	a := new(big.Int).Mul(A, A)
	a.Sub(big.NewInt(3), a)
	a.Mul(a, inv3)
	a.Mod(a, p)

	b := new(big.Int).Exp(A, big.NewInt(3), nil)
	b.Mul(b, big.NewInt(2))
	b.Sub(b, new(big.Int).Mul(big.NewInt(9), A))
	b.Mul(b, inv27)
	b.Mod(b, p)

	// BytesMontgomery is little-endian
	le := edwards25519.NewGeneratorPoint().BytesMontgomery()
	be := make([]byte, len(le))
	for i := range le {
		be[len(le)-1-i] = le[i]
	}
	u := new(big.Int).SetBytes(be)

	x := new(big.Int).Mul(A, inv3)
	x.Add(x, u)
	x.Mod(x, p)

	f := weierstrass.Field{P: p, A: a}
	y, ok := weierstrass.ModSqrt(f.Evaluate(x, b), p)
	if !ok {
		panic("invalidcurve: Wei25519 base point is not on the curve")
	}

	return Preset{
		Name:  "wei25519",
		Field: f,
		B:     b,
		G:     weierstrass.Point{X: x, Y: y},
		N:     mustInt("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10),
	}
}

var presets = map[string]func() Preset{
	"small":     SmallField,
	"secp256k1": Secp256k1,
	"p256":      P256,
	"wei25519":  Wei25519,
}

// PresetNames lists the names accepted by LookupPreset.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupPreset returns the preset called name.
func LookupPreset(name string) (Preset, error) {
	mk, ok := presets[strings.ToLower(name)]
	if !ok {
		return Preset{}, fmt.Errorf("unknown curve %q (known: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return mk(), nil
}
