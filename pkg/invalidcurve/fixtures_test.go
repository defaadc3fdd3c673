package invalidcurve

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/invalid-curve/pkg/factor"
	"github.com/mahdiidarabi/invalid-curve/pkg/order"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

func bigInt(t testing.TB, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad integer %q", s)
	return v
}

// Curves over the small field with precomputed orders:
//
//	b1: 2·5·7·19·47·557·12451·424119260870423
//	b2: 2233571·10945717·7520607881681
//	b3: 2·23·61553·64936647994805210297
var smallOrders = map[string]string{
	"26817580302667750510556583":  "183864092725129713996888110",
	"130818225255654574185820382": "183864092725121228233109167",
	"55792094497497749139358188":  "183864092725115275032917086",
}

var smallBValues = []string{
	"26817580302667750510556583",
	"130818225255654574185820382",
	"55792094497497749139358188",
}

// product of every prime below 2^40 across the three curves, 2 counted once
const smallCoverage = "15004791513079035490545076037810"

func smallField() *weierstrass.Field {
	f := SmallField().Field
	return &f
}

func smallTable(t testing.TB) order.Table {
	t.Helper()
	tbl, err := order.NewTable(smallOrders)
	require.NoError(t, err)
	return tbl
}

func smallConfig(t testing.TB, bs ...string) GeneratorConfig {
	t.Helper()
	cfg := DefaultGeneratorConfig()
	cfg.Seed = "small-field"
	cfg.IncludeG0 = true
	cfg.HonestB = SmallField().B
	for _, b := range bs {
		cfg.BValues = append(cfg.BValues, bigInt(t, b))
	}
	return cfg
}

// smallCatalog generates a catalog over the small field for the given b.
func smallCatalog(t testing.TB, bs ...string) (*Catalog, *Report) {
	t.Helper()
	cat, report, err := NewGenerator(smallField(), smallTable(t), factor.Local{}).
		WithConfig(smallConfig(t, bs...)).
		Generate(context.Background())
	require.NoError(t, err)
	return cat, report
}

// multiplier is a faithful oracle: it multiplies any submitted point by
// secret with the field's group law and never checks the curve.
func multiplier(f *weierstrass.Field, secret *big.Int) Oracle {
	return OracleFunc(func(ctx context.Context, pt weierstrass.Point) (weierstrass.Point, error) {
		return f.ScalarMult(pt, secret)
	})
}

// Points on y² = x³ + 5x + b over GF(10007). Curve b=6 has order
// 10192 = 2⁴·7²·13 with a non-cyclic 2-part.
var (
	tinyField = weierstrass.Field{P: big.NewInt(10007), A: big.NewInt(5)}
	tinyB     = big.NewInt(6)
	tinyOrder = big.NewInt(10192)

	// order 49
	tinyG49 = weierstrass.NewPoint(big.NewInt(911), big.NewInt(61))
	// 7·tinyG49, order 7
	tinyG7 = weierstrass.NewPoint(big.NewInt(418), big.NewInt(6309))
	// order 13
	tinyG13 = weierstrass.NewPoint(big.NewInt(9085), big.NewInt(5256))
	// on b=1
	tinyCalibration = weierstrass.NewPoint(big.NewInt(2), big.NewInt(3704))
)

func tinyCatalog() *Catalog {
	fs, _ := factor.FromMap(map[string]int{"2": 4, "7": 2, "13": 1})
	return &Catalog{
		Field: tinyField,
		G0:    &Calibration{B: big.NewInt(1), Point: tinyCalibration},
		Curves: []Curve{{
			B:       tinyB,
			Order:   tinyOrder,
			Factors: fs,
			Points: []SubgroupPoint{
				{Point: tinyG49, Order: big.NewInt(49), Prime: big.NewInt(7), Exp: 2},
				{Point: tinyG13, Order: big.NewInt(13), Prime: big.NewInt(13), Exp: 1},
			},
		}},
	}
}
