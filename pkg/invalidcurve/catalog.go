package invalidcurve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/mahdiidarabi/invalid-curve/internal/numparse"
	"github.com/mahdiidarabi/invalid-curve/pkg/factor"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// SubgroupPoint is a point of exact order Prime^Exp on its curve.
type SubgroupPoint struct {
	Point weierstrass.Point
	Order *big.Int
	Prime *big.Int
	Exp   int
}

// Curve is an invalid curve y² = x³ + ax + B sharing (p, a) with the
// target. Order is #E(GF(p)) and Factors its factorization.
type Curve struct {
	B       *big.Int
	Order   *big.Int
	Factors factor.Factorization
	Points  []SubgroupPoint
}

// Calibration is a point g0 on the honest curve B, used to check that the
// oracle really works on the expected curve.
type Calibration struct {
	B     *big.Int
	Point weierstrass.Point
}

// Catalog is the output of curve generation and the input of an attack.
// Bound, when set, is the exclusive secret bound the catalog was built
// for; an attack uses it unless its own configuration overrides it.
type Catalog struct {
	Field  weierstrass.Field
	G0     *Calibration
	Bound  *big.Int
	Curves []Curve
}

// PointRef is a subgroup point together with the curve it lives on.
type PointRef struct {
	Curve int
	B     *big.Int
	SubgroupPoint
}

// Points flattens the catalog in curve order.
func (c *Catalog) Points() []PointRef {
	var out []PointRef
	for i, cv := range c.Curves {
		for _, sp := range cv.Points {
			out = append(out, PointRef{Curve: i, B: cv.B, SubgroupPoint: sp})
		}
	}
	return out
}

// Coverage returns the product over distinct primes of the largest prime
// power covered by any subgroup point. A secret below this value is fully
// determined by the attack.
func (c *Catalog) Coverage() *big.Int {
	return coverageOf(c.Points())
}

func coverageOf(refs []PointRef) *big.Int {
	best := map[string]*big.Int{}
	for _, r := range refs {
		k := r.Prime.String()
		if cur, ok := best[k]; !ok || r.Order.Cmp(cur) > 0 {
			best[k] = r.Order
		}
	}
	n := big.NewInt(1)
	for _, q := range best {
		n.Mul(n, q)
	}
	return n
}

// Validate checks the field, every curve and every subgroup point: each
// point lies on its curve and has exactly its recorded order.
func (c *Catalog) Validate() error {
	f := &c.Field
	if err := validateField(f); err != nil {
		return err
	}
	if c.G0 != nil {
		if err := validateB(f, c.G0.B); err != nil {
			return err
		}
		if !f.IsOnCurve(c.G0.Point, c.G0.B) {
			return &ValidationError{Param: "g0", Value: c.G0.Point.X, Err: ErrCalibration}
		}
	}
	if c.Bound != nil && c.Bound.Sign() <= 0 {
		return &ValidationError{Param: "bound", Value: c.Bound, Err: errors.New("must be positive")}
	}
	for _, cv := range c.Curves {
		if err := validateB(f, cv.B); err != nil {
			return err
		}
		for _, sp := range cv.Points {
			if err := checkSubgroupPoint(f, cv.B, sp); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkSubgroupPoint(f *weierstrass.Field, b *big.Int, sp SubgroupPoint) error {
	if !f.IsOnCurve(sp.Point, b) {
		return fmt.Errorf("point %s is not on curve b=%s", sp.Point, b)
	}
	z, err := f.ScalarMult(sp.Point, sp.Order)
	if err != nil {
		return err
	}
	if !z.IsInfinity() {
		return fmt.Errorf("point %s on b=%s does not have order dividing %s", sp.Point, b, sp.Order)
	}
	sub := new(big.Int).Quo(sp.Order, sp.Prime)
	z, err = f.ScalarMult(sp.Point, sub)
	if err != nil {
		return err
	}
	if z.IsInfinity() {
		return fmt.Errorf("point %s on b=%s has order below %s", sp.Point, b, sp.Order)
	}
	return nil
}

type pointJSON struct {
	X     numparse.BigInt `json:"x"`
	Y     numparse.BigInt `json:"y"`
	Order numparse.BigInt `json:"order"`
}

type curveJSON struct {
	B       numparse.BigInt `json:"b"`
	Order   numparse.BigInt `json:"order"`
	Factors map[string]int  `json:"factors,omitempty"`
	Points  []pointJSON     `json:"points"`
}

type calibrationJSON struct {
	B numparse.BigInt `json:"b"`
	X numparse.BigInt `json:"x"`
	Y numparse.BigInt `json:"y"`
}

type fieldJSON struct {
	P     numparse.BigInt  `json:"p"`
	A     numparse.BigInt  `json:"a"`
	G0    *calibrationJSON `json:"g0,omitempty"`
	Bound *numparse.BigInt `json:"bound,omitempty"`
}

type catalogJSON struct {
	CurveParams fieldJSON   `json:"curve_params"`
	Curves      []curveJSON `json:"curves"`
}

func (c *Catalog) MarshalJSON() ([]byte, error) {
	doc := catalogJSON{
		CurveParams: fieldJSON{P: numparse.Wrap(c.Field.P), A: numparse.Wrap(c.Field.A)},
		Curves:      make([]curveJSON, 0, len(c.Curves)),
	}
	if c.G0 != nil {
		doc.CurveParams.G0 = &calibrationJSON{
			B: numparse.Wrap(c.G0.B),
			X: numparse.Wrap(c.G0.Point.X),
			Y: numparse.Wrap(c.G0.Point.Y),
		}
	}
	if c.Bound != nil {
		bound := numparse.Wrap(c.Bound)
		doc.CurveParams.Bound = &bound
	}
	for _, cv := range c.Curves {
		cj := curveJSON{
			B:      numparse.Wrap(cv.B),
			Order:  numparse.Wrap(cv.Order),
			Points: make([]pointJSON, 0, len(cv.Points)),
		}
		if len(cv.Factors) > 0 {
			cj.Factors = cv.Factors.Map()
		}
		for _, sp := range cv.Points {
			cj.Points = append(cj.Points, pointJSON{
				X:     numparse.Wrap(sp.Point.X),
				Y:     numparse.Wrap(sp.Point.Y),
				Order: numparse.Wrap(sp.Order),
			})
		}
		doc.Curves = append(doc.Curves, cj)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (c *Catalog) UnmarshalJSON(data []byte) error {
	var doc catalogJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.CurveParams.P.Int == nil || doc.CurveParams.A.Int == nil {
		return &ValidationError{Param: "curve_params", Err: fmt.Errorf("missing p or a")}
	}

	out := Catalog{Field: weierstrass.Field{P: doc.CurveParams.P.Int, A: doc.CurveParams.A.Int}}
	if g0 := doc.CurveParams.G0; g0 != nil {
		if g0.B.Int == nil || g0.X.Int == nil || g0.Y.Int == nil {
			return &ValidationError{Param: "g0", Err: fmt.Errorf("missing b, x or y")}
		}
		out.G0 = &Calibration{B: g0.B.Int, Point: weierstrass.Point{X: g0.X.Int, Y: g0.Y.Int}}
	}
	if doc.CurveParams.Bound != nil {
		out.Bound = doc.CurveParams.Bound.Int
	}

	for i, cj := range doc.Curves {
		if cj.B.Int == nil {
			return &ValidationError{Param: fmt.Sprintf("curves[%d].b", i), Err: fmt.Errorf("missing")}
		}
		cv := Curve{B: cj.B.Int, Order: cj.Order.Int}
		if len(cj.Factors) > 0 {
			fs, err := factor.FromMap(cj.Factors)
			if err != nil {
				return fmt.Errorf("curves[%d]: %w", i, err)
			}
			cv.Factors = fs
		}
		for j, pj := range cj.Points {
			if pj.X.Int == nil || pj.Y.Int == nil || pj.Order.Int == nil {
				return &ValidationError{Param: fmt.Sprintf("curves[%d].points[%d]", i, j), Err: fmt.Errorf("missing x, y or order")}
			}
			prime, exp, err := primePowerOf(pj.Order.Int, cv.Factors)
			if err != nil {
				return fmt.Errorf("curves[%d].points[%d]: %w", i, j, err)
			}
			cv.Points = append(cv.Points, SubgroupPoint{
				Point: weierstrass.Point{X: pj.X.Int, Y: pj.Y.Int},
				Order: pj.Order.Int,
				Prime: prime,
				Exp:   exp,
			})
		}
		out.Curves = append(out.Curves, cv)
	}
	*c = out
	return nil
}

// primePowerOf splits q = prime^exp, looking the prime up in the curve's
// factorization first.
func primePowerOf(q *big.Int, fs factor.Factorization) (*big.Int, int, error) {
	for _, pp := range fs {
		if exp := powerOf(q, pp.Prime); exp > 0 {
			return pp.Prime, exp, nil
		}
	}
	f, err := factor.Local{}.Factor(context.Background(), q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to factor point order %s: %w", q, err)
	}
	if len(f) != 1 {
		return nil, 0, fmt.Errorf("point order %s is not a prime power", q)
	}
	return f[0].Prime, f[0].Exp, nil
}

// powerOf returns e when q = prime^e, otherwise 0.
func powerOf(q, prime *big.Int) int {
	if prime.Cmp(big.NewInt(1)) <= 0 {
		return 0
	}
	v := new(big.Int).Set(q)
	e := 0
	r := new(big.Int)
	for v.Cmp(big.NewInt(1)) > 0 {
		var quo big.Int
		quo.QuoRem(v, prime, r)
		if r.Sign() != 0 {
			return 0
		}
		v.Set(&quo)
		e++
	}
	return e
}

// Write encodes the catalog as JSON.
func (c *Catalog) Write(w io.Writer) error {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Save writes the catalog to path in one step: it is written to a
// temporary file in the same directory and renamed into place.
func (c *Catalog) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("failed to create catalog file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := c.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}
	return nil
}

// ReadCatalog decodes a catalog and validates it.
func ReadCatalog(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCatalog reads a catalog file written by Save.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return ReadCatalog(f)
}
