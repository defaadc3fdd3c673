package weierstrass

import (
	"fmt"
	"math/big"
)

// Point is an affine point (x, y). The pair (0, 0) stands for the point at
// infinity; no curve with b ≢ 0 contains (0, 0), so the encoding is
// unambiguous for every curve the toolkit handles.
type Point struct {
	X *big.Int
	Y *big.Int
}

// Infinity returns the identity element.
func Infinity() Point {
	return Point{X: new(big.Int), Y: new(big.Int)}
}

// NewPoint copies x and y into a new point.
func NewPoint(x, y *big.Int) Point {
	return Point{X: new(big.Int).Set(x), Y: new(big.Int).Set(y)}
}

// IsInfinity reports whether p is the identity. A zero-valued Point
// (nil coordinates) is treated as the identity too.
func (p Point) IsInfinity() bool {
	return (p.X == nil || p.X.Sign() == 0) && (p.Y == nil || p.Y.Sign() == 0)
}

// Equal reports whether p and q have identical coordinates.
func (p Point) Equal(q Point) bool {
	if p.IsInfinity() || q.IsInfinity() {
		return p.IsInfinity() && q.IsInfinity()
	}
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

// Clone returns a deep copy of p.
func (p Point) Clone() Point {
	if p.IsInfinity() {
		return Infinity()
	}
	return NewPoint(p.X, p.Y)
}

// Key returns a string usable as a map key for lookup tables.
func (p Point) Key() string {
	if p.IsInfinity() {
		return "O"
	}
	return p.X.Text(62) + ":" + p.Y.Text(62)
}

func (p Point) String() string {
	if p.IsInfinity() {
		return "(0, 0)"
	}
	return fmt.Sprintf("(%s, %s)", p.X, p.Y)
}
