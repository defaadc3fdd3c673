// Package order counts the points of elliptic curves y² = x³ + ax + b over
// prime fields.
//
// General point counting (Schoof, SEA) is not implemented. Counters cover
// the cases an invalid curve search actually meets: small fields
// (Mestre), curves with j-invariant 0 (supersingular or CM), and
// precomputed tables.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/mahdiidarabi/invalid-curve/internal/deadline"
	"github.com/mahdiidarabi/invalid-curve/internal/numparse"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

var (
	// ErrUnsupported means the counter does not handle this field or curve.
	ErrUnsupported = errors.New("order counting not supported for this curve")
	// ErrUnknown means the counter applies but could not settle on a value.
	ErrUnknown = errors.New("order unknown")
)

// Counter returns #E(GF(p)) for y² = x³ + ax + b.
type Counter interface {
	Order(ctx context.Context, f *weierstrass.Field, b *big.Int) (*big.Int, error)
	Name() string
}

// Table answers from precomputed orders keyed by b.
type Table map[string]*big.Int

// NewTable builds a table from decimal b → order pairs.
func NewTable(entries map[string]string) (Table, error) {
	t := make(Table, len(entries))
	for b, n := range entries {
		v, ok := new(big.Int).SetString(n, 10)
		if !ok {
			return nil, fmt.Errorf("invalid order %q for b=%s", n, b)
		}
		t[b] = v
	}
	return t, nil
}

// ReadTable decodes a JSON object mapping b to its curve order, as in
//
//	{"26817580302667750510556583": "183864092725129713996888110"}
//
// Keys and values may be decimal or 0x hex; values may also be bare
// numbers.
func ReadTable(r io.Reader) (Table, error) {
	var raw map[string]numparse.BigInt
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse order table: %w", err)
	}
	t := make(Table, len(raw))
	for k, n := range raw {
		b, err := numparse.ParseString(k)
		if err != nil {
			return nil, fmt.Errorf("invalid b %q: %w", k, err)
		}
		if n.Int == nil || n.Sign() <= 0 {
			return nil, fmt.Errorf("invalid order for b=%s", b)
		}
		t[b.String()] = n.Int
	}
	return t, nil
}

// LoadTable reads a table written in the ReadTable format from path.
func LoadTable(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open order table: %w", err)
	}
	defer file.Close()
	return ReadTable(file)
}

func (t Table) Name() string { return "table" }

func (t Table) Order(ctx context.Context, f *weierstrass.Field, b *big.Int) (*big.Int, error) {
	n, ok := t[b.String()]
	if !ok {
		return nil, fmt.Errorf("%w: b=%s not in table", ErrUnsupported, b)
	}
	return new(big.Int).Set(n), nil
}

// Chain asks each counter in turn and returns the first answer. Counters
// reporting ErrUnsupported are skipped silently; other failures are
// collected.
type Chain []Counter

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, cnt := range c {
		names[i] = cnt.Name()
	}
	return strings.Join(names, "+")
}

func (c Chain) Order(ctx context.Context, f *weierstrass.Field, b *big.Int) (*big.Int, error) {
	var errs []error
	for _, cnt := range c {
		n, err := cnt.Order(ctx, f, b)
		if err == nil {
			return n, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrUnsupported) {
			errs = append(errs, fmt.Errorf("%s: %w", cnt.Name(), err))
		}
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no counter handles b=%s", ErrUnsupported, b)
	}
	return nil, errors.Join(errs...)
}

// Escalating runs a counter under an escalating deadline policy.
type Escalating struct {
	Counter Counter
	Policy  deadline.Policy
}

func (e Escalating) Name() string { return e.Counter.Name() }

func (e Escalating) Order(ctx context.Context, f *weierstrass.Field, b *big.Int) (*big.Int, error) {
	return deadline.Escalate(ctx, e.Policy, func(ctx context.Context) (*big.Int, error) {
		return e.Counter.Order(ctx, f, b)
	})
}

// Verify checks n·P = O for count random points of the curve. A wrong
// order is caught with overwhelming probability.
func Verify(f *weierstrass.Field, b, n *big.Int, rand io.Reader, count int) error {
	for i := 0; i < count; i++ {
		pt, err := f.RandomPoint(rand, b)
		if err != nil {
			return err
		}
		z, err := f.ScalarMult(pt, n)
		if err != nil {
			return err
		}
		if !z.IsInfinity() {
			return fmt.Errorf("%w: %s does not annihilate %s", ErrUnknown, n, pt)
		}
	}
	return nil
}

// candidatesFor keeps the values of cands that annihilate pt.
func candidatesFor(f *weierstrass.Field, pt weierstrass.Point, cands []*big.Int) ([]*big.Int, error) {
	var out []*big.Int
	for _, n := range cands {
		z, err := f.ScalarMult(pt, n)
		if err != nil {
			return nil, err
		}
		if z.IsInfinity() {
			out = append(out, n)
		}
	}
	return out, nil
}

func dedupe(vals []*big.Int) []*big.Int {
	seen := make(map[string]bool, len(vals))
	var out []*big.Int
	for _, v := range vals {
		k := v.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
