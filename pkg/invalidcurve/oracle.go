package invalidcurve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mahdiidarabi/invalid-curve/internal/deadline"
	"github.com/mahdiidarabi/invalid-curve/internal/numparse"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// Oracle is the remote service under attack: it multiplies a submitted
// point by its secret scalar without checking the point's curve. A
// rejected or failed query returns an error.
type Oracle interface {
	Query(ctx context.Context, pt weierstrass.Point) (weierstrass.Point, error)
}

// OracleFunc adapts a plain function to Oracle.
type OracleFunc func(ctx context.Context, pt weierstrass.Point) (weierstrass.Point, error)

func (f OracleFunc) Query(ctx context.Context, pt weierstrass.Point) (weierstrass.Point, error) {
	return f(ctx, pt)
}

// WithTimeout bounds every query of o by d. A timeout is reported as an
// oracle failure.
func WithTimeout(o Oracle, d time.Duration) Oracle {
	if d <= 0 {
		return o
	}
	return OracleFunc(func(ctx context.Context, pt weierstrass.Point) (weierstrass.Point, error) {
		resp, err := deadline.Run(ctx, d, func(ctx context.Context) (weierstrass.Point, error) {
			return o.Query(ctx, pt)
		})
		if err != nil {
			return weierstrass.Point{}, fmt.Errorf("%w: %w", ErrOracle, err)
		}
		return resp, nil
	})
}

// PointMessage is the JSON body exchanged with an HTTP oracle.
type PointMessage struct {
	X numparse.BigInt `json:"x"`
	Y numparse.BigInt `json:"y"`
}

// NewPointMessage wraps pt for the wire.
func NewPointMessage(pt weierstrass.Point) PointMessage {
	if pt.IsInfinity() {
		pt = weierstrass.Infinity()
	}
	return PointMessage{X: numparse.Wrap(pt.X), Y: numparse.Wrap(pt.Y)}
}

// Point returns the decoded point.
func (m PointMessage) Point() (weierstrass.Point, error) {
	if m.X.Int == nil || m.Y.Int == nil {
		return weierstrass.Point{}, fmt.Errorf("missing x or y")
	}
	return weierstrass.NewPoint(m.X.Int, m.Y.Int), nil
}

// HTTPOracle posts points as JSON to URL and reads the product back.
type HTTPOracle struct {
	URL    string
	Client *http.Client
}

// NewHTTPOracle creates an oracle for the multiply endpoint at url.
func NewHTTPOracle(url string) *HTTPOracle {
	return &HTTPOracle{URL: url, Client: &http.Client{}}
}

func (o *HTTPOracle) Query(ctx context.Context, pt weierstrass.Point) (weierstrass.Point, error) {
	body, err := json.Marshal(NewPointMessage(pt))
	if err != nil {
		return weierstrass.Point{}, fmt.Errorf("%w: %w", ErrOracle, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL, bytes.NewReader(body))
	if err != nil {
		return weierstrass.Point{}, fmt.Errorf("%w: %w", ErrOracle, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return weierstrass.Point{}, fmt.Errorf("%w: %w", ErrOracle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return weierstrass.Point{}, fmt.Errorf("%w: status %d: %s", ErrOracle, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out PointMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return weierstrass.Point{}, fmt.Errorf("%w: failed to decode response: %w", ErrOracle, err)
	}
	r, err := out.Point()
	if err != nil {
		return weierstrass.Point{}, fmt.Errorf("%w: %w", ErrOracle, err)
	}
	return r, nil
}
