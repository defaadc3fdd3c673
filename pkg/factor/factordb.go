package factor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mahdiidarabi/invalid-curve/internal/numparse"
)

// DefaultFactorDBURL is the public FactorDB instance.
const DefaultFactorDBURL = "http://factordb.com"

// FactorDB status codes.
const (
	StatusFullyFactored   = "FF"
	StatusCompositeFactor = "CF"
	StatusComposite       = "C"
	StatusPrime           = "P"
	StatusProbablePrime   = "PRP"
	StatusUnknown         = "U"
)

// FactorDB looks numbers up in a FactorDB service. Only fully factored
// entries are accepted outright; partially factored ones are returned as
// a *PartialError so a Chain can finish them locally.
type FactorDB struct {
	BaseURL string
	Client  *http.Client
	// Limiter throttles requests. Nil means no throttling.
	Limiter *rate.Limiter
	// Attempts is how many times an unfactored number is submitted and
	// looked up again before giving up (default 3).
	Attempts int
	// Backoff is the pause between attempts.
	Backoff time.Duration
}

// NewFactorDB returns a client for baseURL limited to two requests per
// second.
func NewFactorDB(baseURL string) *FactorDB {
	if baseURL == "" {
		baseURL = DefaultFactorDBURL
	}
	return &FactorDB{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Client:   &http.Client{Timeout: 30 * time.Second},
		Limiter:  rate.NewLimiter(rate.Limit(2), 1),
		Attempts: 3,
		Backoff:  time.Second,
	}
}

func (db *FactorDB) Name() string { return "factordb" }

type factorDBResponse struct {
	ID      json.RawMessage      `json:"id"`
	Status  string               `json:"status"`
	Factors [][2]json.RawMessage `json:"factors"`
}

// Factor queries the database for n.
func (db *FactorDB) Factor(ctx context.Context, n *big.Int) (Factorization, error) {
	attempts := db.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var last *factorDBResponse
	for i := 0; i < attempts; i++ {
		if i > 0 {
			// ask the service to work on it, then look again
			if err := db.submit(ctx, n); err != nil {
				return nil, err
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(db.Backoff):
			}
		}

		resp, err := db.lookup(ctx, n)
		if err != nil {
			return nil, err
		}
		last = resp

		switch strings.ToUpper(resp.Status) {
		case StatusFullyFactored:
			f, err := resp.factorization()
			if err != nil {
				return nil, err
			}
			if err := f.Verify(n); err != nil {
				return nil, err
			}
			return f, nil
		case StatusPrime, StatusProbablePrime:
			if !n.ProbablyPrime(32) {
				return nil, fmt.Errorf("%w: factordb reports %s prime", ErrUnknown, n)
			}
			return Factorization{{Prime: new(big.Int).Set(n), Exp: 1}}, nil
		}
	}

	if last != nil && strings.ToUpper(last.Status) == StatusCompositeFactor {
		return last.partial(n)
	}
	status := ""
	if last != nil {
		status = last.Status
	}
	return nil, fmt.Errorf("%w: factordb status %q for %s", ErrUnknown, status, n)
}

func (db *FactorDB) wait(ctx context.Context) error {
	if db.Limiter == nil {
		return nil
	}
	return db.Limiter.Wait(ctx)
}

func (db *FactorDB) client() *http.Client {
	if db.Client == nil {
		return http.DefaultClient
	}
	return db.Client
}

func (db *FactorDB) lookup(ctx context.Context, n *big.Int) (*factorDBResponse, error) {
	if err := db.wait(ctx); err != nil {
		return nil, err
	}
	u := db.BaseURL + "/api?query=" + url.QueryEscape(n.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build factordb request: %w", err)
	}
	res, err := db.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query factordb: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: factordb returned HTTP %d", ErrUnknown, res.StatusCode)
	}

	var out factorDBResponse
	decoder := json.NewDecoder(io.LimitReader(res.Body, 1<<20))
	decoder.UseNumber()
	if err := decoder.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode factordb response: %w", err)
	}
	return &out, nil
}

func (db *FactorDB) submit(ctx context.Context, n *big.Int) error {
	if err := db.wait(ctx); err != nil {
		return err
	}
	u := db.BaseURL + "/index.php?query=" + url.QueryEscape(n.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build factordb request: %w", err)
	}
	res, err := db.client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit to factordb: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return res.Body.Close()
}

func (r *factorDBResponse) entries() ([]PrimePower, error) {
	out := make([]PrimePower, 0, len(r.Factors))
	for _, pair := range r.Factors {
		var p numparse.BigInt
		if err := json.Unmarshal(pair[0], &p); err != nil || p.Int == nil {
			return nil, fmt.Errorf("failed to parse factor %s: %v", pair[0], err)
		}
		var exp int
		if err := json.Unmarshal(pair[1], &exp); err != nil {
			return nil, fmt.Errorf("failed to parse exponent: %w", err)
		}
		out = append(out, PrimePower{Prime: p.Int, Exp: exp})
	}
	return out, nil
}

func (r *factorDBResponse) factorization() (Factorization, error) {
	entries, err := r.entries()
	if err != nil {
		return nil, err
	}
	var f Factorization
	for _, e := range entries {
		f = f.Add(e.Prime, e.Exp)
	}
	return f, nil
}

// partial splits a CF answer into proven primes and composites.
func (r *factorDBResponse) partial(n *big.Int) (Factorization, error) {
	entries, err := r.entries()
	if err != nil {
		return nil, err
	}
	pe := &PartialError{Err: fmt.Errorf("factordb status %s for %s", r.Status, n)}
	for _, e := range entries {
		if e.Prime.ProbablyPrime(32) {
			pe.Known = pe.Known.Add(e.Prime, e.Exp)
			continue
		}
		for i := 0; i < e.Exp; i++ {
			pe.Composite = append(pe.Composite, new(big.Int).Set(e.Prime))
		}
	}
	if len(pe.Composite) == 0 {
		if err := pe.Known.Verify(n); err != nil {
			return nil, err
		}
		return pe.Known, nil
	}
	return nil, pe
}
