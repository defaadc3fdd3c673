// Package oracleserver simulates a remote scalar multiplication service
// that holds a secret and forgets to check its input points.
package oracleserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mahdiidarabi/invalid-curve/pkg/invalidcurve"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// Multiplier computes Secret·P with the group law of Field. With Strict
// set it rejects points that are not on the curve B, as a correct
// implementation would.
type Multiplier struct {
	Field  weierstrass.Field
	B      *big.Int
	Secret *big.Int
	Strict bool
}

// ErrRejected is returned for input the multiplier refuses.
var ErrRejected = errors.New("point rejected")

// Multiply returns Secret·pt.
func (m *Multiplier) Multiply(pt weierstrass.Point) (weierstrass.Point, error) {
	p := m.Field.P
	if pt.X.Sign() < 0 || pt.X.Cmp(p) >= 0 || pt.Y.Sign() < 0 || pt.Y.Cmp(p) >= 0 {
		return weierstrass.Point{}, fmt.Errorf("%w: coordinates outside [0, p)", ErrRejected)
	}
	if m.Strict && !m.Field.IsOnCurve(pt, m.B) {
		return weierstrass.Point{}, fmt.Errorf("%w: not on curve", ErrRejected)
	}
	r, err := m.Field.ScalarMult(pt, m.Secret)
	if err != nil {
		return weierstrass.Point{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return r, nil
}

// Options tune the HTTP service.
type Options struct {
	// RequestsPerSecond per client address (0 = unlimited)
	RequestsPerSecond float64
	Burst             int
	Logger            *zap.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

const visitorTTL = 10 * time.Minute

func (rl *rateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if v, ok := rl.visitors[ip]; ok {
		v.lastSeen = now
		return v.limiter
	}
	if len(rl.visitors) >= 1024 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(rl.visitors, k)
			}
		}
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.visitors[ip] = &visitor{limiter: l, lastSeen: now}
	return l
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.get(clientIP(r)).Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// New returns the oracle's router:
//
//	POST /v1/multiply  {"x","y"} -> {"x","y"}
//	GET  /healthz
func New(m *Multiplier, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	r.Group(func(r chi.Router) {
		if opts.RequestsPerSecond > 0 {
			burst := opts.Burst
			if burst <= 0 {
				burst = 1
			}
			rl := &rateLimiter{
				visitors: make(map[string]*visitor),
				limit:    rate.Limit(opts.RequestsPerSecond),
				burst:    burst,
			}
			r.Use(rl.middleware)
		}

		r.Post("/v1/multiply", func(w http.ResponseWriter, r *http.Request) {
			log := logger.With(zap.String("request", middleware.GetReqID(r.Context())))

			var msg invalidcurve.PointMessage
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&msg); err != nil {
				log.Debug("malformed request", zap.Error(err))
				http.Error(w, "malformed point", http.StatusBadRequest)
				return
			}
			pt, err := msg.Point()
			if err != nil {
				http.Error(w, "malformed point: "+err.Error(), http.StatusBadRequest)
				return
			}

			res, err := m.Multiply(pt)
			if err != nil {
				log.Debug("query rejected", zap.Error(err))
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Debug("query answered", zap.String("x", pt.X.String()))

			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(invalidcurve.NewPointMessage(res)); err != nil {
				log.Warn("failed to write response", zap.Error(err))
			}
		})
	})

	return r
}
