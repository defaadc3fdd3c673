package invalidcurve

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mahdiidarabi/invalid-curve/internal/drbg"
	"github.com/mahdiidarabi/invalid-curve/internal/workpool"
	"github.com/mahdiidarabi/invalid-curve/pkg/factor"
	"github.com/mahdiidarabi/invalid-curve/pkg/order"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// Generator searches for invalid curves whose orders carry small prime
// powers and collects one point per usable prime power.
type Generator struct {
	field      weierstrass.Field
	counter    order.Counter
	factorizer factor.Factorizer
	config     GeneratorConfig
	logger     *zap.Logger
}

// Report summarizes a generation run.
type Report struct {
	RunID      string
	Seed       string
	Coverage   *big.Int
	Bound      *big.Int
	Covered    bool
	Candidates int
	Accepted   int
	// Skipped collects one error per discarded candidate
	Skipped  error
	Duration time.Duration
}

// NewGenerator creates a generator for the field with default settings.
func NewGenerator(field *weierstrass.Field, counter order.Counter, factorizer factor.Factorizer) *Generator {
	g := &Generator{
		counter:    counter,
		factorizer: factorizer,
		config:     DefaultGeneratorConfig(),
		logger:     zap.NewNop(),
	}
	if field != nil {
		g.field = *field
	}
	return g
}

// WithConfig sets the generation parameters.
func (g *Generator) WithConfig(config GeneratorConfig) *Generator {
	g.config = config
	return g
}

// WithLogger sets the logger used for progress lines.
func (g *Generator) WithLogger(logger *zap.Logger) *Generator {
	if logger != nil {
		g.logger = logger
	}
	return g
}

func (g *Generator) normalized() GeneratorConfig {
	cfg := g.config
	def := DefaultGeneratorConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxTimeout < cfg.Timeout {
		cfg.MaxTimeout = cfg.Timeout
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = def.MaxCandidates
	}
	if cfg.MaxFactorBits <= 0 {
		cfg.MaxFactorBits = def.MaxFactorBits
	}
	if cfg.PointAttempts <= 0 {
		cfg.PointAttempts = def.PointAttempts
	}
	return cfg
}

// candidate is the outcome of evaluating one b in a worker.
type candidate struct {
	b       *big.Int
	order   *big.Int
	factors factor.Factorization
	points  []SubgroupPoint
	err     error
}

// Generate runs the search and returns the catalog with its report.
//
// Explicit b values are all validated before any curve is built; an
// invalid one fails the call with a *ValidationError. Candidates whose
// order cannot be counted or factored in time are skipped and recorded in
// Report.Skipped. Running out of candidates is not an error: the caller
// checks Report.Covered.
func (g *Generator) Generate(ctx context.Context) (*Catalog, *Report, error) {
	start := time.Now()
	cfg := g.normalized()
	f := &g.field

	if err := validateField(f); err != nil {
		return nil, nil, err
	}
	for _, b := range cfg.BValues {
		if err := validateB(f, b); err != nil {
			return nil, nil, err
		}
	}
	if cfg.G0 != nil {
		if err := validateB(f, cfg.G0.B); err != nil {
			return nil, nil, err
		}
		if !f.IsOnCurve(cfg.G0.Point, cfg.G0.B) {
			return nil, nil, &ValidationError{Param: "g0", Value: cfg.G0.Point.X, Err: ErrCalibration}
		}
	} else if cfg.IncludeG0 {
		if err := validateB(f, cfg.HonestB); err != nil {
			return nil, nil, fmt.Errorf("honest curve: %w", err)
		}
	}

	rng, err := seeded(cfg.Seed)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{
		RunID: uuid.NewString(),
		Seed:  rng.Seed(),
		Bound: boundOr(cfg.SecretBound, f),
	}
	log := g.logger.With(zap.String("run", report.RunID))
	log.Info("generating curves",
		zap.String("p", f.P.String()),
		zap.String("a", f.A.String()),
		zap.Int("explicit", len(cfg.BValues)),
		zap.Int("target", cfg.Target),
		zap.String("bound", report.Bound.String()),
		zap.String("seed", report.Seed),
	)

	cat := &Catalog{Field: weierstrass.Field{P: new(big.Int).Set(f.P), A: new(big.Int).Set(f.A)}}
	if cfg.SecretBound != nil {
		cat.Bound = new(big.Int).Set(cfg.SecretBound)
	}
	if cfg.G0 != nil {
		cat.G0 = &Calibration{B: cfg.G0.B, Point: cfg.G0.Point.Clone()}
	} else if cfg.IncludeG0 {
		pt, err := f.RandomPoint(rng.Fork("g0"), cfg.HonestB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to pick calibration point: %w", err)
		}
		cat.G0 = &Calibration{B: new(big.Int).Set(cfg.HonestB), Point: pt}
	}

	cov := newCoverage(cfg.AllowRepeatPrimes)
	eval := func(ctx context.Context, b *big.Int) candidate {
		return g.evaluate(ctx, cfg, rng.Fork("b/"+b.String()), b)
	}
	workers := workpool.Workers(cfg.Workers)

	if len(cfg.BValues) > 0 {
		results, _, err := workpool.Map(ctx, workers, cfg.BValues, eval)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range results {
			report.Candidates++
			if c.err != nil {
				report.Skipped = multierr.Append(report.Skipped, c.err)
				log.Warn("skipping candidate", zap.String("b", c.b.String()), zap.Error(c.err))
				continue
			}
			cv := cov.accept(c)
			cat.Curves = append(cat.Curves, cv)
			log.Info("curve accepted",
				zap.String("b", cv.B.String()),
				zap.String("order", cv.Order.String()),
				zap.Int("points", len(cv.Points)),
			)
		}
	} else {
		if err := g.search(ctx, cfg, rng, cov, cat, report, eval, workers, log); err != nil {
			return cat, report, err
		}
	}

	report.Accepted = len(cat.Curves)
	report.Coverage = cov.product()
	report.Covered = report.Coverage.Cmp(report.Bound) >= 0
	report.Duration = time.Since(start)

	if cfg.OutputPath != "" {
		if err := cat.Save(cfg.OutputPath); err != nil {
			return cat, report, err
		}
		log.Info("catalog saved", zap.String("path", cfg.OutputPath))
	}

	log.Info("generation complete",
		zap.Int("curves", report.Accepted),
		zap.Int("candidates", report.Candidates),
		zap.Int("skipped", len(multierr.Errors(report.Skipped))),
		zap.String("coverage", report.Coverage.String()),
		zap.Bool("covered", report.Covered),
		zap.Duration("elapsed", report.Duration),
	)
	return cat, report, nil
}

// search draws random b values in batches of one per worker and accepts
// the results in draw order.
func (g *Generator) search(
	ctx context.Context,
	cfg GeneratorConfig,
	rng *drbg.Reader,
	cov *coverage,
	cat *Catalog,
	report *Report,
	eval func(context.Context, *big.Int) candidate,
	workers int,
	log *zap.Logger,
) error {
	f := &g.field
	bMax := new(big.Int).Sub(f.P, big.NewInt(1))

	done := func() bool {
		if cfg.Target > 0 && len(cat.Curves) >= cfg.Target {
			return true
		}
		return cov.product().Cmp(report.Bound) >= 0
	}

	for report.Candidates < cfg.MaxCandidates && !done() {
		n := workers
		if left := cfg.MaxCandidates - report.Candidates; n > left {
			n = left
		}

		batch := make([]*big.Int, 0, n)
		for len(batch) < n {
			b, err := rng.Int(bMax)
			if err != nil {
				return err
			}
			b.Add(b, big.NewInt(1))
			if f.IsSingular(b) || (cfg.HonestB != nil && b.Cmp(cfg.HonestB) == 0) {
				report.Candidates++
				n--
				continue
			}
			batch = append(batch, b)
		}

		results, _, err := workpool.Map(ctx, workers, batch, eval)
		if err != nil {
			return err
		}
		for _, c := range results {
			if done() {
				break
			}
			report.Candidates++
			if c.err != nil {
				report.Skipped = multierr.Append(report.Skipped, c.err)
				log.Debug("skipping candidate", zap.String("b", c.b.String()), zap.Error(c.err))
				continue
			}
			cv := cov.accept(c)
			if len(cv.Points) == 0 {
				log.Debug("candidate adds no prime", zap.String("b", c.b.String()))
				continue
			}
			cat.Curves = append(cat.Curves, cv)
			log.Info("curve accepted",
				zap.String("b", cv.B.String()),
				zap.String("order", cv.Order.String()),
				zap.Int("points", len(cv.Points)),
				zap.String("coverage", cov.product().String()),
			)
		}
	}
	return nil
}

// evaluate counts, verifies and factors the order of curve b and derives a
// point for every small enough prime power. It runs in a worker and only
// touches its own random stream.
func (g *Generator) evaluate(ctx context.Context, cfg GeneratorConfig, rng io.Reader, b *big.Int) candidate {
	f := &g.field
	c := candidate{b: b}

	counter := order.Escalating{Counter: g.counter, Policy: cfg.Policy()}
	n, err := counter.Order(ctx, f, b)
	if err != nil {
		c.err = fmt.Errorf("b=%s: order: %w", b, err)
		return c
	}
	if err := order.Verify(f, b, n, rng, 4); err != nil {
		c.err = fmt.Errorf("b=%s: %w", b, err)
		return c
	}
	c.order = n

	fz := factor.Escalating{Factorizer: g.factorizer, Policy: cfg.Policy()}
	fs, err := fz.Factor(ctx, n)
	if err != nil {
		c.err = fmt.Errorf("b=%s: factor %s: %w", b, n, err)
		return c
	}
	if err := fs.Verify(n); err != nil {
		c.err = fmt.Errorf("b=%s: %w", b, err)
		return c
	}
	c.factors = fs

	for _, pp := range fs {
		if pp.Prime.BitLen() > cfg.MaxFactorBits {
			continue
		}
		sp, ok, err := derivePoint(ctx, f, rng, b, n, pp, cfg.PointAttempts)
		if err != nil {
			c.err = fmt.Errorf("b=%s: point of order %s: %w", b, pp.Value(), err)
			return c
		}
		if ok {
			c.points = append(c.points, sp)
		}
	}
	return c
}

// derivePoint looks for a point of order exactly prime^exp by mapping
// random points into the subgroup: S = (n / prime^exp)·P. When every try
// falls short the best point found, of some smaller power, is returned.
func derivePoint(ctx context.Context, f *weierstrass.Field, rng io.Reader, b, n *big.Int, pp factor.PrimePower, attempts int) (SubgroupPoint, bool, error) {
	q := pp.Value()
	cofactor := new(big.Int).Quo(n, q)

	var best SubgroupPoint
	found := false
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return SubgroupPoint{}, false, err
		}
		pt, err := f.RandomPoint(rng, b)
		if err != nil {
			return SubgroupPoint{}, false, err
		}
		s, err := f.ScalarMult(pt, cofactor)
		if err != nil {
			return SubgroupPoint{}, false, err
		}
		if s.IsInfinity() {
			continue
		}
		ord, err := f.PointOrder(s, q, []*big.Int{pp.Prime})
		if err != nil {
			return SubgroupPoint{}, false, err
		}
		exp := powerOf(ord, pp.Prime)
		if !found || exp > best.Exp {
			best = SubgroupPoint{Point: s, Order: ord, Prime: pp.Prime, Exp: exp}
			found = true
		}
		if exp == pp.Exp {
			break
		}
	}
	return best, found, nil
}

// coverage tracks the largest accepted power of every prime.
type coverage struct {
	allowRepeat bool
	best        map[string]*big.Int
}

func newCoverage(allowRepeat bool) *coverage {
	return &coverage{allowRepeat: allowRepeat, best: map[string]*big.Int{}}
}

// accept keeps the points of c that bring a new prime, or a higher power
// of a known one when repeats are allowed.
func (cv *coverage) accept(c candidate) Curve {
	out := Curve{B: c.b, Order: c.order, Factors: c.factors}
	for _, sp := range c.points {
		k := sp.Prime.String()
		cur, seen := cv.best[k]
		if seen && (!cv.allowRepeat || sp.Order.Cmp(cur) <= 0) {
			continue
		}
		cv.best[k] = sp.Order
		out.Points = append(out.Points, sp)
	}
	return out
}

func (cv *coverage) product() *big.Int {
	n := big.NewInt(1)
	for _, q := range cv.best {
		n.Mul(n, q)
	}
	return n
}

func seeded(seed string) (*drbg.Reader, error) {
	if seed != "" {
		return drbg.New(seed), nil
	}
	return drbg.NewRandom()
}

// GenerateCurves runs a generator with the given configuration.
func GenerateCurves(ctx context.Context, field *weierstrass.Field, counter order.Counter, factorizer factor.Factorizer, config GeneratorConfig) (*Catalog, *Report, error) {
	return NewGenerator(field, counter, factorizer).WithConfig(config).Generate(ctx)
}
