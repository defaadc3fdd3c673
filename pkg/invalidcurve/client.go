package invalidcurve

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/mahdiidarabi/invalid-curve/pkg/factor"
	"github.com/mahdiidarabi/invalid-curve/pkg/order"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// Client provides a high-level API for generating catalogs and running
// attacks with them.
type Client struct {
	counter    order.Counter
	factorizer factor.Factorizer
	genConfig  GeneratorConfig
	atkConfig  AttackConfig
	logger     *zap.Logger
}

// NewClient creates a new client with default settings: supersingular,
// j-invariant 0 and baby-step giant-step order counting, and local
// factorization with ECM for what rho cannot split.
func NewClient() *Client {
	return &Client{
		counter:    order.Chain{order.Supersingular{}, order.JZero{}, order.Mestre{}},
		factorizer: factor.Chain{factor.Local{}, factor.ECM{}},
		genConfig:  DefaultGeneratorConfig(),
		atkConfig:  DefaultAttackConfig(),
		logger:     zap.NewNop(),
	}
}

// WithCounter sets the order counting method.
func (c *Client) WithCounter(counter order.Counter) *Client {
	c.counter = counter
	return c
}

// WithFactorizer sets the factorization method.
func (c *Client) WithFactorizer(factorizer factor.Factorizer) *Client {
	c.factorizer = factorizer
	return c
}

// WithGeneratorConfig sets the generation parameters.
func (c *Client) WithGeneratorConfig(config GeneratorConfig) *Client {
	c.genConfig = config
	return c
}

// WithAttackConfig sets the attack parameters.
func (c *Client) WithAttackConfig(config AttackConfig) *Client {
	c.atkConfig = config
	return c
}

// WithLogger sets the logger passed to generators and attacks.
func (c *Client) WithLogger(logger *zap.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Generate builds a catalog of invalid curves over field.
//
// Args:
//   - ctx: Context for cancellation.
//   - field: Prime p and coefficient a of the target curve.
//
// Returns:
//   - Catalog and Report; check Report.Covered before relying on a full
//     recovery.
func (c *Client) Generate(ctx context.Context, field *weierstrass.Field) (*Catalog, *Report, error) {
	return NewGenerator(field, c.counter, c.factorizer).
		WithConfig(c.genConfig).
		WithLogger(c.logger).
		Generate(ctx)
}

// GeneratePreset builds a catalog for a named preset, calibrated with the
// preset's generator when it has one.
func (c *Client) GeneratePreset(ctx context.Context, name string) (*Catalog, *Report, error) {
	p, err := LookupPreset(name)
	if err != nil {
		return nil, nil, err
	}
	cfg := c.genConfig
	cfg.HonestB = p.B
	if cfg.IncludeG0 && cfg.G0 == nil {
		cfg.G0 = p.Calibration()
	}
	if cfg.SecretBound == nil && p.N != nil {
		cfg.SecretBound = p.N
	}
	return NewGenerator(&p.Field, c.counter, c.factorizer).
		WithConfig(cfg).
		WithLogger(c.logger).
		Generate(ctx)
}

// Attack runs an attack against oracle with cat.
func (c *Client) Attack(ctx context.Context, cat *Catalog, oracle Oracle, expectedB *big.Int) (*Result, error) {
	return NewAttack(oracle).
		WithConfig(c.atkConfig).
		WithLogger(c.logger).
		Run(ctx, cat, expectedB)
}

// AttackFile loads the catalog at path and attacks oracle with it.
func (c *Client) AttackFile(ctx context.Context, path string, oracle Oracle, expectedB *big.Int) (*Result, error) {
	cat, err := LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return c.Attack(ctx, cat, oracle, expectedB)
}
