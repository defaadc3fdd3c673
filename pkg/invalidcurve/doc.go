// Package invalidcurve recovers the secret scalar of an elliptic-curve
// multiplication service that does not check that submitted points lie on
// its curve (an "invalid-curve attack").
//
// The short Weierstrass group law never reads the constant b, so a point
// of any curve y² = x³ + ax + b' over the same field is multiplied with
// the same formulas. The Generator searches for constants b' whose curve
// order has small prime-power factors and picks one point of each such
// order. The Attack sends every point to the oracle, solves the discrete
// log inside each small subgroup and joins the residues with the Chinese
// remainder theorem.
//
// WARNING: This package is for security research and testing purposes only.
// It should only be used against services you own or with explicit permission.
//
// Basic Usage:
//
//	field := invalidcurve.SmallField().Field
//	client := invalidcurve.NewClient()
//	cat, report, err := client.Generate(ctx, &field)
//	// report.Covered tells whether the catalog can pin the secret down
//	result, err := client.Attack(ctx, cat, invalidcurve.NewHTTPOracle(url), nil)
//	if result.Full() {
//		fmt.Println(result.Secret)
//	} else {
//		fmt.Println(result.Residues) // partial knowledge
//	}
//
// Customizing generation (defaults are sensible; override as needed):
//
//	cfg := invalidcurve.DefaultGeneratorConfig()
//	cfg.Target = 5
//	cfg.Seed = "run-1"
//	cfg.MaxTimeout = time.Minute
//	client = invalidcurve.NewClient().
//		WithCounter(order.Mestre{}).
//		WithFactorizer(factor.Chain{factor.NewFactorDB(factor.DefaultFactorDBURL), factor.ECM{}}).
//		WithGeneratorConfig(cfg)
//
// Result semantics:
//
// - Full(): the combined modulus reaches the secret bound and Secret is set
// - otherwise Residues holds one congruence per solved subgroup
// - oracle failures only shrink the residue list, they never fail the run
// - residues that contradict each other fail the run with *InconsistentError
//
// See the examples/basic directory for a complete in-process round.
package invalidcurve
