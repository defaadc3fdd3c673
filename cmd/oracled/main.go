package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mahdiidarabi/invalid-curve/internal/drbg"
	"github.com/mahdiidarabi/invalid-curve/internal/logging"
	"github.com/mahdiidarabi/invalid-curve/internal/numparse"
	"github.com/mahdiidarabi/invalid-curve/internal/oracleserver"
	"github.com/mahdiidarabi/invalid-curve/pkg/invalidcurve"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

func main() {
	var (
		addr     = flag.String("addr", ":8090", "Listen address")
		curve    = flag.String("curve", "", "Preset curve ("+strings.Join(invalidcurve.PresetNames(), ", ")+"); overrides -p, -a and -b")
		pFlag    = flag.String("p", "", "Field prime (decimal or 0x hex)")
		aFlag    = flag.String("a", "", "Curve coefficient a")
		bFlag    = flag.String("b", "", "Curve coefficient b of the honest curve")
		secret   = flag.String("secret", "", "Secret scalar (empty = random below p)")
		strict   = flag.Bool("strict", false, "Reject points that are not on the honest curve")
		rps      = flag.Float64("rps", 0, "Requests per second per client (0 = unlimited)")
		burst    = flag.Int("burst", 10, "Rate limiter burst")
		logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logFile  = flag.String("log-file", "", "Append logs to this file as well")
	)
	flag.Parse()

	logger := logging.Must(*logLevel, *logFile)
	defer logger.Sync()

	var field weierstrass.Field
	var b *big.Int
	if *curve != "" {
		preset, err := invalidcurve.LookupPreset(*curve)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		field, b = preset.Field, preset.B
	} else {
		if *pFlag == "" || *aFlag == "" || *bFlag == "" {
			fmt.Fprintf(os.Stderr, "Error: -p, -a and -b are required without -curve\n")
			flag.Usage()
			os.Exit(1)
		}
		vals := make([]*big.Int, 3)
		for i, s := range []string{*pFlag, *aFlag, *bFlag} {
			v, err := numparse.ParseString(s)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			vals[i] = v
		}
		field, b = weierstrass.Field{P: vals[0], A: vals[1]}, vals[2]
	}
	if err := field.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var k *big.Int
	if *secret != "" {
		v, err := numparse.ParseString(*secret)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to parse -secret: %v\n", err)
			os.Exit(1)
		}
		k = v
	} else {
		rng, err := drbg.NewRandom()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		v, err := rng.Int(field.P)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		k = v
		logger.Info("generated random secret", zap.Int("bits", k.BitLen()))
	}

	m := &oracleserver.Multiplier{Field: field, B: b, Secret: k, Strict: *strict}
	srv := &http.Server{
		Addr: *addr,
		Handler: oracleserver.New(m, oracleserver.Options{
			RequestsPerSecond: *rps,
			Burst:             *burst,
			Logger:            logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	logger.Info("oracle listening",
		zap.String("addr", *addr),
		zap.String("p", field.P.String()),
		zap.Bool("strict", *strict))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}
