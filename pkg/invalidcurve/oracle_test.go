package invalidcurve_test

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/mahdiidarabi/invalid-curve/internal/oracleserver"
	"github.com/mahdiidarabi/invalid-curve/pkg/factor"
	"github.com/mahdiidarabi/invalid-curve/pkg/invalidcurve"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

func tinyCatalog(t *testing.T) *invalidcurve.Catalog {
	t.Helper()
	fs, err := factor.FromMap(map[string]int{"2": 4, "7": 2, "13": 1})
	require.NoError(t, err)
	return &invalidcurve.Catalog{
		Field: weierstrass.Field{P: big.NewInt(10007), A: big.NewInt(5)},
		G0:    &invalidcurve.Calibration{B: big.NewInt(1), Point: weierstrass.NewPoint(big.NewInt(2), big.NewInt(3704))},
		Curves: []invalidcurve.Curve{{
			B:       big.NewInt(6),
			Order:   big.NewInt(10192),
			Factors: fs,
			Points: []invalidcurve.SubgroupPoint{
				{Point: weierstrass.NewPoint(big.NewInt(911), big.NewInt(61)), Order: big.NewInt(49), Prime: big.NewInt(7), Exp: 2},
				{Point: weierstrass.NewPoint(big.NewInt(9085), big.NewInt(5256)), Order: big.NewInt(13), Prime: big.NewInt(13), Exp: 1},
			},
		}},
	}
}

func server(t *testing.T, strict bool, secret int64) *httptest.Server {
	t.Helper()
	m := &oracleserver.Multiplier{
		Field:  weierstrass.Field{P: big.NewInt(10007), A: big.NewInt(5)},
		B:      big.NewInt(1),
		Secret: big.NewInt(secret),
		Strict: strict,
	}
	srv := httptest.NewServer(oracleserver.New(m, oracleserver.Options{}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPOracle_Attack(t *testing.T) {
	srv := server(t, false, 500)
	oracle := invalidcurve.NewHTTPOracle(srv.URL + "/v1/multiply")

	cfg := invalidcurve.DefaultAttackConfig()
	cfg.SecretBound = big.NewInt(637)
	res, err := invalidcurve.NewClient().
		WithAttackConfig(cfg).
		Attack(context.Background(), tinyCatalog(t), oracle, big.NewInt(1))
	require.NoError(t, err)
	require.True(t, res.Calibrated)
	require.True(t, res.Full())
	require.Equal(t, int64(500), res.Secret.Int64())
}

func TestHTTPOracle_StrictServer(t *testing.T) {
	srv := server(t, true, 500)
	oracle := invalidcurve.NewHTTPOracle(srv.URL + "/v1/multiply")

	_, err := oracle.Query(context.Background(), weierstrass.NewPoint(big.NewInt(911), big.NewInt(61)))
	require.ErrorIs(t, err, invalidcurve.ErrOracle)
	require.Contains(t, err.Error(), "400")

	res, err := invalidcurve.RunAttack(context.Background(), tinyCatalog(t), oracle, big.NewInt(1))
	require.NoError(t, err)
	require.True(t, res.Calibrated)
	require.Empty(t, res.Residues)
	require.Len(t, multierr.Errors(res.Unsolved), 2)
}

func TestHTTPOracle_Failures(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"x":`))
	}))
	defer broken.Close()

	_, err := invalidcurve.NewHTTPOracle(broken.URL).Query(context.Background(), weierstrass.Infinity())
	require.ErrorIs(t, err, invalidcurve.ErrOracle)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	oracle := invalidcurve.WithTimeout(invalidcurve.NewHTTPOracle(slow.URL), 50*time.Millisecond)
	_, err = oracle.Query(context.Background(), weierstrass.Infinity())
	require.ErrorIs(t, err, invalidcurve.ErrOracle)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
