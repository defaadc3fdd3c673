package oracleserver

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/invalid-curve/pkg/invalidcurve"
	"github.com/mahdiidarabi/invalid-curve/pkg/weierstrass"
)

// y² = x³ + 5x + b over GF(10007)
func tinyMultiplier(strict bool) *Multiplier {
	return &Multiplier{
		Field:  weierstrass.Field{P: big.NewInt(10007), A: big.NewInt(5)},
		B:      big.NewInt(1),
		Secret: big.NewInt(4242),
		Strict: strict,
	}
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/multiply", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := New(tinyMultiplier(false), Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMultiply(t *testing.T) {
	m := tinyMultiplier(false)
	h := New(m, Options{})

	// (911, 61) lies on b=6, not on the server's curve
	rec := post(t, h, `{"x":"911","y":"61"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var msg invalidcurve.PointMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	got, err := msg.Point()
	require.NoError(t, err)

	want, err := m.Field.ScalarMult(weierstrass.NewPoint(big.NewInt(911), big.NewInt(61)), m.Secret)
	require.NoError(t, err)
	require.True(t, got.Equal(want))
	require.True(t, m.Field.IsOnCurve(got, big.NewInt(6)))
}

func TestMultiply_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		body   string
	}{
		{name: "not json", body: `{"x":`},
		{name: "missing y", body: `{"x":"911"}`},
		{name: "bad number", body: `{"x":"abc","y":"1"}`},
		{name: "x out of range", body: `{"x":"10007","y":"61"}`},
		{name: "negative y", body: `{"x":"911","y":"-61"}`},
		{name: "off curve when strict", strict: true, body: `{"x":"911","y":"61"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, New(tinyMultiplier(tt.strict), Options{}), tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	// the strict server still answers points of its own curve
	rec := post(t, New(tinyMultiplier(true), Options{}), `{"x":"2","y":"3704"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := New(tinyMultiplier(false), Options{RequestsPerSecond: 0.001, Burst: 1})
	require.Equal(t, http.StatusOK, post(t, h, `{"x":"911","y":"61"}`).Code)
	require.Equal(t, http.StatusTooManyRequests, post(t, h, `{"x":"911","y":"61"}`).Code)

	// health checks are not limited
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
