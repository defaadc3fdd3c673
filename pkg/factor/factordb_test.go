package factor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// fakeFactorDB serves canned answers keyed by the queried number.
type fakeFactorDB struct {
	answers map[string]map[string]interface{}
	// after submission, numbers listed here switch to their second answer
	upgraded map[string]map[string]interface{}
	submits  int64
	lookups  int64
}

func (f *fakeFactorDB) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/api", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&f.lookups, 1)
		q := req.URL.Query().Get("query")
		ans, ok := f.answers[q]
		if atomic.LoadInt64(&f.submits) > 0 {
			if up, ok2 := f.upgraded[q]; ok2 {
				ans, ok = up, true
			}
		}
		if !ok {
			ans = map[string]interface{}{"id": "0", "status": "U", "factors": [][]interface{}{{q, 1}}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ans)
	})
	r.Get("/index.php", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&f.submits, 1)
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func newTestFactorDB(t *testing.T, fake *fakeFactorDB) *FactorDB {
	srv := httptest.NewServer(fake.router())
	t.Cleanup(srv.Close)
	db := NewFactorDB(srv.URL)
	db.Limiter = nil
	db.Backoff = time.Millisecond
	return db
}

func TestFactorDB_FullyFactored(t *testing.T) {
	fake := &fakeFactorDB{answers: map[string]map[string]interface{}{
		"183864092725129713996888110": {
			"id":     "1100000000000000001",
			"status": "FF",
			"factors": [][]interface{}{
				{"2", 1}, {"5", 1}, {"7", 1}, {"19", 1}, {"47", 1}, {"557", 1}, {"12451", 1}, {"424119260870423", 1},
			},
		},
	}}
	db := newTestFactorDB(t, fake)

	f, err := db.Factor(context.Background(), bigInt(t, "183864092725129713996888110"))
	require.NoError(t, err)
	require.Len(t, f, 8)
	require.Equal(t, 1, f.Map()["424119260870423"])
}

func TestFactorDB_RejectsWrongAnswer(t *testing.T) {
	fake := &fakeFactorDB{answers: map[string]map[string]interface{}{
		"720": {"id": "1", "status": "FF", "factors": [][]interface{}{{"2", 4}, {"3", 2}}},
	}}
	db := newTestFactorDB(t, fake)

	_, err := db.Factor(context.Background(), bigInt(t, "720"))
	require.ErrorIs(t, err, ErrUnknown)
}

func TestFactorDB_UnknownStatus(t *testing.T) {
	fake := &fakeFactorDB{answers: map[string]map[string]interface{}{}}
	db := newTestFactorDB(t, fake)
	db.Attempts = 3

	_, err := db.Factor(context.Background(), bigInt(t, "1208925819660808663073173"))
	require.ErrorIs(t, err, ErrUnknown)
	require.EqualValues(t, 2, atomic.LoadInt64(&fake.submits))
	require.EqualValues(t, 3, atomic.LoadInt64(&fake.lookups))
}

func TestFactorDB_DefaultResubmits(t *testing.T) {
	fake := &fakeFactorDB{answers: map[string]map[string]interface{}{}}
	db := newTestFactorDB(t, fake)
	require.Equal(t, 3, db.Attempts)

	_, err := db.Factor(context.Background(), bigInt(t, "1208925819660808663073173"))
	require.ErrorIs(t, err, ErrUnknown)
	require.EqualValues(t, 2, atomic.LoadInt64(&fake.submits))
	require.EqualValues(t, 3, atomic.LoadInt64(&fake.lookups))
}

func TestFactorDB_ResubmitSucceeds(t *testing.T) {
	fake := &fakeFactorDB{
		answers: map[string]map[string]interface{}{
			"1000036000099": {"id": "1", "status": "C", "factors": [][]interface{}{{"1000036000099", 1}}},
		},
		upgraded: map[string]map[string]interface{}{
			"1000036000099": {"id": "1", "status": "FF", "factors": [][]interface{}{{"1000003", 1}, {"1000033", 1}}},
		},
	}
	db := newTestFactorDB(t, fake)
	db.Attempts = 2

	f, err := db.Factor(context.Background(), bigInt(t, "1000036000099"))
	require.NoError(t, err)
	require.Equal(t, map[string]int{"1000003": 1, "1000033": 1}, f.Map())
}

func TestFactorDB_PartialThenLocal(t *testing.T) {
	// 2^2 * 3 * 1000003 * 1000033 with the last two still glued together
	fake := &fakeFactorDB{answers: map[string]map[string]interface{}{
		"12000432001188": {
			"id":      "2",
			"status":  "CF",
			"factors": [][]interface{}{{"2", 2}, {"3", 1}, {"1000036000099", 1}},
		},
	}}
	db := newTestFactorDB(t, fake)
	n := bigInt(t, "12000432001188")

	_, err := db.Factor(context.Background(), n)
	var pe *PartialError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "1000036000099", pe.Composite[0].String())

	f, err := Chain{db, Local{}}.Factor(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"2": 2, "3": 1, "1000003": 1, "1000033": 1}, f.Map())
}

func TestFactorDB_Prime(t *testing.T) {
	fake := &fakeFactorDB{answers: map[string]map[string]interface{}{
		"424119260870423": {"id": "3", "status": "P", "factors": [][]interface{}{{"424119260870423", 1}}},
	}}
	db := newTestFactorDB(t, fake)

	f, err := db.Factor(context.Background(), bigInt(t, "424119260870423"))
	require.NoError(t, err)
	require.Len(t, f, 1)
}

func TestFactorDB_HTTPError(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api", func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	db := NewFactorDB(srv.URL)
	_, err := db.Factor(context.Background(), bigInt(t, "720"))
	require.ErrorIs(t, err, ErrUnknown)
}
