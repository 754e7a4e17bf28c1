package licsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/warren/internal/license"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncOnceInsertsRemoteRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]wireRecord{
			{Name: "matlab", Server: "flexlm01", Allowed: 10, LastConsumed: 3},
		})
	}))
	defer srv.Close()

	pool := license.NewPool()
	poller := NewPoller(pool, srv.URL, time.Minute, zerolog.Nop())

	require.NoError(t, poller.SyncOnce(context.Background()))

	rec, ok := pool.Get("matlab")
	require.True(t, ok)
	assert.EqualValues(t, 10, rec.Total)
	assert.Equal(t, "flexlm01", rec.Server)
}

func TestSyncOnceReturnsErrorOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	pool := license.NewPool()
	poller := NewPoller(pool, srv.URL, time.Minute, zerolog.Nop())

	err := poller.SyncOnce(context.Background())
	assert.Error(t, err)
}

func TestSyncOnceReturnsErrorOnMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	pool := license.NewPool()
	poller := NewPoller(pool, srv.URL, time.Minute, zerolog.Nop())

	err := poller.SyncOnce(context.Background())
	assert.Error(t, err)
}

func TestStartStopRunsLoopWithoutPanicking(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode([]wireRecord{})
	}))
	defer srv.Close()

	pool := license.NewPool()
	poller := NewPoller(pool, srv.URL, 10*time.Millisecond, zerolog.Nop())

	poller.Start()
	time.Sleep(50 * time.Millisecond)
	poller.Stop()

	assert.Greater(t, hits, 0)
}

func TestStartIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]wireRecord{})
	}))
	defer srv.Close()

	pool := license.NewPool()
	poller := NewPoller(pool, srv.URL, time.Hour, zerolog.Nop())

	poller.Start()
	poller.Start()
	poller.Stop()
}
