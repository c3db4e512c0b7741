package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.ics")
	require.NoError(t, os.WriteFile(path, []byte("BEGIN:VCALENDAR"), 0o600))

	f := NewFetcher(t.TempDir(), zap.NewNop())
	body, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", string(body))
}

func TestFetchEmptySource(t *testing.T) {
	f := NewFetcher(t.TempDir(), zap.NewNop())
	_, err := f.Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchHTTPRevalidation(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("BEGIN:VCALENDAR"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	body, err := f.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", string(body))

	// Second fetch revalidates and is served from the disk cache.
	body, err = f.Fetch(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", string(body))
	assert.Equal(t, 2, requests)
}

func TestFetchHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), zap.NewNop())
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetchFallsBackToCacheOnNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("BEGIN:VCALENDAR"))
	}))

	cacheDir := t.TempDir()
	f := NewFetcher(cacheDir, zap.NewNop())
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL)
	require.NoError(t, err)

	srv.Close()
	body, err := f.Fetch(ctx, srv.URL)
	require.NoError(t, err, "cached body serves through the outage")
	assert.Equal(t, "BEGIN:VCALENDAR", string(body))
}
