package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// cacheMeta holds HTTP cache metadata for one feed URL.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher retrieves the calendar feed. Local paths are read directly;
// HTTP(S) URLs are fetched with ETag / Last-Modified revalidation against
// a disk-backed cache so that unchanged feeds cost a 304.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	logger   *zap.Logger
}

// NewFetcher creates a Fetcher caching under cacheDir.
func NewFetcher(cacheDir string, logger *zap.Logger) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/feed-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
		logger:   logger,
	}
}

// Fetch returns the feed body for the given source, which is either a
// local file path or an http(s) URL.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if source == "" {
		return nil, errors.New("ics: feed source is empty")
	}
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.ReadFile(source)
	}
	return f.fetchHTTP(ctx, source)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	dir := filepath.Join(f.cacheDir, hashURL(url))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ics: create cache dir: %w", err)
	}
	bodyPath := filepath.Join(dir, "body.ics")
	metaPath := filepath.Join(dir, "meta.json")

	meta := readMeta(metaPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// A network failure falls back to the cached body when one
		// exists; a stale feed beats no feed for reconciliation.
		if cached, rerr := os.ReadFile(bodyPath); rerr == nil {
			f.logger.Warn("feed fetch failed, using cached body", zap.Error(err))
			return cached, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		f.logger.Debug("feed not modified, using cache")
		return os.ReadFile(bodyPath)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("ics: feed fetch returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(bodyPath, body, 0o600); err != nil {
		f.logger.Warn("failed to cache feed body", zap.Error(err))
	}
	writeMeta(metaPath, cacheMeta{
		URL:          url,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		UpdatedAt:    time.Now(),
	})

	return body, nil
}

func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}

func readMeta(path string) cacheMeta {
	var meta cacheMeta
	data, err := os.ReadFile(path)
	if err != nil {
		return meta
	}
	_ = json.Unmarshal(data, &meta)
	return meta
}

func writeMeta(path string, meta cacheMeta) {
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o600)
}
