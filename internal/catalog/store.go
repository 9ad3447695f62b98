// Package catalog fetches and caches the current element set for a catalog
// number. Lookups walk a tiered fallback: fresh disk cache, network fetch,
// then stale disk cache, so a previously seen satellite can still be tracked
// while offline.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/large-farva/satcal/internal/tle"
)

// ErrNotFound is returned when no source has an element set for the
// requested catalog number.
var ErrNotFound = errors.New("catalog: no element set available")

// Source says where an element set came from.
type Source string

const (
	SourceCache      Source = "cache"
	SourceNetwork    Source = "network"
	SourceStaleCache Source = "stale_cache"
)

// maxBody bounds a single download. One element set is under 200 bytes.
const maxBody = 64 << 10

// Store fetches element sets by catalog number and caches each one in its
// own file under dataRoot.
type Store struct {
	urlTemplate string
	dataRoot    string
	maxAge      time.Duration
	client      *http.Client
	log         *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the default client, which times out after 30 s.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore returns a store that fetches from urlTemplate (with %d for the
// catalog number) and caches under dataRoot for refreshHours.
func NewStore(urlTemplate, dataRoot string, refreshHours int, opts ...Option) *Store {
	s := &Store{
		urlTemplate: urlTemplate,
		dataRoot:    dataRoot,
		maxAge:      time.Duration(refreshHours) * time.Hour,
		client:      &http.Client{Timeout: 30 * time.Second},
		log:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "catalog")
	return s
}

// Fetch returns the element set for catalogNumber.
func (s *Store) Fetch(ctx context.Context, catalogNumber int) (*tle.ElementSet, error) {
	es, _, err := s.FetchSource(ctx, catalogNumber)
	return es, err
}

// FetchSource is Fetch that also reports which tier answered.
func (s *Store) FetchSource(ctx context.Context, catalogNumber int) (*tle.ElementSet, Source, error) {
	return s.fetch(ctx, catalogNumber, false)
}

// Refresh skips the fresh-cache tier and goes to the network first.
func (s *Store) Refresh(ctx context.Context, catalogNumber int) (*tle.ElementSet, Source, error) {
	return s.fetch(ctx, catalogNumber, true)
}

// CachePath is where the element set for catalogNumber is cached.
func (s *Store) CachePath(catalogNumber int) string {
	return filepath.Join(s.dataRoot, "tle", fmt.Sprintf("%06d.tle", catalogNumber))
}

func (s *Store) fetch(ctx context.Context, catalogNumber int, force bool) (*tle.ElementSet, Source, error) {
	if catalogNumber <= 0 {
		return nil, "", fmt.Errorf("%w: invalid catalog number %d", ErrNotFound, catalogNumber)
	}
	cachePath := s.CachePath(catalogNumber)

	// Tier 1: fresh disk cache
	if !force {
		if info, err := os.Stat(cachePath); err == nil && time.Since(info.ModTime()) < s.maxAge {
			if es, err := s.readCache(cachePath, catalogNumber); err == nil {
				s.log.Debug("element set from cache", "catalog", catalogNumber, "age", time.Since(info.ModTime()).Round(time.Second))
				return es, SourceCache, nil
			}
		}
	}

	// Tier 2: network fetch
	es, raw, fetchErr := s.fetchFromNetwork(ctx, catalogNumber)
	if fetchErr == nil {
		// Cache write failure is non-fatal; we already have the data in memory.
		if err := s.writeCache(cachePath, raw); err != nil {
			s.log.Warn("cache write failed", "path", cachePath, "err", err)
		}
		return es, SourceNetwork, nil
	}
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}
	s.log.Warn("network fetch failed", "catalog", catalogNumber, "err", fetchErr)

	// Tier 3: stale disk cache
	if es, err := s.readCache(cachePath, catalogNumber); err == nil {
		return es, SourceStaleCache, nil
	}

	return nil, "", fmt.Errorf("%w for %d: %w", ErrNotFound, catalogNumber, fetchErr)
}

func (s *Store) readCache(path string, catalogNumber int) (*tle.ElementSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseFor(string(b), catalogNumber)
}

// fetchFromNetwork downloads and parses one element set. The body is only
// returned for caching once it has parsed.
func (s *Store) fetchFromNetwork(ctx context.Context, catalogNumber int) (*tle.ElementSet, string, error) {
	url := fmt.Sprintf(s.urlTemplate, catalogNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("TLE fetch returned HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, "", err
	}
	es, err := parseFor(string(b), catalogNumber)
	if err != nil {
		return nil, "", err
	}
	return es, string(b), nil
}

func parseFor(raw string, catalogNumber int) (*tle.ElementSet, error) {
	es, err := tle.ParseText(raw)
	if err != nil {
		return nil, err
	}
	if es.CatalogNumber != catalogNumber {
		return nil, fmt.Errorf("got catalog number %d, want %d", es.CatalogNumber, catalogNumber)
	}
	return es, nil
}

// writeCache atomically writes data to cachePath via a temp file and rename
// so readers never see a half-written file.
func (s *Store) writeCache(cachePath, data string) error {
	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "tle-*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), cachePath)
}
