package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issText = "ISS (ZARYA)\r\n" +
	"1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927\r\n" +
	"2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537\r\n"

type fakeCelestrak struct {
	calls  atomic.Int32
	status atomic.Int32
	body   atomic.Value
	srv    *httptest.Server
}

func newFake(t *testing.T) *fakeCelestrak {
	t.Helper()
	f := &fakeCelestrak{}
	f.status.Store(http.StatusOK)
	f.body.Store(issText)
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		assert.Equal(t, "25544", r.URL.Query().Get("CATNR"))
		w.WriteHeader(int(f.status.Load()))
		_, _ = w.Write([]byte(f.body.Load().(string)))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCelestrak) store(t *testing.T, root string) *Store {
	t.Helper()
	return NewStore(f.srv.URL+"/gp.php?CATNR=%d&FORMAT=tle", root, 24)
}

func TestFetchNetworkThenCache(t *testing.T) {
	f := newFake(t)
	s := f.store(t, t.TempDir())
	ctx := context.Background()

	es, src, err := s.FetchSource(ctx, 25544)
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, src)
	assert.Equal(t, "ISS (ZARYA)", es.Name)
	assert.Equal(t, 25544, es.CatalogNumber)
	assert.FileExists(t, s.CachePath(25544))

	es, src, err = s.FetchSource(ctx, 25544)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, src)
	assert.Equal(t, 51.6416, es.Inclination)
	assert.EqualValues(t, 1, f.calls.Load())

	_, src, err = s.Refresh(ctx, 25544)
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, src)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestFetchFallsBackToStaleCache(t *testing.T) {
	f := newFake(t)
	root := t.TempDir()
	s := f.store(t, root)
	ctx := context.Background()

	_, err := s.Fetch(ctx, 25544)
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(s.CachePath(25544), old, old))
	f.status.Store(http.StatusServiceUnavailable)

	es, src, err := s.FetchSource(ctx, 25544)
	require.NoError(t, err)
	assert.Equal(t, SourceStaleCache, src)
	assert.Equal(t, 25544, es.CatalogNumber)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestFetchNothingAvailable(t *testing.T) {
	f := newFake(t)
	f.body.Store("No GP data found\n")
	s := f.store(t, t.TempDir())

	_, err := s.Fetch(context.Background(), 25544)
	require.ErrorIs(t, err, ErrNotFound)
	// An unparsable body is never cached.
	assert.NoFileExists(t, s.CachePath(25544))
}

func TestFetchRejectsWrongSatellite(t *testing.T) {
	f := newFake(t)
	s := f.store(t, t.TempDir())

	// The fake answers with 25544 whatever is asked, so ask for it under a
	// cache path holding another satellite.
	path := s.CachePath(25544)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(
		"1 00005U 58002B   00179.78495062  .00000023  00000-0  28098-4 0  4753\n"+
			"2 00005  34.2682 348.7242 1859667 331.7664  19.3264 10.82419157413667\n"), 0o644))

	es, src, err := s.FetchSource(context.Background(), 25544)
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, src, "mismatched cache entry must be ignored")
	assert.Equal(t, 25544, es.CatalogNumber)
}

func TestFetchInvalidNumber(t *testing.T) {
	s := NewStore("http://127.0.0.1:1/%d", t.TempDir(), 24)
	_, err := s.Fetch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchCancelled(t *testing.T) {
	f := newFake(t)
	s := f.store(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fetch(ctx, 25544)
	assert.ErrorIs(t, err, context.Canceled)
}
