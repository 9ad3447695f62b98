package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/satcal/internal/config"
)

const (
	iss1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	iss2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Catalog.DataRoot = t.TempDir()
	cfg.Catalog.URLTemplate = "http://127.0.0.1:1/gp.php?CATNR=%d"
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config, configPath string) (*App, *httptest.Server) {
	t.Helper()
	a := New(Options{Cfg: cfg, ConfigPath: configPath})
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return a, srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, v any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func trackBody(t *testing.T, fields map[string]any) string {
	t.Helper()
	b, err := json.Marshal(fields)
	require.NoError(t, err)
	return string(b)
}

func TestHealthzPlain(t *testing.T) {
	_, srv := newTestApp(t, testConfig(t), "")

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestHealthzDetailed(t *testing.T) {
	cfg := testConfig(t)
	_, srv := newTestApp(t, cfg, filepath.Join(t.TempDir(), "missing.toml"))

	var got struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	code := getJSON(t, srv.URL+"/healthz", &got)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, got.Healthy)
	assert.Equal(t, true, got.Checks["data_dir"]["ok"])
	assert.Equal(t, false, got.Checks["config_file"]["ok"])
	assert.NoFileExists(t, filepath.Join(cfg.Catalog.DataRoot, "tle", ".healthcheck"))
}

func TestStatusAndVersion(t *testing.T) {
	cfg := testConfig(t)
	cfg.Track.Workers = 3
	_, srv := newTestApp(t, cfg, "")

	var status map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/status", &status))
	assert.Equal(t, StateBooting, status["state"])
	assert.Equal(t, "wgs84", status["ellipsoid"])
	assert.Equal(t, "wgs72", status["gravity"])
	assert.EqualValues(t, 3, status["workers"])
	assert.EqualValues(t, 0, status["runs_total"])
	assert.Contains(t, status, "disk")

	var version map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/version", &version))
	assert.Equal(t, Version, version["version"])
}

func TestTrackByLines(t *testing.T) {
	a, srv := newTestApp(t, testConfig(t), "")

	var got struct {
		RunID    string  `json:"run_id"`
		Name     string  `json:"name"`
		Catalog  int     `json:"catalog"`
		Source   string  `json:"source"`
		Start    string  `json:"start"`
		Interval float64 `json:"interval_seconds"`
		Summary  struct {
			Total int `json:"total"`
			OK    int `json:"ok"`
		} `json:"summary"`
		Samples []map[string]any `json:"samples"`
	}
	code := postJSON(t, srv.URL+"/api/track", trackBody(t, map[string]any{
		"name":             "ISS",
		"line1":            iss1,
		"line2":            iss2,
		"span":             map[string]int{"minutes": 10},
		"interval_seconds": 60,
		"start":            "2008-09-20T12:25:40Z",
	}), &got)

	require.Equal(t, http.StatusOK, code)
	assert.Len(t, got.RunID, 36)
	assert.Equal(t, "ISS", got.Name)
	assert.Equal(t, 25544, got.Catalog)
	assert.Equal(t, "request", got.Source)
	assert.Equal(t, "2008-09-20T12:25:40Z", got.Start)
	assert.Equal(t, 60.0, got.Interval)
	assert.Equal(t, 10, got.Summary.Total)
	assert.Equal(t, 10, got.Summary.OK)
	require.Len(t, got.Samples, 10)
	assert.Equal(t, "2008-09-20T12:25:40Z", got.Samples[0]["time"])
	assert.Equal(t, "2008-09-20T12:34:40Z", got.Samples[9]["time"])
	assert.Contains(t, got.Samples[0], "lat")

	assert.Equal(t, StateIdle, a.currentState())
	assert.EqualValues(t, 1, a.runs.Load())
	assert.EqualValues(t, 0, a.active.Load())
}

func TestTrackRejectsBadInput(t *testing.T) {
	a, srv := newTestApp(t, testConfig(t), "")

	var got struct {
		OK     bool                `json:"ok"`
		Fields []map[string]string `json:"fields"`
	}
	code := postJSON(t, srv.URL+"/api/track", trackBody(t, map[string]any{
		"line1":            iss1,
		"line2":            iss2,
		"span":             map[string]int{},
		"interval_seconds": -1,
	}), &got)

	require.Equal(t, http.StatusBadRequest, code)
	assert.False(t, got.OK)
	var fields []string
	for _, f := range got.Fields {
		fields = append(fields, f["field"])
	}
	assert.ElementsMatch(t, []string{"span", "interval_seconds"}, fields)
	assert.EqualValues(t, 0, a.runs.Load(), "rejected requests do not start a run")
}

func TestTrackRejectsUnknownFields(t *testing.T) {
	_, srv := newTestApp(t, testConfig(t), "")

	var got map[string]any
	code := postJSON(t, srv.URL+"/api/track", `{"line1":"x","line2":"y","colour":"red"}`, &got)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, got["error"], "colour")
}

func TestTrackRejectsTooManySamples(t *testing.T) {
	cfg := testConfig(t)
	cfg.Track.MaxSamples = 100
	_, srv := newTestApp(t, cfg, "")

	var got struct {
		Fields []map[string]string `json:"fields"`
	}
	code := postJSON(t, srv.URL+"/api/track", trackBody(t, map[string]any{
		"line1":            iss1,
		"line2":            iss2,
		"span":             map[string]int{"days": 1},
		"interval_seconds": 60,
	}), &got)

	require.Equal(t, http.StatusBadRequest, code)
	require.Len(t, got.Fields, 1)
	assert.Equal(t, "interval_seconds", got.Fields[0]["field"])
}

func TestTrackByCatalogNumber(t *testing.T) {
	celestrak := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("CATNR") != "25544" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, "ISS (ZARYA)\n"+iss1+"\n"+iss2+"\n")
	}))
	defer celestrak.Close()

	cfg := testConfig(t)
	cfg.Catalog.URLTemplate = celestrak.URL + "/gp.php?CATNR=%d&FORMAT=tle"
	_, srv := newTestApp(t, cfg, "")

	var got struct {
		Name    string `json:"name"`
		Source  string `json:"source"`
		Catalog int    `json:"catalog"`
		Samples []any  `json:"samples"`
	}
	code := postJSON(t, srv.URL+"/api/track", trackBody(t, map[string]any{
		"catalog":          25544,
		"span":             map[string]int{"minutes": 3},
		"interval_seconds": 60,
		"start":            "2008-09-20T12:25:40Z",
	}), &got)

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ISS (ZARYA)", got.Name)
	assert.Equal(t, "network", got.Source)
	assert.Equal(t, 25544, got.Catalog)
	assert.Len(t, got.Samples, 3)

	var missing map[string]any
	code = postJSON(t, srv.URL+"/api/track", trackBody(t, map[string]any{
		"catalog":          99999,
		"span":             map[string]int{"minutes": 3},
		"interval_seconds": 60,
	}), &missing)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, missing["ok"])
}

func TestConfigAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "satcal.toml")
	write := func(workers int) {
		body := "[track]\nworkers = " + strconv.Itoa(workers) + "\n\n[catalog]\ndata_root = \"" + dir + "\"\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write(2)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	_, srv := newTestApp(t, cfg, path)

	var got config.Config
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/config", &got))
	assert.Equal(t, 2, got.Track.Workers)

	write(6)
	var reload map[string]any
	require.Equal(t, http.StatusOK, postJSON(t, srv.URL+"/api/reload", "", &reload))
	assert.Equal(t, true, reload["ok"])

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/config", &got))
	assert.Equal(t, 6, got.Track.Workers)

	require.NoError(t, os.WriteFile(path, []byte("[track]\nworkers = -1\n"), 0o644))
	require.Equal(t, http.StatusInternalServerError, postJSON(t, srv.URL+"/api/reload", "", &reload))
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/config", &got))
	assert.Equal(t, 6, got.Track.Workers, "a failed reload keeps the running config")
}

func TestReloadWithoutConfigPath(t *testing.T) {
	_, srv := newTestApp(t, testConfig(t), "")
	assert.Equal(t, http.StatusConflict, postJSON(t, srv.URL+"/api/reload", "", nil))
}

func TestRunStateTracksActiveRuns(t *testing.T) {
	a := New(Options{Cfg: testConfig(t)})
	a.transition(StateIdle)

	a.beginRun()
	a.beginRun()
	assert.Equal(t, StateTracking, a.currentState())

	a.endRun()
	assert.Equal(t, StateTracking, a.currentState(), "one run still active")

	a.endRun()
	assert.Equal(t, StateIdle, a.currentState())
	assert.EqualValues(t, 2, a.runs.Load())
}
