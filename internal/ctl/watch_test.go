package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/satcal/internal/telemetry"
)

// eventServer sends events over /ws and then closes the connection.
func eventServer(t *testing.T, events ...any) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func watchEvents() []any {
	done := telemetry.NewRunComplete("satcald", "0b1c2d3e-aaaa-bbbb-cccc-000000000000")
	done.Catalog, done.Name = 25544, "ISS (ZARYA)"
	done.Samples, done.OK, done.LowConfidence = 10, 8, 1
	done.Failures = map[string]int{"satellite_decayed": 2}
	done.FirstDecay = "2024-07-08T12:09:00Z"
	done.ElapsedMS = 42

	return []any{
		telemetry.NewHeartbeat("satcald", "IDLE", 3*time.Hour+2*time.Minute, 1),
		telemetry.NewStateTransition("satcald", "IDLE", "TRACKING"),
		telemetry.NewProgress("satcald", "0b1c2d3e-aaaa-bbbb-cccc-000000000000", 5, 10),
		telemetry.NewLogLine("catalog", "warn", "using stale cache for 25544"),
		done,
		map[string]any{"type": "mystery", "value": 7},
	}
}

func TestWatchRendersEvents(t *testing.T) {
	srv := eventServer(t, watchEvents()...)

	var out bytes.Buffer
	require.NoError(t, Watch(context.Background(), srv.URL, WatchOptions{Out: &out}))

	got := out.String()
	assert.Contains(t, got, "connected")
	assert.Contains(t, got, "heartbeat  IDLE  up 3h 2m 0s  1 active")
	assert.Contains(t, got, "STATE  IDLE -> TRACKING")
	assert.Contains(t, got, "0b1c2d3e    [==========          ]  50%  5/10 samples")
	assert.Contains(t, got, "WARN   [catalog] using stale cache for 25544")
	assert.Contains(t, got, "RUN COMPLETE 0b1c2d3e-aaaa-bbbb-cccc-000000000000")
	assert.Contains(t, got, "25544 ISS (ZARYA)")
	assert.Contains(t, got, "8 of 10 ok")
	assert.Contains(t, got, "1 positions did not converge")
	assert.Contains(t, got, "2 of 10 samples failed (satellite_decayed=2)")
	assert.Contains(t, got, "Decayed:    2024-07-08T12:09:00Z")
	assert.Contains(t, got, "42ms")
	assert.Contains(t, got, `"type": "mystery"`)
}

func TestWatchFilterAndJSON(t *testing.T) {
	srv := eventServer(t, watchEvents()...)

	var out bytes.Buffer
	require.NoError(t, Watch(context.Background(), srv.URL, WatchOptions{
		Filter: []string{"progress", "state"},
		JSON:   true,
		Out:    &out,
	}))

	got := lines(&out)
	require.Len(t, got, 2)
	var types []string
	for _, l := range got {
		var ev telemetry.Event
		require.NoError(t, json.Unmarshal([]byte(l), &ev))
		types = append(types, string(ev.Type))
	}
	assert.Equal(t, []string{"state", "progress"}, types)
}

func TestWatchStopsOnCancel(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Hold the connection open until the client says goodbye.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	var out bytes.Buffer
	require.NoError(t, Watch(ctx, srv.URL, WatchOptions{Out: &out}))
	assert.Contains(t, out.String(), "disconnecting...")
}

func TestWSURL(t *testing.T) {
	u, err := wsURL("http://127.0.0.1:8080/")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8080/ws", u)

	u, err = wsURL("https://ground.example/api?x=1")
	require.NoError(t, err)
	assert.Equal(t, "wss://ground.example/ws", u)

	_, err = wsURL("ftp://ground.example")
	assert.Error(t, err)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "2h 14m 8s", formatDuration(2*time.Hour+14*time.Minute+8*time.Second))
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 GB", formatBytes(2<<30))
	assert.Equal(t, "==        ", progressBar(20, 10))
	assert.Equal(t, "==========", progressBar(150, 10))
	assert.Equal(t, "", stateColor("UNKNOWN"))
}
