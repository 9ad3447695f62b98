package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		done, total int
		want        float64
	}{
		{0, 200, 0},
		{50, 200, 25},
		{200, 200, 100},
		{0, 0, 100},
	}
	for _, tt := range tests {
		p := NewProgress("satcald", "run", tt.done, tt.total)
		assert.InDelta(t, tt.want, p.Percent, 1e-12)
		assert.Equal(t, EventProgress, p.Type)
	}
}

func TestEventsCarryEnvelope(t *testing.T) {
	b, err := json.Marshal(NewHeartbeat("satcald", "IDLE", 90*time.Second, 2))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "heartbeat", got["type"])
	assert.Equal(t, "satcald", got["component"])
	assert.EqualValues(t, 90, got["uptime_seconds"])
	assert.EqualValues(t, 2, got["active_runs"])

	ts, err := time.Parse(time.RFC3339Nano, got["ts"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestRunCompleteOmitsEmptyFailures(t *testing.T) {
	rc := NewRunComplete("satcald", "abc")
	rc.Samples, rc.OK = 10, 10
	b, err := json.Marshal(rc)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "failures")
	assert.NotContains(t, string(b), "first_decay")
	assert.Contains(t, string(b), `"run_id":"abc"`)
}
