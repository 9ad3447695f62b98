// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between satcald and its clients.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat   EventType = "heartbeat"
	EventState       EventType = "state"
	EventProgress    EventType = "progress"
	EventLog         EventType = "log"
	EventRunComplete EventType = "run_complete"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func envelope(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ActiveRuns    int64  `json:"active_runs"`
}

func NewHeartbeat(component, state string, uptime time.Duration, active int64) Heartbeat {
	return Heartbeat{
		Event:         envelope(EventHeartbeat, component),
		State:         state,
		UptimeSeconds: int64(uptime.Seconds()),
		ActiveRuns:    active,
	}
}

// StateTransition is emitted whenever the daemon moves between operating
// states (e.g. IDLE -> TRACKING).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

func NewStateTransition(component, from, to string) StateTransition {
	return StateTransition{Event: envelope(EventState, component), From: from, To: to}
}

// Progress reports incremental completion of a track run.
type Progress struct {
	Event
	RunID   string  `json:"run_id"`
	Done    int     `json:"done"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

func NewProgress(component, runID string, done, total int) Progress {
	pct := 100.0
	if total > 0 {
		pct = 100 * float64(done) / float64(total)
	}
	return Progress{
		Event:   envelope(EventProgress, component),
		RunID:   runID,
		Done:    done,
		Total:   total,
		Percent: pct,
	}
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

func NewLogLine(component, level, msg string) LogLine {
	return LogLine{Event: envelope(EventLog, component), Level: level, Message: msg}
}

// RunComplete summarises a finished run. Failures maps error kind names to
// sample counts.
type RunComplete struct {
	Event
	RunID         string         `json:"run_id"`
	Catalog       int            `json:"catalog"`
	Name          string         `json:"name,omitempty"`
	Samples       int            `json:"samples"`
	OK            int            `json:"ok"`
	LowConfidence int            `json:"low_confidence"`
	Failures      map[string]int `json:"failures,omitempty"`
	FirstDecay    string         `json:"first_decay,omitempty"`
	ElapsedMS     int64          `json:"elapsed_ms"`
}

func NewRunComplete(component, runID string) RunComplete {
	return RunComplete{Event: envelope(EventRunComplete, component), RunID: runID}
}
