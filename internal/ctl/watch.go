package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/large-farva/satcal/internal/telemetry"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
	Out    io.Writer
}

// wsURL turns the daemon base URL into its /ws endpoint.
func wsURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// Watch streams daemon events to opts.Out until ctx is cancelled or the
// daemon closes the connection.
func Watch(ctx context.Context, baseURL string, opts WatchOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	endpoint, err := wsURL(baseURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	w := opts.Out
	if !opts.JSON {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s %s\n", colorize(green, "connected"), colorize(dim, endpoint))
		if len(opts.Filter) > 0 {
			fmt.Fprintf(w, "  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		fmt.Fprintln(w, colorize(dim, "  "+strings.Repeat("─", 50)))
		fmt.Fprintln(w)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env telemetry.Event
			_ = json.Unmarshal(msg, &env)
			if len(opts.Filter) > 0 && !slices.Contains(opts.Filter, string(env.Type)) {
				continue
			}
			if opts.JSON {
				fmt.Fprintln(w, string(msg))
			} else {
				renderEvent(w, env, msg)
			}
		}
	}()

	select {
	case <-ctx.Done():
		if !opts.JSON {
			fmt.Fprintln(w)
			fmt.Fprintln(w, colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second),
		)
		<-done
		return nil
	case <-done:
		return nil
	}
}

// renderEvent prints one event. Types this client does not know are dumped
// as indented JSON.
func renderEvent(w io.Writer, env telemetry.Event, raw []byte) {
	ts := eventClock(env.TS)

	switch env.Type {
	case telemetry.EventHeartbeat:
		var ev telemetry.Heartbeat
		if json.Unmarshal(raw, &ev) != nil {
			break
		}
		fmt.Fprintf(w, "  %s %s  %s  up %s  %s\n",
			colorize(dim, ts),
			colorize(dim, "heartbeat"),
			colorize(stateColor(ev.State), ev.State),
			colorize(dim, formatDuration(time.Duration(ev.UptimeSeconds)*time.Second)),
			colorize(dim, fmt.Sprintf("%d active", ev.ActiveRuns)),
		)
		return

	case telemetry.EventState:
		var ev telemetry.StateTransition
		if json.Unmarshal(raw, &ev) != nil {
			break
		}
		fmt.Fprintf(w, "  %s %s  %s -> %s\n",
			colorize(dim, ts),
			colorize(bold, "STATE"),
			colorize(stateColor(ev.From), ev.From),
			colorize(stateColor(ev.To), ev.To),
		)
		return

	case telemetry.EventLog:
		var ev telemetry.LogLine
		if json.Unmarshal(raw, &ev) != nil {
			break
		}
		src := ""
		if ev.Component != "" {
			src = colorize(dim, "["+ev.Component+"] ")
		}
		fmt.Fprintf(w, "  %s %s  %s%s\n", colorize(dim, ts), levelLabel(ev.Level), src, ev.Message)
		return

	case telemetry.EventProgress:
		var ev telemetry.Progress
		if json.Unmarshal(raw, &ev) != nil {
			break
		}
		fmt.Fprintf(w, "  %s %s  [%s] %3.0f%%  %s\n",
			colorize(dim, ts),
			colorize(cyan, padRight(shortID(ev.RunID), 10)),
			progressBar(int(ev.Percent), 20),
			ev.Percent,
			colorize(dim, fmt.Sprintf("%d/%d samples", ev.Done, ev.Total)),
		)
		return

	case telemetry.EventRunComplete:
		var ev telemetry.RunComplete
		if json.Unmarshal(raw, &ev) != nil {
			break
		}
		renderRunComplete(w, ts, ev)
		return
	}

	var v any
	if json.Unmarshal(raw, &v) == nil {
		if pretty, err := json.MarshalIndent(v, "  ", "  "); err == nil {
			raw = pretty
		}
	}
	fmt.Fprintf(w, "  %s\n", raw)
}

func renderRunComplete(w io.Writer, ts string, ev telemetry.RunComplete) {
	row := func(label, value string) {
		fmt.Fprintf(w, "    %s %s\n", colorize(dim, padRight(label, 11)), value)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s %s\n", colorize(dim, ts), header("RUN COMPLETE"), colorize(dim, ev.RunID))
	row("Satellite:", strings.TrimSpace(colorize(bold, fmt.Sprintf("%05d", ev.Catalog))+" "+ev.Name))
	row("Samples:", fmt.Sprintf("%d of %d ok", ev.OK, ev.Samples))
	if ev.LowConfidence > 0 {
		row("Low conf.:", colorize(yellow, fmt.Sprintf("%d positions did not converge", ev.LowConfidence)))
	}
	if len(ev.Failures) > 0 {
		row("Failures:", colorize(yellow, failureNote(ev.Samples, ev.Samples-ev.OK, ev.Failures)))
	}
	if ev.FirstDecay != "" {
		row("Decayed:", colorize(red, ev.FirstDecay))
	}
	row("Elapsed:", (time.Duration(ev.ElapsedMS) * time.Millisecond).String())
	fmt.Fprintln(w)
}

// shortID trims a run UUID to its first group.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// eventClock shortens an event timestamp to local wall-clock time.
func eventClock(ts string) string {
	if ts == "" {
		return strings.Repeat(" ", 8)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return padRight(ts, 8)
	}
	return t.Local().Format("15:04:05")
}
