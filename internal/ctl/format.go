// Package ctl implements the satcal command-line client. It runs ground
// tracks locally, or talks to a running satcald over HTTP and WebSocket, and
// renders the results to the terminal.
package ctl

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// colorEnabled reports whether stdout is a terminal. Piped output gets no
// escape codes.
var colorEnabled = sync.OnceValue(func() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
})

// stateColor picks the colour for a daemon state. States without one print
// plain.
func stateColor(state string) string {
	switch state {
	case "IDLE":
		return green
	case "TRACKING":
		return cyan
	case "BOOTING":
		return dim
	}
	return ""
}

// levelLabel is a fixed-width, coloured log level.
func levelLabel(level string) string {
	switch level {
	case "info":
		return colorize(green, "INFO ")
	case "warn":
		return colorize(yellow, "WARN ")
	case "error":
		return colorize(red, "ERROR")
	}
	return padRight(level, 5)
}

func colorize(color, text string) string {
	if color == "" || !colorEnabled() {
		return text
	}
	return color + text + reset
}

func header(title string) string {
	return colorize(bold, title)
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration renders uptime as "2h 14m 8s", "14m 8s" or "8s".
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatBytes renders the data-root disk figures in status.
func formatBytes(b int64) string {
	const unit = 1 << 10
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	v, suffix := float64(b)/unit, "KB"
	for _, s := range []string{"MB", "GB", "TB"} {
		if v < unit {
			break
		}
		v, suffix = v/unit, s
	}
	return fmt.Sprintf("%.1f %s", v, suffix)
}

// progressBar draws pct percent of width as '=' characters.
func progressBar(pct, width int) string {
	filled := max(0, min(pct*width/100, width))
	return colorize(green, strings.Repeat("=", filled)) + strings.Repeat(" ", width-filled)
}
