package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ActiveRuns    int64  `json:"active_runs"`
	RunsTotal     int64  `json:"runs_total"`
	WSClients     int    `json:"ws_clients"`
	Ellipsoid     string `json:"ellipsoid"`
	Gravity       string `json:"gravity"`
	Workers       int    `json:"workers"`
	DataRoot      string `json:"data_root"`
	Disk          *struct {
		TotalBytes     int64   `json:"total_bytes"`
		AvailableBytes int64   `json:"available_bytes"`
		UsedPercent    float64 `json:"used_percent"`
	} `json:"disk"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateStr := colorize(stateColor(s.State), s.State)

	fmt.Println()
	fmt.Println(header("  SATCAL STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), stateStr)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-12s %d active, %d total\n", colorize(dim, "Runs:"), s.ActiveRuns, s.RunsTotal)
	fmt.Printf("  %-12s %d\n", colorize(dim, "Watchers:"), s.WSClients)
	fmt.Printf("  %-12s %s ellipsoid, %s gravity, %d workers\n", colorize(dim, "Model:"), s.Ellipsoid, s.Gravity, s.Workers)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Data:"), s.DataRoot)
	if s.Disk != nil {
		fmt.Printf("  %-12s %s free of %s (%.0f%% used)\n", colorize(dim, "Disk:"),
			formatBytes(s.Disk.AvailableBytes), formatBytes(s.Disk.TotalBytes), s.Disk.UsedPercent)
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Host:"), baseURL)
	fmt.Println()

	return nil
}
