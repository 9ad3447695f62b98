package ctl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// healthResponse mirrors the detailed JSON from GET /healthz.
type healthResponse struct {
	Healthy bool                      `json:"healthy"`
	Checks  map[string]map[string]any `json:"checks"`
}

// Health checks daemon liveness and component health via GET /healthz.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	status, body, err := getRaw(baseURL, "/healthz", "application/json")
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}

	var h healthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		h.Healthy = status == 200
	}

	if jsonOutput {
		return printJSON(map[string]any{"healthy": h.Healthy, "url": baseURL, "checks": h.Checks})
	}

	fmt.Println()
	if h.Healthy {
		fmt.Printf("  %s  satcald is reachable at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Printf("  %s  satcald returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), status, colorize(dim, baseURL))
	}

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := h.Checks[name]
		mark := colorize(green, "ok  ")
		if ok, _ := c["ok"].(bool); !ok {
			mark = colorize(red, "FAIL")
		}
		detail := ""
		if e, ok := c["error"].(string); ok {
			detail = e
		} else if p, ok := c["path"].(string); ok {
			detail = p
		} else if n, ok := c["entries"].(float64); ok {
			detail = fmt.Sprintf("%d entries", int(n))
		}
		fmt.Printf("    %s %s %s\n", mark, padRight(name, 12), colorize(dim, detail))
	}
	fmt.Println()

	return nil
}
