package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/large-farva/satcal/internal/track"
)

// submitResponse mirrors the JSON returned by POST /api/track.
type submitResponse struct {
	RunID   string `json:"run_id"`
	Name    string `json:"name"`
	Catalog int    `json:"catalog"`
	Source  string `json:"source"`
	Summary struct {
		Total    int            `json:"total"`
		OK       int            `json:"ok"`
		Failed   int            `json:"failed"`
		Failures map[string]int `json:"failures"`
	} `json:"summary"`
	Samples []remoteSample `json:"samples"`
}

// Submit sends a track request to satcald and prints the samples it returns.
// A --norad request is looked up by the daemon's catalog.
func Submit(ctx context.Context, baseURL string, opts TrackOptions) error {
	opts.defaults()
	baseURL = strings.TrimRight(baseURL, "/")

	req, err := buildRequest(ctx, opts, false)
	if err != nil {
		return err
	}
	body := struct {
		track.Request
		Catalog int `json:"catalog,omitempty"`
	}{Request: req}
	if req.Line1 == "" && req.Line2 == "" {
		body.Catalog = opts.Norad
	}

	var raw json.RawMessage
	if err := postJSON(ctx, trackClient, baseURL, "/api/track", body, &raw); err != nil {
		return err
	}

	if opts.JSON {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		return writeJSON(opts.Out, v)
	}

	var resp submitResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return err
	}
	if err := writeRemoteSamples(opts.Out, resp.Samples); err != nil {
		return err
	}
	fmt.Fprintf(opts.Err, "run %s: %d samples (source %s)\n", resp.RunID, resp.Summary.Total, resp.Source)
	if note := failureNote(resp.Summary.Total, resp.Summary.Failed, resp.Summary.Failures); note != "" {
		fmt.Fprintln(opts.Err, note)
	}
	return nil
}
