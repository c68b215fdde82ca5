// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// ErrNotTrackerURL indicates a URL that does not point at the configured
// issue tracker host or does not name an issue.
var ErrNotTrackerURL = errors.New("not a tracker issue URL")

// IssueRef identifies an issue on the external tracker.
type IssueRef struct {
	Owner  string
	Repo   string
	Number int
}

// Slug returns the "owner/repo#number" display form.
func (r IssueRef) Slug() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// IssueStatus is the authoritative live state of a tracker issue.
type IssueStatus struct {
	Title string `json:"title"`
	State string `json:"state"`
}

// TrackerConfig configures the external issue tracker client.
type TrackerConfig struct {
	// Host is the exact tracker hostname, e.g. "github.com". Issue URLs
	// whose hostname differs in any way are rejected; suffix matching
	// would accept look-alike hosts like "evilgithub.com".
	Host string

	// APIBaseURL is the tracker REST API root, e.g. "https://api.github.com".
	APIBaseURL string

	// Token authenticates API requests. Optional for public repos.
	Token string

	// RequestsPerSecond throttles outbound API calls. Default: 5
	RequestsPerSecond float64

	// Burst is the limiter burst size. Default: 10
	Burst int

	// Timeout bounds each API request. Default: 5s
	Timeout time.Duration

	// Logger for tracker operations. Default: slog.Default()
	Logger *slog.Logger
}

// TrackerClient reads live issue state from the external tracker. All calls
// are rate limited so traversal bursts cannot exhaust the API quota.
type TrackerClient struct {
	host    string
	apiBase string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewTrackerClient creates a rate-limited tracker client.
func NewTrackerClient(config TrackerConfig) (*TrackerClient, error) {
	if config.Host == "" {
		return nil, errors.New("host must not be empty")
	}
	if config.APIBaseURL == "" {
		return nil, errors.New("api_base_url must not be empty")
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 5
	}
	if config.Burst == 0 {
		config.Burst = 10
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &TrackerClient{
		host:    strings.ToLower(config.Host),
		apiBase: strings.TrimRight(config.APIBaseURL, "/"),
		token:   config.Token,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		logger:  config.Logger.With(slog.String("component", "tracker_client")),
	}, nil
}

// ParseIssueURL extracts the issue identity from a tracker URL of the form
// https://<host>/<owner>/<repo>/issues/<number>. The hostname must match the
// configured tracker host exactly.
//
// Inputs:
//   - rawURL: Candidate issue URL.
//
// Outputs:
//   - IssueRef: Parsed issue identity.
//   - error: ErrNotTrackerURL if the URL is not a well-formed issue URL on
//     the configured host.
func (t *TrackerClient) ParseIssueURL(rawURL string) (IssueRef, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return IssueRef{}, fmt.Errorf("%w: %v", ErrNotTrackerURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return IssueRef{}, fmt.Errorf("%w: scheme %q", ErrNotTrackerURL, u.Scheme)
	}
	if strings.ToLower(u.Hostname()) != t.host {
		return IssueRef{}, fmt.Errorf("%w: host %q is not %q", ErrNotTrackerURL, u.Hostname(), t.host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 4 || (parts[2] != "issues" && parts[2] != "pull") {
		return IssueRef{}, fmt.Errorf("%w: path %q", ErrNotTrackerURL, u.Path)
	}

	number, err := strconv.Atoi(parts[3])
	if err != nil || number <= 0 {
		return IssueRef{}, fmt.Errorf("%w: issue number %q", ErrNotTrackerURL, parts[3])
	}

	return IssueRef{Owner: parts[0], Repo: parts[1], Number: number}, nil
}

// GetCurrentState fetches the live state of an issue from the tracker API.
//
// Inputs:
//   - ctx: Context for cancellation. Also bounds the rate limiter wait.
//   - ref: Issue identity.
//
// Outputs:
//   - *IssueStatus: Live title and state.
//   - error: ErrRecordNotFound on 404, transport errors otherwise.
//
// Thread Safety: Safe for concurrent use.
func (t *TrackerClient) GetCurrentState(ctx context.Context, ref IssueRef) (*IssueStatus, error) {
	ctx, span := storesTracer.Start(ctx, "stores.tracker.GetCurrentState",
		trace.WithAttributes(attribute.String("issue", ref.Slug())),
	)
	defer span.End()

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues/%d", t.apiBase, ref.Owner, ref.Repo, ref.Number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("fetch issue: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		span.SetStatus(codes.Error, "not found")
		return nil, fmt.Errorf("issue %s: %w", ref.Slug(), ErrRecordNotFound)
	case resp.StatusCode != http.StatusOK:
		span.SetStatus(codes.Error, "unexpected status")
		return nil, fmt.Errorf("fetch issue: unexpected status %d", resp.StatusCode)
	}

	var status IssueStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode issue: %w", err)
	}

	return &status, nil
}
