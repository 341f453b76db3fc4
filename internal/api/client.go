// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/holomush/arcade/internal/plugin"
)

// DefaultClientTimeout bounds each client request.
const DefaultClientTimeout = 10 * time.Second

// Client calls a running arcade API.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the API at baseURL. A bare host:port is
// treated as http.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   DefaultClientTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Units lists callable units and the active one.
func (c *Client) Units(ctx context.Context) (*UnitsResponse, error) {
	var out UnitsResponse
	if err := c.do(ctx, http.MethodGet, "/units", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Inspect returns the registry entry for name.
func (c *Client) Inspect(ctx context.Context, name string) (*plugin.EntryInfo, error) {
	var out plugin.EntryInfo
	if err := c.do(ctx, http.MethodGet, "/units/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Start starts name and makes it active.
func (c *Client) Start(ctx context.Context, name string) (*ReplyResponse, error) {
	var out ReplyResponse
	if err := c.do(ctx, http.MethodPost, "/units/"+url.PathEscape(name)+"/start", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Send delivers input to name's message capability.
func (c *Client) Send(ctx context.Context, name, input string) (*ReplyResponse, error) {
	var out ReplyResponse
	if err := c.do(ctx, http.MethodPost, "/units/"+url.PathEscape(name)+"/message", MessageRequest{Input: input}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reload forces a reload of name from its source file.
func (c *Client) Reload(ctx context.Context, name string) (*plugin.EntryInfo, error) {
	var out plugin.EntryInfo
	if err := c.do(ctx, http.MethodPost, "/units/"+url.PathEscape(name)+"/reload", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reset clears the active unit.
func (c *Client) Reset(ctx context.Context) (*ResetResponse, error) {
	var out ResetResponse
	if err := c.do(ctx, http.MethodPost, "/reset", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the host health summary.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// errorBody is the union of the server's error shapes.
type errorBody struct {
	Error          string             `json:"error"`
	Hint           string             `json:"hint"`
	AvailableUnits []string           `json:"available_units"`
	Diagnostic     *plugin.Diagnostic `json:"diagnostic"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return oops.In("api_client").Wrap(err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return oops.In("api_client").With("path", path).Wrap(err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return oops.In("api_client").With("url", c.baseURL+path).Hint("is arcade serve running?").Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error == "" {
			eb.Error = http.StatusText(resp.StatusCode)
		}
		return &Error{
			StatusCode:     resp.StatusCode,
			Message:        eb.Error,
			Hint:           eb.Hint,
			AvailableUnits: eb.AvailableUnits,
			Diagnostic:     eb.Diagnostic,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return oops.In("api_client").With("path", path).Hint("unexpected response body").Wrap(err)
	}
	return nil
}
