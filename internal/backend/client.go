// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package backend is the HTTP client for the administration API backend.
//
// The backend is treated as an opaque service. Calls are never retried: a
// failed call is reported once to the caller.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/opentrusty/console/internal/observability/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Domain errors
var (
	// ErrTransport means no response was received from the backend.
	ErrTransport     = errors.New("backend unreachable")
	ErrInvalidConfig = errors.New("invalid backend configuration")
)

// Config holds backend client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	// InsecureSkipVerify disables certificate validation for the backend
	// connection. The backend is an internal service that may present a
	// self-signed certificate.
	InsecureSkipVerify bool
}

// Response is a fully read backend response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the backend's declared content type, or fallback.
func (r *Response) ContentType(fallback string) string {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return fallback
}

// File is a single file re-encoded into an outgoing multipart body
type File struct {
	FieldName   string
	Filename    string
	ContentType string
	Data        []byte
}

// Client talks to the backend API
type Client struct {
	rest        *resty.Client
	baseURL     *url.URL
	transport   http.RoundTripper
	instruments *metrics.BackendInstruments
}

// New creates a backend client. meter may be nil.
func New(cfg Config, meter *metrics.Meter) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, cfg.BaseURL)
	}

	if meter == nil {
		meter = metrics.NewNoop()
	}
	instruments, err := meter.Backend()
	if err != nil {
		return nil, fmt.Errorf("failed to create backend instruments: %w", err)
	}

	baseTransport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		baseTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // internal backend with self-signed certificate
	}
	transport := otelhttp.NewTransport(baseTransport)

	rest := resty.NewWithClient(&http.Client{Transport: transport}).
		SetBaseURL(base.String()).
		SetRetryCount(0).
		SetLogger(newSlogLogger())
	if cfg.Timeout > 0 {
		rest.SetTimeout(cfg.Timeout)
	}

	return &Client{
		rest:        rest,
		baseURL:     base,
		transport:   transport,
		instruments: instruments,
	}, nil
}

// BaseURL returns the configured backend base URL
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Transport returns the round tripper used for backend calls, for callers
// that stream requests through a reverse proxy.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

// Get fetches path as raw bytes. Only the Authorization header is forwarded.
func (c *Client) Get(ctx context.Context, route, path, authorization string) (*Response, error) {
	req := c.request(ctx, authorization)
	return c.do(ctx, route, http.MethodGet, path, req)
}

// PostJSON posts a JSON body to path.
func (c *Client) PostJSON(ctx context.Context, route, path, authorization string, body []byte) (*Response, error) {
	req := c.request(ctx, authorization).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	return c.do(ctx, route, http.MethodPost, path, req)
}

// PostMultipart posts file as the only part of a new multipart body.
func (c *Client) PostMultipart(ctx context.Context, route, path, authorization string, file File) (*Response, error) {
	req := c.request(ctx, authorization).
		SetMultipartField(file.FieldName, file.Filename, file.ContentType, bytes.NewReader(file.Data))
	return c.do(ctx, route, http.MethodPost, path, req)
}

func (c *Client) request(ctx context.Context, authorization string) *resty.Request {
	req := c.rest.R().SetContext(ctx)
	if authorization != "" {
		req.SetHeader("Authorization", authorization)
	}
	return req
}

func (c *Client) do(ctx context.Context, route, method, path string, req *resty.Request) (*Response, error) {
	start := time.Now()
	resp, err := req.Execute(method, path)
	elapsed := time.Since(start).Seconds()

	status := "error"
	if err == nil {
		status = fmt.Sprintf("%dxx", resp.StatusCode()/100)
	}
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.String("status", status),
	)
	c.instruments.Requests.Add(ctx, 1, attrs)
	c.instruments.Duration.Record(ctx, elapsed, attrs)

	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}

	body := resp.Body()
	c.instruments.Bytes.Add(ctx, int64(len(body)), attrs)

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       body,
	}, nil
}
