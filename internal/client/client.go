// Package client provides a client for the heatwatchd status/read API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/heatwatch/internal/api"
	"github.com/xtxerr/heatwatch/internal/loop"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrNotFound      = errors.New("not found")
	ErrNoReadPath    = errors.New("store has no read path")
	ErrBadRequest    = errors.New("bad request")
	ErrUnavailable   = errors.New("service unavailable")
	ErrUnexpectedAPI = errors.New("unexpected response")
)

// =============================================================================
// Client
// =============================================================================

// Client talks to one heatwatchd instance.
type Client struct {
	base *url.URL
	http *http.Client
}

// Config holds client configuration.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           "http://localhost:5002",
		RequestTimeout: 10 * time.Second,
	}
}

// New creates a new client. Addr may omit the scheme.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	addr := cfg.Addr
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse addr %q: %w", cfg.Addr, err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().RequestTimeout
	}

	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}, nil
}

// Readings returns up to limit records, newest first. A limit of zero
// uses the server default.
func (c *Client) Readings(ctx context.Context, limit int) (*api.ReadingsResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp api.ReadingsResponse
	if err := c.get(ctx, "/api/readings", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status returns the sample loop statistics.
func (c *Client) Status(ctx context.Context) (*loop.Snapshot, error) {
	var snap loop.Snapshot
	if err := c.get(ctx, "/api/status", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Health returns the daemon health check. An unhealthy store is reported
// as ErrUnavailable.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.get(ctx, "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Export copies the records captured in [from, to) to w as a parquet file
// and returns the row count reported by the daemon.
func (c *Client) Export(ctx context.Context, from, to time.Time, compression string, w io.Writer) (int, error) {
	q := url.Values{}
	q.Set("from", strconv.FormatInt(from.UnixMilli(), 10))
	q.Set("to", strconv.FormatInt(to.UnixMilli(), 10))
	if compression != "" {
		q.Set("compression", compression)
	}

	resp, err := c.do(ctx, "/api/export", q)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return 0, fmt.Errorf("read /api/export: %w", err)
	}
	n, err := strconv.Atoi(resp.Header.Get(api.RecordCountHeader))
	if err != nil {
		return 0, fmt.Errorf("/api/export: bad %s header: %w", api.RecordCountHeader, ErrUnexpectedAPI)
	}
	return n, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	resp, err := c.do(ctx, path, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do issues a GET and returns the response when it is 200 OK. The caller
// closes the body.
func (c *Client) do(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	u := c.base.JoinPath(path)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(path, resp)
	}
	return resp, nil
}

func statusError(path string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusNotFound:
		kind = ErrNotFound
	case http.StatusNotImplemented:
		kind = ErrNoReadPath
	case http.StatusBadRequest:
		kind = ErrBadRequest
	case http.StatusServiceUnavailable:
		kind = ErrUnavailable
	default:
		kind = ErrUnexpectedAPI
	}
	return fmt.Errorf("GET %s: %d %s: %w", path, resp.StatusCode, body.Error, kind)
}
