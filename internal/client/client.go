// Package client talks to the scan service: it submits scan requests and
// fetches status snapshots.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/scan"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrMissingScanID is returned when POST /scan succeeds without a scan_id.
var ErrMissingScanID = errors.New("server response missing scan_id")

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Config holds client settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables pacing
}

// Client sends scan requests to the scan service.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// StartResponse is the body of a successful POST /scan.
type StartResponse struct {
	ScanID  scan.ID `json:"scan_id"`
	Status  string  `json:"status,omitempty"`
	Message string  `json:"message,omitempty"`
}

// New creates a new scan service client.
func New(cfg Config, logger *zap.SugaredLogger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: base.String(),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// BaseURL returns the service URL requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// StartScan posts a scan request and returns the scan identifier.
func (c *Client) StartScan(ctx context.Context, req scan.Request) (scan.ID, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/scan", body)
	if err != nil {
		return "", err
	}

	var resp StartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("invalid response from server: %w", err)
	}
	if resp.ScanID == "" {
		return "", ErrMissingScanID
	}

	c.logger.Debugw("Scan submitted",
		"scan_id", resp.ScanID,
		"ip_range", req.IPRange,
		"ports", req.Ports,
		"demo", req.Demo,
	)
	return resp.ScanID, nil
}

// FetchResults gets the current snapshot of a scan. A 2xx body that is not
// JSON comes back as a snapshot carrying only Raw.
func (c *Client) FetchResults(ctx context.Context, id scan.ID) (*scan.Snapshot, error) {
	data, err := c.do(ctx, http.MethodGet, "/results/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return nil, err
	}

	var snap scan.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Debugw("Non-JSON results body", "scan_id", id, "error", err)
		return &scan.Snapshot{Raw: string(data)}, nil
	}
	return &snap, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warnw("Request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, data)
		c.logger.Warnw("Request returned error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"detail", apiErr.Detail,
		)
		return nil, apiErr
	}

	c.logger.Debugw("Request completed", "method", method, "path", path, "status", resp.StatusCode)
	return data, nil
}
