package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, zap.NewNop().Sugar())
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"}, zap.NewNop().Sugar())
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "://nope"}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestStartScan(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scan", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"scan_id": 17, "status": "created", "message": "Scan queued successfully"}`)
	}))

	gw := "192.168.1.1"
	id, err := c.StartScan(context.Background(), scan.Request{
		IPRange: "192.168.1.0/24",
		Gateway: &gw,
		Ports:   []int{22, 80},
		Demo:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, scan.ID("17"), id)

	assert.Equal(t, "192.168.1.0/24", got["ip_range"])
	assert.Equal(t, "192.168.1.1", got["gateway"])
	assert.Equal(t, []any{float64(22), float64(80)}, got["ports"])
	assert.Equal(t, true, got["demo"])
}

func TestStartScanErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantMsg    string
	}{
		{"detail string", 400, `{"detail": "Invalid IP range"}`, "Invalid IP range", "Invalid IP range"},
		{"message field", 503, `{"message": "scanner offline"}`, "scanner offline", "scanner offline"},
		{"detail wins over message", 400, `{"detail": "bad gateway", "message": "ignored"}`, "bad gateway", "bad gateway"},
		{
			"structured detail", 422,
			`{"detail": [{"loc": ["body", "ip_range"], "msg": "field required"}]}`,
			`[{"loc":["body","ip_range"],"msg":"field required"}]`,
			`[{"loc":["body","ip_range"],"msg":"field required"}]`,
		},
		{"no body", 500, ``, "", "Server returned status: 500"},
		{"html body", 502, `<html>bad gateway</html>`, "", "Server returned status: 502"},
		{"null detail", 404, `{"detail": null}`, "", "Server returned status: 404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))

			_, err := c.StartScan(context.Background(), scan.Request{IPRange: "10.0.0.0/24"})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantDetail, apiErr.Detail)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestStartScanMissingID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "created"}`)
	}))

	_, err := c.StartScan(context.Background(), scan.Request{IPRange: "10.0.0.0/24"})
	assert.ErrorIs(t, err, ErrMissingScanID)
}

func TestStartScanNonJSON(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `ok`)
	}))

	_, err := c.StartScan(context.Background(), scan.Request{IPRange: "10.0.0.0/24"})
	assert.ErrorContains(t, err, "invalid response from server")
}

func TestFetchResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/results/9", r.URL.Path)
		fmt.Fprint(w, `{"scan_id": 9, "status": "running", "mode": "demo", "gateway": null, "created_at": "2024-01-01T00:00:00"}`)
	}))

	snap, err := c.FetchResults(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, scan.ID("9"), snap.ScanID)
	assert.Equal(t, scan.StatusRunning, snap.Status)
	assert.Equal(t, scan.ModeDemo, snap.Mode)
	assert.Nil(t, snap.Gateway)
	assert.Equal(t, "2024-01-01T00:00:00", snap.CreatedAt)
	assert.False(t, snap.HasResults())
}

func TestFetchResultsRawFallback(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `Internal queue warming up`)
	}))

	snap, err := c.FetchResults(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Internal queue warming up", snap.Raw)
	assert.Equal(t, scan.StatusPending, snap.EffectiveStatus())
}

func TestFetchResultsNotOK(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail": "Scan not found"}`)
	}))

	_, err := c.FetchResults(context.Background(), "404")
	assert.EqualError(t, err, "Scan not found")
}

func TestFetchResultsEscapesID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/results/a%2Fb", r.URL.EscapedPath())
		fmt.Fprint(w, `{"status": "queued"}`)
	}))

	_, err := c.FetchResults(context.Background(), "a/b")
	require.NoError(t, err)
}

func TestContextCancellation(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.FetchResults(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, `{"status": "queued"}`)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, RateLimit: 1}, zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = c.FetchResults(context.Background(), "1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.FetchResults(ctx, "1")
	assert.Error(t, err, "second request must wait for a token past the deadline")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
