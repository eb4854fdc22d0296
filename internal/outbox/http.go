package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/abhisek/skilltrack/internal/gaps"
	"github.com/abhisek/skilltrack/internal/profile"
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("POST %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	ProfileURL string
	GapsURL    string

	// MaxAttempts bounds attempts per send. Zero means 3.
	MaxAttempts int
	Client      *http.Client
}

// HTTPClient posts JSON to the directory and learning-path services.
// An empty URL disables that send.
type HTTPClient struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPClient creates an HTTPClient.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	c := cfg.Client
	if c == nil {
		c = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &HTTPClient{cfg: cfg, client: c}
}

// SendProfile posts the snapshot to the profile URL.
func (h *HTTPClient) SendProfile(ctx context.Context, snap *profile.Snapshot) error {
	return h.post(ctx, h.cfg.ProfileURL, snap)
}

// SendGaps posts the gap analysis to the gaps URL.
func (h *HTTPClient) SendGaps(ctx context.Context, res *gaps.Result) error {
	return h.post(ctx, h.cfg.GapsURL, res)
}

func (h *HTTPClient) post(ctx context.Context, url string, v any) error {
	if url == "" {
		return nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", url, err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := h.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		serr := &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
		if !serr.Retryable() {
			return backoff.Permanent(serr)
		}
		return serr
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	eb.MaxInterval = 2 * time.Second
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(h.cfg.MaxAttempts-1)), ctx)
	return backoff.Retry(op, bo)
}
