package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mirrorwave/tunesync/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultBatchDelay  = 250 * time.Millisecond
	defaultTimeout     = 30 * time.Second
)

// Client is the rate-limited HTTP client every catalog implementation
// routes outbound calls through.
//
// It owns retry with exponential backoff for transient failures (network
// errors, 5xx, explicit rate-limit responses) and maps HTTP status codes
// onto the shared sentinel errors so callers can classify with [errors.Is].
// Non-transient failures propagate immediately without retry.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *log.Logger
	maxAttempts int
	baseDelay   time.Duration
	batchDelay  time.Duration
}

// ClientOpts configures a [Client]. Zero values fall back to defaults.
type ClientOpts struct {
	HTTPClient  *http.Client
	RateLimit   float64 // requests per second
	MaxAttempts int
	BaseDelay   time.Duration
	BatchDelay  time.Duration
	Logger      *log.Logger
}

// NewClient creates a rate-limited remote client.
func NewClient(opts ClientOpts) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = defaultBatchDelay
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Client{
		httpClient:  opts.HTTPClient,
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		batchDelay:  opts.BatchDelay,
	}
}

// DoJSON performs an HTTP request with retry, encoding body and decoding
// the response into result when non-nil. The authorize callback attaches
// service-specific headers to each attempt's request.
func (c *Client) DoJSON(ctx context.Context, method, url string, authorize func(*http.Request), body, result any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay << (attempt - 1)
			c.logger.Debug("retrying remote call", "url", url, "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = c.once(ctx, method, url, authorize, payload, result)
		if lastErr == nil {
			return nil
		}
		if !Transient(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// once performs a single request attempt.
func (c *Client) once(ctx context.Context, method, url string, authorize func(*http.Request), payload []byte, result any) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if authorize != nil {
		authorize(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", shared.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// classifyStatus maps an HTTP status onto the shared error taxonomy.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", shared.ErrRateLimited, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d", shared.ErrTransient, status)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", shared.ErrNotAuthenticated, status)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrAuthFailed, status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", shared.ErrItemNotFound, status)
	default:
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, status)
	}
}

// Transient reports whether err is in the retryable class.
func Transient(err error) bool {
	return errors.Is(err, shared.ErrTransient) || errors.Is(err, shared.ErrRateLimited)
}

// PauseBetweenBatches blocks for the configured inter-batch delay or until
// ctx is cancelled. Providers call it between consecutive bulk requests.
func (c *Client) PauseBetweenBatches(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.batchDelay):
		return nil
	}
}

// Batches splits items into chunks of at most size elements, preserving
// order. A non-positive size yields a single batch.
func Batches(items []string, size int) [][]string {
	if size <= 0 || len(items) <= size {
		if len(items) == 0 {
			return nil
		}
		return [][]string{items}
	}

	var out [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
