// Package analysis is the single boundary to the external video-understanding
// service. No other package knows its request or response shapes.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
	"github.com/jonesrussell/north-cloud/milkmob/internal/telemetry"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("analysis service unavailable")

const (
	apiKeyHeader       = "x-api-key"
	maxErrorBodyBytes  = 1024
	breakerMaxRequests = 1
	breakerInterval    = time.Minute
)

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Operation string
	Status    int
	Body      string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: service returned %d: %s", e.Operation, e.Status, e.Body)
}

// Transient reports whether retrying may succeed.
func (e *StatusError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// ClientConfig configures Client. Zero values take conservative defaults.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	BreakerFailures   int
	BreakerTimeout    time.Duration
}

// Client issues rate-limited, retried, circuit-broken requests to the service.
type Client struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	newBackOff func() backoff.BackOff
	logger     logger.Logger
	telemetry  *telemetry.Provider
}

// NewClient builds a Client.
func NewClient(cfg ClientConfig, log logger.Logger, tp *telemetry.Provider) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	failures := uint32(cfg.BreakerFailures)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "video-analysis",
		MaxRequests: breakerMaxRequests,
		Interval:    breakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state change",
				logger.String("name", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		http:       &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:    breaker,
		maxRetries: cfg.MaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     log,
		telemetry:  tp,
	}
}

// requestBody produces a fresh body for each attempt.
type requestBody func() (io.Reader, string, error)

func jsonBody(v any) requestBody {
	return func() (io.Reader, string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

// do sends one logical request, retrying transient failures, and decodes a
// JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body requestBody, out any) error {
	attempt := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		_, err := c.breaker.Execute(func() (any, error) {
			return nil, c.send(ctx, op, method, path, body, out)
		})
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(fmt.Errorf("%s: %w", op, ErrUnavailable))
		case err != nil && !isTransient(err):
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	err := backoff.RetryNotify(attempt, policy, func(err error, wait time.Duration) {
		c.logger.Debug("Retrying analysis request",
			logger.String("operation", op),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	})
	c.telemetry.RecordAnalysisRequest(op, err)
	return err
}

func (c *Client) send(ctx context.Context, op, method, path string, body requestBody, out any) error {
	var (
		reader      io.Reader = http.NoBody
		contentType string
	)
	if body != nil {
		r, ct, err := body()
		if err != nil {
			return backoff.Permanent(err)
		}
		reader, contentType = r, ct
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%s: create request: %w", op, err))
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http request: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{Operation: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return backoff.Permanent(fmt.Errorf("%s: decode response: %w", op, decodeErr))
	}
	return nil
}

// isTransient treats network failures, 429 and 5xx responses as retryable.
func isTransient(err error) bool {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	return true
}
