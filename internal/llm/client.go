package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crzyc98/fintrak/internal/common"
	"github.com/crzyc98/fintrak/internal/service"
)

// Defaults for provider invocation.
const (
	DefaultTimeout    = 120 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
	DefaultRateLimit  = 60

	maxRetryDelay = 8 * time.Second
)

// Provider sends one prompt to a text-completion service and returns the raw
// response text.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds provider selection and invocation settings.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// Client wraps a Provider with rate limiting, retry and response parsing.
type Client struct {
	provider    Provider
	rateLimiter *rateLimiter
	logger      *slog.Logger
	sleep       common.Sleeper
	retryOpts   service.RetryOptions
	timeout     time.Duration
}

// NewClient creates a Client around provider. MaxRetries is used as given;
// zero makes a single attempt.
func NewClient(provider Provider, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	maxRetries := max(cfg.MaxRetries, 0)
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		provider:    provider,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		logger:      logger,
		sleep:       common.ContextSleep,
		timeout:     timeout,
		retryOpts: service.RetryOptions{
			MaxAttempts:  maxRetries + 1,
			InitialDelay: retryDelay,
			MaxDelay:     maxRetryDelay,
			Multiplier:   2.0,
		},
	}
}

// SetSleeper replaces the backoff sleep, for tests.
func (c *Client) SetSleeper(sleep common.Sleeper) {
	c.sleep = sleep
}

// Name returns the underlying provider name.
func (c *Client) Name() string {
	return c.provider.Name()
}

// InvokeAndParse sends prompt to the provider and extracts a JSON array of
// objects from the response. Timeout bounds each attempt; zero uses the
// configured default. An unparseable response yields an empty slice, not an
// error. Auth and invalid-request failures are returned without retry.
func (c *Client) InvokeAndParse(ctx context.Context, prompt string, timeout time.Duration) ([]map[string]any, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}

	var raw string
	attempt := 0
	err := common.WithRetrySleeper(ctx, func() error {
		attempt++
		if err := c.rateLimiter.wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		text, err := c.provider.Generate(callCtx, prompt)
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				err = fmt.Errorf("%w after %s: %w", ErrProviderTimeout, timeout, err)
			}
			return ClassifyError(err)
		}

		c.logger.Debug("Provider call completed",
			"provider", c.provider.Name(),
			"attempt", attempt,
			"duration", time.Since(start),
			"response_length", len(text))
		raw = text
		return nil
	}, c.retryOpts, c.sleep)
	if err != nil {
		c.logger.Error("Provider invocation failed",
			"provider", c.provider.Name(),
			"attempts", attempt,
			"retryable", common.IsRetryable(err),
			"error", err)
		return nil, fmt.Errorf("%s: %w", c.provider.Name(), err)
	}

	results := ExtractJSON(raw)
	if len(results) == 0 {
		c.logger.Warn("No JSON array found in provider response",
			"provider", c.provider.Name(),
			"response", common.Truncate(raw, 200))
	}
	return results, nil
}
