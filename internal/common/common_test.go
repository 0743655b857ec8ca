package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crzyc98/fintrak/internal/service"
)

func recordingSleeper(delays *[]time.Duration) Sleeper {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestWithRetry_ExponentialDelays(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := WithRetrySleeper(context.Background(), func() error {
		calls++
		return errors.New("flaky")
	}, service.RetryOptions{
		MaxAttempts:  4,
		InitialDelay: 2 * time.Second,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
	}, recordingSleeper(&delays))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, delays)
}

func TestWithRetry_NonRetryableStopsImmediately(t *testing.T) {
	var delays []time.Duration
	calls := 0
	fatal := errors.New("bad key")

	err := WithRetrySleeper(context.Background(), func() error {
		calls++
		return &RetryableError{Err: fatal, Retryable: false}
	}, service.RetryOptions{MaxAttempts: 4}, recordingSleeper(&delays))

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := WithRetrySleeper(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &RetryableError{Err: errors.New("rate limited"), Retryable: true}
		}
		return nil
	}, service.RetryOptions{MaxAttempts: 4, InitialDelay: time.Millisecond}, recordingSleeper(&delays))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return errors.New("always")
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Hour})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "marked retryable", err: &RetryableError{Err: errors.New("x"), Retryable: true}, want: true},
		{name: "marked fatal", err: &RetryableError{Err: context.DeadlineExceeded, Retryable: false}, want: false},
		{name: "plain", err: errors.New("x"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestUserError(t *testing.T) {
	err := NewUserError("Batch failed", ErrConflict)
	assert.Equal(t, "Batch failed: a classification job is already running", err.Error())
	assert.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, "Pick a category", NewUserError("Pick a category", nil).Error())
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSetupLoggerTo_JSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	require.NoError(t, SetupLoggerTo(&buf, slog.LevelInfo, "json"))
	slog.Info("hello", "batch_id", "b1")

	assert.Contains(t, buf.String(), `"batch_id":"b1"`)
	assert.Error(t, SetupLoggerTo(&buf, slog.LevelInfo, "xml"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
}
