package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/crzyc98/fintrak/internal/common"
)

// Provider error classes.
var (
	ErrProviderAuth           = errors.New("provider authentication failed")
	ErrProviderInvalidRequest = errors.New("provider rejected request")
	ErrProviderTimeout        = errors.New("provider timed out")
	ErrProviderRateLimit      = errors.New("provider rate limit exceeded")
	ErrProviderEmptyResponse  = errors.New("provider returned empty response")
	ErrProviderUnavailable    = errors.New("provider unavailable")
)

// StatusError is a non-success HTTP response from a provider.
type StatusError struct {
	Err        error
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// ClassifyError maps a provider failure onto one of the Err* classes and
// wraps it in a common.RetryableError. Authentication, invalid-request,
// missing-configuration and cancellation failures are not retryable;
// everything else is.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var retryable *common.RetryableError
	if errors.As(err, &retryable) {
		return err
	}

	class := errorClass(err)
	switch class {
	case nil:
		return &common.RetryableError{Err: err, Retryable: false}
	case ErrProviderAuth, ErrProviderInvalidRequest:
		return &common.RetryableError{Err: wrapClass(class, err), Retryable: false}
	default:
		return &common.RetryableError{Err: wrapClass(class, err), Retryable: true}
	}
}

func wrapClass(class, err error) error {
	if errors.Is(err, class) {
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}

// errorClass returns the provider error class of err, or nil when err must
// not be retried and has no provider class.
func errorClass(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, common.ErrNotConfigured):
		return nil
	case errors.Is(err, ErrProviderAuth):
		return ErrProviderAuth
	case errors.Is(err, ErrProviderInvalidRequest):
		return ErrProviderInvalidRequest
	case errors.Is(err, ErrProviderRateLimit):
		return ErrProviderRateLimit
	case errors.Is(err, ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrProviderTimeout
	case errors.Is(err, ErrProviderEmptyResponse):
		return ErrProviderEmptyResponse
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.StatusCode; {
		case code == http.StatusUnauthorized, code == http.StatusForbidden:
			return ErrProviderAuth
		case code == http.StatusTooManyRequests:
			return ErrProviderRateLimit
		case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
			return ErrProviderTimeout
		case code >= 400 && code < 500:
			return ErrProviderInvalidRequest
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "resource exhausted", "resource_exhausted", "429", "rate limit", "rate_limit"):
		return ErrProviderRateLimit
	case containsAny(msg, "permission denied", "permission_denied", "unauthenticated", "401", "403",
		"invalid api key", "api key not valid", "invalid x-api-key"):
		return ErrProviderAuth
	case containsAny(msg, "invalid argument", "invalid_argument", "400", "bad request"):
		return ErrProviderInvalidRequest
	case containsAny(msg, "deadline", "timeout", "timed out"):
		return ErrProviderTimeout
	}
	return ErrProviderUnavailable
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
