package engine

import (
	"context"
	"time"
)

// AIClient sends a classification prompt to a language model and returns
// the JSON objects found in its response.
type AIClient interface {
	Name() string
	InvokeAndParse(ctx context.Context, prompt string, timeout time.Duration) ([]map[string]any, error)
}
