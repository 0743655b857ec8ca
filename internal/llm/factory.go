package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/crzyc98/fintrak/internal/common"
)

// Provider names.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// DefaultModels maps each provider to the model used when none is configured.
var DefaultModels = map[string]string{
	ProviderGemini:    "gemini-2.5-flash",
	ProviderAnthropic: "claude-sonnet-4-5-20250929",
	ProviderOpenAI:    "gpt-4o-mini",
}

// NewProvider creates the provider named by cfg.Provider. A missing API key
// returns common.ErrNotConfigured.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = ProviderGemini
	}
	if _, ok := DefaultModels[name]; !ok {
		return nil, fmt.Errorf("%w: unsupported LLM provider %q", common.ErrInvalidConfig, cfg.Provider)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: %s API key is required", common.ErrNotConfigured, name)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels[name]
	}

	switch name {
	case ProviderAnthropic:
		return newAnthropicProvider(cfg), nil
	case ProviderOpenAI:
		return newOpenAIProvider(cfg), nil
	default:
		return newGeminiProvider(ctx, cfg)
	}
}
