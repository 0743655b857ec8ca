package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/crzyc98/fintrak/internal/common"
	"github.com/crzyc98/fintrak/internal/llm"
	"github.com/spf13/viper"
)

// Batch size bounds accepted from configuration.
const (
	minBatchSize = 10
	maxBatchSize = 200
)

// apiKeyEnv lists the environment variables consulted, in order, when no
// llm.api_key is configured.
var apiKeyEnv = map[string][]string{
	llm.ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	llm.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	llm.ProviderOpenAI:    {"OPENAI_API_KEY"},
}

// Settings is the resolved application configuration.
type Settings struct {
	Logging        LoggingSettings
	Database       DatabaseSettings
	Classification ClassificationSettings
	LLM            llm.Config
}

// DatabaseSettings locates the SQLite database.
type DatabaseSettings struct {
	Path string
}

// ClassificationSettings tune the classification run.
type ClassificationSettings struct {
	BatchSize               int
	CandidateLimit          int
	ConfidenceThreshold     float64
	RuleConfidenceThreshold float64
}

// LoggingSettings configure the global logger.
type LoggingSettings struct {
	Level  string
	Format string
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "~/.local/share/fintrak/fintrak.db")

	v.SetDefault("llm.provider", llm.ProviderGemini)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", llm.DefaultTimeout)
	v.SetDefault("llm.max_retries", llm.DefaultMaxRetries)
	v.SetDefault("llm.retry_delay", llm.DefaultRetryDelay)
	v.SetDefault("llm.rate_limit", llm.DefaultRateLimit)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 8192)

	v.SetDefault("classification.batch_size", 50)
	v.SetDefault("classification.candidate_limit", 0)
	v.SetDefault("classification.confidence_threshold", 0.7)
	v.SetDefault("classification.rule_confidence_threshold", 0.9)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load resolves and validates the settings held by v. Unset keys take their
// defaults.
func Load(v *viper.Viper) (Settings, error) {
	SetDefaults(v)

	provider := strings.ToLower(strings.TrimSpace(v.GetString("llm.provider")))
	model := v.GetString("llm.model")
	if model == "" {
		model = llm.DefaultModels[provider]
	}

	s := Settings{
		Database: DatabaseSettings{
			Path: ExpandPath(v.GetString("database.path")),
		},
		LLM: llm.Config{
			Provider:    provider,
			APIKey:      resolveAPIKey(provider, v.GetString("llm.api_key")),
			Model:       model,
			BaseURL:     v.GetString("llm.base_url"),
			Timeout:     v.GetDuration("llm.timeout"),
			MaxRetries:  v.GetInt("llm.max_retries"),
			RetryDelay:  v.GetDuration("llm.retry_delay"),
			RateLimit:   v.GetInt("llm.rate_limit"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
		},
		Classification: ClassificationSettings{
			BatchSize:               v.GetInt("classification.batch_size"),
			CandidateLimit:          v.GetInt("classification.candidate_limit"),
			ConfidenceThreshold:     v.GetFloat64("classification.confidence_threshold"),
			RuleConfidenceThreshold: v.GetFloat64("classification.rule_confidence_threshold"),
		},
		Logging: LoggingSettings{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks value ranges. Errors wrap common.ErrInvalidConfig.
func (s Settings) Validate() error {
	if s.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", common.ErrInvalidConfig)
	}
	if _, ok := llm.DefaultModels[s.LLM.Provider]; !ok {
		return fmt.Errorf("%w: unsupported llm.provider %q", common.ErrInvalidConfig, s.LLM.Provider)
	}
	if s.LLM.Timeout <= 0 {
		return fmt.Errorf("%w: llm.timeout must be positive", common.ErrInvalidConfig)
	}
	if s.LLM.MaxRetries < 0 {
		return fmt.Errorf("%w: llm.max_retries must not be negative", common.ErrInvalidConfig)
	}
	if s.LLM.RetryDelay < 0 || s.LLM.RetryDelay > time.Minute {
		return fmt.Errorf("%w: llm.retry_delay must be between 0 and 1m", common.ErrInvalidConfig)
	}
	if s.LLM.RateLimit < 0 {
		return fmt.Errorf("%w: llm.rate_limit must not be negative", common.ErrInvalidConfig)
	}

	c := s.Classification
	if c.BatchSize < minBatchSize || c.BatchSize > maxBatchSize {
		return fmt.Errorf("%w: classification.batch_size must be between %d and %d",
			common.ErrInvalidConfig, minBatchSize, maxBatchSize)
	}
	if c.CandidateLimit < 0 {
		return fmt.Errorf("%w: classification.candidate_limit must not be negative", common.ErrInvalidConfig)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: classification.confidence_threshold must be between 0 and 1", common.ErrInvalidConfig)
	}
	if c.RuleConfidenceThreshold < c.ConfidenceThreshold || c.RuleConfidenceThreshold > 1 {
		return fmt.Errorf("%w: classification.rule_confidence_threshold must be between confidence_threshold and 1",
			common.ErrInvalidConfig)
	}

	if _, err := common.ParseLevel(s.Logging.Level); err != nil {
		return err
	}
	switch s.Logging.Format {
	case "text", "console", "json":
	default:
		return fmt.Errorf("%w: unknown logging.format %q", common.ErrInvalidConfig, s.Logging.Format)
	}
	return nil
}

// HasAPIKey reports whether provider credentials are available.
func (s Settings) HasAPIKey() bool {
	return strings.TrimSpace(s.LLM.APIKey) != ""
}

func resolveAPIKey(provider, configured string) string {
	if configured != "" {
		return configured
	}
	for _, name := range apiKeyEnv[provider] {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}
