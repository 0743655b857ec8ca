package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crzyc98/fintrak/internal/common"
)

func newOpenAITestServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		assert.Equal(t, defaultOpenAIMaxTokens, body.MaxTokens)
		if assert.Len(t, body.Messages, 2) {
			assert.Equal(t, "system", body.Messages[0].Role)
			assert.Equal(t, "user", body.Messages[1].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "gpt-test",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIProvider_Generate(t *testing.T) {
	server := newOpenAITestServer(t, http.StatusOK, `[{"transaction_id":"t1"}]`)

	provider, err := NewProvider(context.Background(), Config{
		Provider: "openai",
		APIKey:   "test-key",
		Model:    "gpt-test",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, provider.Name())

	text, err := provider.Generate(context.Background(), "classify")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"transaction_id":"t1"}]`, text)
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		want      error
		name      string
		status    int
		content   string
		retryable bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrProviderAuth},
		{name: "rate limited", status: http.StatusTooManyRequests, want: ErrProviderRateLimit, retryable: true},
		{name: "server error", status: http.StatusBadGateway, want: ErrProviderUnavailable, retryable: true},
		{name: "empty content", status: http.StatusOK, content: " ", want: ErrProviderEmptyResponse, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newOpenAITestServer(t, tt.status, tt.content)
			provider := newOpenAIProvider(Config{APIKey: "test-key", Model: "gpt-test", BaseURL: server.URL})

			_, err := provider.Generate(context.Background(), "classify")
			require.Error(t, err)

			classified := ClassifyError(err)
			assert.ErrorIs(t, classified, tt.want)
			assert.Equal(t, tt.retryable, common.IsRetryable(classified))
		})
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		config  Config
		want    string
	}{
		{name: "missing key", config: Config{Provider: "gemini"}, wantErr: common.ErrNotConfigured},
		{name: "unsupported", config: Config{Provider: "ollama", APIKey: "k"}, wantErr: common.ErrInvalidConfig},
		{name: "anthropic", config: Config{Provider: "Anthropic", APIKey: "k"}, want: ProviderAnthropic},
		{name: "openai", config: Config{Provider: "openai", APIKey: "k"}, want: ProviderOpenAI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(context.Background(), tt.config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, provider.Name())
		})
	}
}
