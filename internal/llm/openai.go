package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenAITemperature = 0.1
	defaultOpenAIMaxTokens   = 8192

	// maxOpenAIResponseBytes caps how much of a response body is read.
	maxOpenAIResponseBytes = 4 << 20

	openAISystemPrompt = "You classify bank transactions into spending categories. " +
		"Reply with a JSON array only, one object per transaction, with no prose or markdown."
)

// openAIProvider calls an OpenAI-compatible chat completions endpoint.
// BaseURL may point at any server speaking the same protocol.
type openAIProvider struct {
	client   *http.Client
	endpoint string
	apiKey   string
	request  chatRequest
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func newOpenAIProvider(cfg Config) *openAIProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	req := chatRequest{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if req.Temperature == 0 {
		req.Temperature = defaultOpenAITemperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultOpenAIMaxTokens
	}

	return &openAIProvider{
		client:   &http.Client{},
		endpoint: baseURL + "/chat/completions",
		apiKey:   cfg.APIKey,
		request:  req,
	}
}

func (p *openAIProvider) Name() string { return ProviderOpenAI }

func (p *openAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body := p.request
	body.Messages = []chatMessage{
		{Role: "system", Content: openAISystemPrompt},
		{Role: "user", Content: prompt},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxOpenAIResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read chat completion: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode chat completion: %w", err)
	}
	for _, choice := range decoded.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", ErrProviderEmptyResponse
}
