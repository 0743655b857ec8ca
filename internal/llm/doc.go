// Package llm invokes text-completion providers for transaction classification.
// It supports Gemini, Anthropic and OpenAI, with error classification, retry
// with exponential backoff, rate limiting, prompt sanitization and JSON
// extraction from free-form responses.
package llm
