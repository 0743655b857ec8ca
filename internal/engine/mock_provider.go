package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockProvider is a test implementation of AIClient. It decodes the
// transactions from each prompt and answers with one result per transaction.
type MockProvider struct {
	respond  func(PromptTransaction) map[string]any
	failures map[int]error
	gate     <-chan struct{}
	err      error
	calls    []MockCall
	mu       sync.Mutex
}

// MockCall records one provider invocation.
type MockCall struct {
	Prompt       string
	Transactions []PromptTransaction
}

// NewMockProvider creates a mock provider. A nil respond answers every
// transaction with "Shopping" at confidence 0.95.
func NewMockProvider(respond func(PromptTransaction) map[string]any) *MockProvider {
	if respond == nil {
		respond = func(pt PromptTransaction) map[string]any {
			return map[string]any{
				"transaction_id":   pt.TransactionID,
				"category_name":    "Shopping",
				"category_group":   "Lifestyle",
				"subcategory":      "General Merchandise",
				"is_discretionary": true,
				"confidence":       0.95,
			}
		}
	}
	return &MockProvider{
		respond:  respond,
		failures: make(map[int]error),
	}
}

// Name implements AIClient.
func (m *MockProvider) Name() string {
	return "mock"
}

// SetError makes every call fail with err.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailCall makes the nth call (1-based) fail with err.
func (m *MockProvider) FailCall(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[n] = err
}

// SetGate makes calls block until gate is closed or the context ends.
func (m *MockProvider) SetGate(gate <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

// InvokeAndParse implements AIClient.
func (m *MockProvider) InvokeAndParse(ctx context.Context, prompt string, _ time.Duration) ([]map[string]any, error) {
	txns, err := decodePromptTransactions(prompt)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Prompt: prompt, Transactions: txns})
	n := len(m.calls)
	gate := m.gate
	callErr := m.err
	if e, ok := m.failures[n]; ok {
		callErr = e
	}
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if callErr != nil {
		return nil, callErr
	}

	results := make([]map[string]any, 0, len(txns))
	for _, pt := range txns {
		if item := m.respond(pt); item != nil {
			results = append(results, item)
		}
	}
	return results, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// BatchSizes returns the number of transactions in each call.
func (m *MockProvider) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make([]int, len(m.calls))
	for i, c := range m.calls {
		sizes[i] = len(c.Transactions)
	}
	return sizes
}

const (
	transactionsHeader = "Transactions:\n"
	instructionsHeader = "\n\nFor each transaction"
)

// decodePromptTransactions reads back the transaction list BuildPrompt
// embedded in prompt.
func decodePromptTransactions(prompt string) ([]PromptTransaction, error) {
	start := strings.Index(prompt, transactionsHeader)
	if start < 0 {
		return nil, errors.New("prompt has no transaction list")
	}
	body := prompt[start+len(transactionsHeader):]
	end := strings.Index(body, instructionsHeader)
	if end < 0 {
		return nil, errors.New("prompt has no instructions")
	}

	var txns []PromptTransaction
	if err := json.Unmarshal([]byte(body[:end]), &txns); err != nil {
		return nil, fmt.Errorf("failed to decode prompt transactions: %w", err)
	}
	return txns, nil
}
