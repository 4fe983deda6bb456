package testutil

import (
	"context"
	"strings"
	"sync"
)

// MockLLM returns scripted answers for generation requests. Prompts are
// matched against registered patterns by case-insensitive substring; the
// first match wins and the fallback answer covers the rest.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	err      error
	calls    []MockCall
}

type mockRule struct {
	pattern  string
	response string
}

// MockCall records one call to Generate.
type MockCall struct {
	Prompt      string
	Temperature float32
	Response    string
}

// NewMockLLM creates a mock with the given fallback answer.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse registers a pattern-response pair. Patterns are checked in
// registration order.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// Fail makes every subsequent Generate call return err. Pass nil to
// restore normal behavior.
func (m *MockLLM) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Generate returns the scripted answer for prompt.
func (m *MockLLM) Generate(_ context.Context, prompt string, temperature float32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}

	response := m.fallback
	lower := strings.ToLower(prompt)
	for _, r := range m.rules {
		if strings.Contains(lower, r.pattern) {
			response = r.response
			break
		}
	}

	m.calls = append(m.calls, MockCall{
		Prompt:      prompt,
		Temperature: temperature,
		Response:    response,
	})
	return response, nil
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears recorded calls, keeping registered responses.
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
