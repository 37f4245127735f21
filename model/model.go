package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Message is one chat turn in provider-neutral form.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Request is a normalized chat/generation request.
type Request struct {
	Messages []Message `json:"messages"`
	// ModelHint optionally asks the provider for a specific model; providers
	// fall back to their configured default when empty or unknown.
	ModelHint string `json:"model_hint,omitempty"`
}

// Response is the final (non-streaming) completion.
type Response struct {
	Content  string `json:"content"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ErrorKind distinguishes failure classes with different routing behavior.
type ErrorKind string

const (
	// KindUnavailable covers missing credentials, client initialization
	// failures, network errors, rate limits and server errors. The router
	// fails over to the next provider.
	KindUnavailable ErrorKind = "unavailable"
	// KindInvalidRequest covers caller mistakes (malformed input, context
	// overflow). The router does not fail over: the next provider would
	// reject the same request.
	KindInvalidRequest ErrorKind = "invalid_request"
)

// ProviderError is the uniform error shape all providers return.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

// Error implements error.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider %s: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ProviderError) Unwrap() error { return e.Err }

// Unavailable wraps err as a failover-triggering provider error.
func Unavailable(provider string, err error) error {
	return &ProviderError{Provider: provider, Kind: KindUnavailable, Err: err}
}

// InvalidRequest wraps err as a non-failover provider error.
func InvalidRequest(provider string, err error) error {
	return &ProviderError{Provider: provider, Kind: KindInvalidRequest, Err: err}
}

// IsUnavailable reports whether err is a failover-triggering provider error.
// Non-ProviderError values are treated as unavailable: an unknown failure
// should try the next provider rather than abort routing.
func IsUnavailable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == KindUnavailable
	}
	return true
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "local", etc.
}

// Model is the minimal interface required to drive generation.
type Model interface {
	Chat(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	errs      []error
	calls     int
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input
// prompt (matched against the last message content).
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailWith queues errors returned by successive Chat calls before any
// canned responses are served.
func (m *MockModel) FailWith(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
}

// Calls returns how many times Chat was invoked.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Chat implements Model.
func (m *MockModel) Chat(_ context.Context, req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return Response{}, err
	}
	if len(req.Messages) == 0 {
		return Response{}, InvalidRequest(m.info.Provider, fmt.Errorf("no messages provided"))
	}
	last := req.Messages[len(req.Messages)-1].Content
	if resp, ok := m.responses[last]; ok {
		return Response{Content: resp, Provider: m.info.Provider, Model: m.info.Name}, nil
	}
	return Response{Content: "mock response", Provider: m.info.Provider, Model: m.info.Name}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
