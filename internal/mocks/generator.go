package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/caderno-api/internal/generation"
)

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// GenerateFn overrides Generate when set
	GenerateFn func(ctx context.Context, req generation.Request) (*generation.Result, error)

	// ValidateCredentialFn overrides ValidateCredential when set
	ValidateCredentialFn func(ctx context.Context) generation.Validation

	// Default response values
	Result *generation.Result
	Err    error

	mu            sync.Mutex
	requests      []generation.Request
	validateCalls int
}

// NewMockGeneratorWithText creates a MockGenerator that continues every prompt with text
func NewMockGeneratorWithText(text string) *MockGenerator {
	return &MockGenerator{
		Result: &generation.Result{Text: text, FinishReason: "STOP"},
	}
}

// NewMockGeneratorWithError creates a MockGenerator that fails every call with err
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{Err: err}
}

// Generate implements generation.Generator
func (m *MockGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &generation.Result{Text: "ok"}, nil
}

// ValidateCredential implements generation.Generator
func (m *MockGenerator) ValidateCredential(ctx context.Context) generation.Validation {
	m.mu.Lock()
	m.validateCalls++
	m.mu.Unlock()

	if m.ValidateCredentialFn != nil {
		return m.ValidateCredentialFn(ctx)
	}
	return generation.Validation{Valid: true, Message: "API key is valid"}
}

// Requests returns every request passed to Generate, in call order
func (m *MockGenerator) Requests() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generation.Request(nil), m.requests...)
}

// ValidateCalls returns how many times ValidateCredential was called
func (m *MockGenerator) ValidateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateCalls
}

var _ generation.Generator = (*MockGenerator)(nil)
