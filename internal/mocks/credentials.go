package mocks

import (
	"context"
	"sync"
)

// MockCredentials stores a single API key in memory.
type MockCredentials struct {
	// SetCredentialFn overrides SetCredential when set
	SetCredentialFn func(ctx context.Context, apiKey string) error

	mu     sync.Mutex
	stored string
}

// NewMockCredentials creates a MockCredentials holding apiKey.
func NewMockCredentials(apiKey string) *MockCredentials {
	return &MockCredentials{stored: apiKey}
}

// SetCredential records apiKey, or delegates to SetCredentialFn.
func (m *MockCredentials) SetCredential(ctx context.Context, apiKey string) error {
	if m.SetCredentialFn != nil {
		return m.SetCredentialFn(ctx, apiKey)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = apiKey
	return nil
}

// HasCredential reports whether a non-empty key is stored.
func (m *MockCredentials) HasCredential(context.Context) bool {
	return m.Stored() != ""
}

// Stored returns the stored key.
func (m *MockCredentials) Stored() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stored
}
