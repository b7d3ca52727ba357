package api

import (
	"github.com/phrazzld/caderno-api/internal/generation"
)

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Prompt  string             `json:"prompt"`
	Options generation.Options `json:"options"`
}

// CredentialRequest is the body of PUT /api/credential.
type CredentialRequest struct {
	APIKey string `json:"apiKey" validate:"required,max=512"`
}

// CredentialStatusResponse reports whether an API key is stored.
type CredentialStatusResponse struct {
	Configured bool `json:"configured"`
}

// StorageInfoResponse describes the store as a whole.
type StorageInfoResponse struct {
	Available bool     `json:"available"`
	Version   string   `json:"version,omitempty"`
	Keys      []string `json:"keys"`
	Size      int64    `json:"size"`
}
