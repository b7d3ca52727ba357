package generation

import (
	"context"
	"time"
)

// Generator performs text continuation against a remote service.
// This interface serves as a boundary between the application core and
// external AI/LLM services.
type Generator interface {
	// Generate continues the text of req.Prompt.
	//
	// Parameters:
	//   - ctx: Context for the whole call, including every retry
	//   - req: The prompt and generation options
	//
	// Returns:
	//   - The generated continuation on success
	//   - A *Error carrying a stable Code on any failure
	Generate(ctx context.Context, req Request) (*Result, error)

	// ValidateCredential checks whether the stored credential is accepted by
	// the remote service. Failures are reported in the Validation, never as errors.
	ValidateCredential(ctx context.Context) Validation
}

// Result is the outcome of a successful generation. It is immutable once
// returned and is never persisted by the generator.
type Result struct {
	Text         string    `json:"text"`
	TokensUsed   int       `json:"tokensUsed"`
	FinishReason string    `json:"finishReason"`
	CompletedAt  time.Time `json:"timestamp"`
}

// Validation reports whether a credential was accepted.
type Validation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}
