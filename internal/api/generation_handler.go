package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/phrazzld/caderno-api/internal/api/shared"
	"github.com/phrazzld/caderno-api/internal/generation"
)

// CredentialManager stores and inspects the generation credential.
type CredentialManager interface {
	SetCredential(ctx context.Context, apiKey string) error
	HasCredential(ctx context.Context) bool
}

// GenerationHandler handles text continuation and credential requests.
type GenerationHandler struct {
	generator   generation.Generator
	credentials CredentialManager
	logger      *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(
	generator generation.Generator,
	credentials CredentialManager,
	logger *slog.Logger,
) *GenerationHandler {
	return &GenerationHandler{
		generator:   generator,
		credentials: credentials,
		logger:      logger.With("component", "generation_handler"),
	}
}

// Generate handles POST /api/generate requests.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err,
			shared.WithErrorCode(string(generation.CodeInvalidInput)))
		return
	}

	result, err := h.generator.Generate(r.Context(), generation.Request{
		Prompt:  req.Prompt,
		Options: req.Options,
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "generation completed",
		"trace_id", shared.GetTraceID(r.Context()),
		"tokens_used", result.TokensUsed,
		"finish_reason", result.FinishReason)

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// GetCredentialStatus handles GET /api/credential requests.
func (h *GenerationHandler) GetCredentialStatus(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, CredentialStatusResponse{
		Configured: h.credentials.HasCredential(r.Context()),
	})
}

// SetCredential handles PUT /api/credential requests.
func (h *GenerationHandler) SetCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	if err := h.credentials.SetCredential(r.Context(), req.APIKey); err != nil {
		var gerr *generation.Error
		if errors.As(err, &gerr) {
			HandleAPIError(w, r, err)
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Failed to store API key", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ValidateCredential handles POST /api/credential/validate requests. The
// outcome is always reported in the body with status 200.
func (h *GenerationHandler) ValidateCredential(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.generator.ValidateCredential(r.Context()))
}
