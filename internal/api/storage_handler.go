package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/caderno-api/internal/api/shared"
	"github.com/phrazzld/caderno-api/internal/storage"
)

// KeyValueStore is the store surface exposed over HTTP.
type KeyValueStore interface {
	IsAvailable() bool
	GetString(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value any) bool
	Remove(ctx context.Context, key string) bool
	Clear(ctx context.Context) bool
	Keys(ctx context.Context) []string
	Size(ctx context.Context) int64
	ExportAll(ctx context.Context) string
	Import(ctx context.Context, snapshot []byte) (storage.ImportReport, error)
}

// StorageHandler exposes the key-value store.
type StorageHandler struct {
	store  KeyValueStore
	logger *slog.Logger
	now    func() time.Time
}

// NewStorageHandler creates a new StorageHandler.
func NewStorageHandler(store KeyValueStore, logger *slog.Logger) *StorageHandler {
	return &StorageHandler{
		store:  store,
		logger: logger.With("component", "storage_handler"),
		now:    time.Now,
	}
}

func (h *StorageHandler) requireAvailable(w http.ResponseWriter, r *http.Request) bool {
	if h.store.IsAvailable() {
		return true
	}
	shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Storage not available")
	return false
}

// Info handles GET /api/storage requests.
func (h *StorageHandler) Info(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StorageInfoResponse{
		Available: h.store.IsAvailable(),
		Keys:      h.store.Keys(ctx),
		Size:      h.store.Size(ctx),
	}
	if resp.Keys == nil {
		resp.Keys = []string{}
	}
	if version, ok := h.store.GetString(ctx, storage.VersionKey); ok {
		resp.Version = version
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetItem handles GET /api/storage/{key} requests. JSON values are returned
// as stored; any other text is returned as a JSON string.
func (h *StorageHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	if !h.requireAvailable(w, r) {
		return
	}
	key := chi.URLParam(r, "key")

	raw, ok := h.store.GetString(r.Context(), key)
	if !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "Key not found")
		return
	}

	if json.Valid([]byte(raw)) {
		shared.RespondWithRawJSON(w, r, http.StatusOK, []byte(raw))
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, raw)
}

// PutItem handles PUT /api/storage/{key} requests. The body is any JSON
// value; a JSON string is stored as plain text.
func (h *StorageHandler) PutItem(w http.ResponseWriter, r *http.Request) {
	if !h.requireAvailable(w, r) {
		return
	}
	key := chi.URLParam(r, "key")

	body, err := shared.ReadBody(w, r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err)
		return
	}
	if !json.Valid(body) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Request body must be valid JSON")
		return
	}

	var value any = json.RawMessage(body)
	var text string
	if err := json.Unmarshal(body, &text); err == nil {
		value = text
	}

	if !h.store.Set(r.Context(), key, value) {
		shared.RespondWithError(w, r, http.StatusInsufficientStorage, "Failed to store value")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteItem handles DELETE /api/storage/{key} requests.
func (h *StorageHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if !h.requireAvailable(w, r) {
		return
	}
	if !h.store.Remove(r.Context(), chi.URLParam(r, "key")) {
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Failed to remove value")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/storage requests.
func (h *StorageHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.requireAvailable(w, r) {
		return
	}
	if !h.store.Clear(r.Context()) {
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Failed to clear storage")
		return
	}
	h.logger.InfoContext(r.Context(), "storage cleared over API",
		"trace_id", shared.GetTraceID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/storage/export requests.
func (h *StorageHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.requireAvailable(w, r) {
		return
	}
	filename := fmt.Sprintf("caderno-backup-%s.json", h.now().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	shared.RespondWithRawJSON(w, r, http.StatusOK, []byte(h.store.ExportAll(r.Context())))
}

// Import handles POST /api/storage/import requests. A partial import answers
// 207 with the report naming the failed keys.
func (h *StorageHandler) Import(w http.ResponseWriter, r *http.Request) {
	if !h.requireAvailable(w, r) {
		return
	}

	body, err := shared.ReadBody(w, r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err)
		return
	}

	report, err := h.store.Import(r.Context(), body)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid snapshot", err)
		return
	}

	status := http.StatusOK
	if !report.Complete() {
		status = http.StatusMultiStatus
		h.logger.WarnContext(r.Context(), "partial import",
			"trace_id", shared.GetTraceID(r.Context()),
			"imported", len(report.Imported),
			"failed", report.Failed)
	}
	shared.RespondWithJSON(w, r, status, report)
}
