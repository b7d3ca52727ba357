package storage

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// evict frees space after a refused write. It removes the error log, then
// trims the notebook collection to the retain most recently updated records.
// It returns the number of notebooks removed.
func (s *Store) evict(ctx context.Context) int {
	s.logger.WarnContext(ctx, "attempting to free storage space")

	if err := s.medium.RemoveItem(ctx, ErrorLogsKey); err != nil {
		s.logger.ErrorContext(ctx, "failed to remove error logs", "error", err)
	}

	raw, ok, err := s.medium.GetItem(ctx, NotebooksKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to free storage space", "error", err)
		return 0
	}
	if !ok {
		return 0
	}

	var notebooks map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &notebooks); err != nil {
		s.logger.ErrorContext(ctx, "failed to free storage space",
			"error", err,
			"reason", "notebook collection is not an object")
		return 0
	}

	removed := trimNotebooks(notebooks, s.retain)
	if len(removed) == 0 {
		return 0
	}

	encoded, err := json.Marshal(notebooks)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to free storage space", "error", err)
		return 0
	}
	// written straight to the medium so a second refusal cannot re-enter eviction
	if err := s.medium.SetItem(ctx, NotebooksKey, string(encoded)); err != nil {
		s.logger.ErrorContext(ctx, "failed to rewrite notebooks after eviction", "error", err)
		return 0
	}

	s.logger.InfoContext(ctx, "removed old notebooks",
		"removed", len(removed),
		"retained", len(notebooks))
	return len(removed)
}

// trimNotebooks deletes from notebooks every record except the retain most
// recently updated ones and returns the removed ids. Ties keep id order.
func trimNotebooks(notebooks map[string]json.RawMessage, retain int) []string {
	if len(notebooks) <= retain {
		return nil
	}

	type entry struct {
		id        string
		updatedAt float64
	}
	entries := make([]entry, 0, len(notebooks))
	for id, rec := range notebooks {
		entries = append(entries, entry{id: id, updatedAt: lastModified(rec)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].updatedAt != entries[j].updatedAt {
			return entries[i].updatedAt > entries[j].updatedAt
		}
		return entries[i].id < entries[j].id
	})

	removed := make([]string, 0, len(entries)-retain)
	for _, e := range entries[retain:] {
		delete(notebooks, e.id)
		removed = append(removed, e.id)
	}
	return removed
}

// notebookTimestamps holds the fields eviction reads from a notebook record.
type notebookTimestamps struct {
	UpdatedAt    json.RawMessage `json:"updatedAt"`
	AtualizadoEm json.RawMessage `json:"atualizadoEm"`
}

// lastModified returns the record's last-modified time in epoch milliseconds.
// Records without a usable timestamp sort as 0.
func lastModified(rec json.RawMessage) float64 {
	var ts notebookTimestamps
	if err := json.Unmarshal(rec, &ts); err != nil {
		return 0
	}
	if v, ok := parseTimestamp(ts.UpdatedAt); ok {
		return v
	}
	if v, ok := parseTimestamp(ts.AtualizadoEm); ok {
		return v
	}
	return 0
}

// parseTimestamp accepts epoch milliseconds or an RFC 3339 string.
func parseTimestamp(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return ms, true
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
			return float64(t.UnixMilli()), true
		}
	}
	return 0, false
}
