package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// ImportReport lists the outcome of an import, key by key.
type ImportReport struct {
	Imported []string `json:"imported"`
	Failed   []string `json:"failed"`
}

// Complete reports whether every key in the snapshot was written.
func (r ImportReport) Complete() bool {
	return len(r.Failed) == 0
}

// Snapshot returns every stored entry, each decoded the way Get decodes it:
// JSON values keep their encoded form and anything else becomes a JSON string.
func (s *Store) Snapshot(ctx context.Context) map[string]json.RawMessage {
	data := make(map[string]json.RawMessage)
	for _, key := range s.Keys(ctx) {
		raw, ok := s.GetString(ctx, key)
		if !ok {
			continue
		}
		if json.Valid([]byte(raw)) {
			data[key] = json.RawMessage(raw)
			continue
		}
		quoted, err := json.Marshal(raw)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to export item", "key", key, "error", err)
			continue
		}
		data[key] = quoted
	}
	return data
}

// ExportAll returns an indented JSON object holding every stored entry, or
// "{}" when the store is unavailable or the export fails.
func (s *Store) ExportAll(ctx context.Context) string {
	if !s.available {
		return "{}"
	}
	out, err := json.MarshalIndent(s.Snapshot(ctx), "", "  ")
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to export data", "error", err)
		return "{}"
	}
	return string(out)
}

// Import writes every entry of a JSON object snapshot, one key at a time in
// sorted key order. It is not transactional: keys written before a failure
// stay written, and the report names the keys that failed. JSON strings are
// stored unquoted and every other value is stored as compact JSON.
func (s *Store) Import(ctx context.Context, snapshot []byte) (ImportReport, error) {
	var report ImportReport
	if !s.available {
		return report, fmt.Errorf("import: storage not available")
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(snapshot, &data); err != nil {
		return report, fmt.Errorf("import: invalid snapshot: %w", err)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if s.Set(ctx, key, importValue(data[key])) {
			report.Imported = append(report.Imported, key)
		} else {
			report.Failed = append(report.Failed, key)
		}
	}
	return report, nil
}

func importValue(raw json.RawMessage) any {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return raw
}

// ImportAll imports a snapshot and reports true only when every key was
// written.
func (s *Store) ImportAll(ctx context.Context, snapshot string) bool {
	report, err := s.Import(ctx, []byte(snapshot))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to import data", "error", err)
		return false
	}
	if !report.Complete() {
		s.logger.ErrorContext(ctx, "data imported partially",
			"imported", len(report.Imported),
			"failed", report.Failed)
		return false
	}
	s.logger.InfoContext(ctx, "data imported successfully", "imported", len(report.Imported))
	return true
}
