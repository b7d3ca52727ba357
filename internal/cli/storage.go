package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/phrazzld/caderno-api/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newStorageCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "storage",
		Aliases: []string{"store"},
		Short:   "Inspect and edit the key-value store",
	}

	cmd.AddCommand(
		newKeysCmd(r),
		newGetCmd(r),
		newSetCmd(r),
		newRmCmd(r),
		newClearCmd(r),
		newStatsCmd(r),
		newExportCmd(r),
		newImportCmd(r),
	)
	return cmd
}

func newKeysCmd(r *runner) *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if match != "" && !doublestar.ValidatePattern(match) {
				return fmt.Errorf("invalid --match pattern %q", match)
			}

			s, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			out := cmd.OutOrStdout()
			for _, key := range s.store.Keys(cmd.Context()) {
				if match != "" {
					if ok, _ := doublestar.Match(match, key); !ok {
						continue
					}
				}
				fmt.Fprintln(out, key)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&match, "match", "m", "", "Only list keys matching this glob, e.g. 'caderno*'")
	return cmd
}

func newGetCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the stored value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			value, ok := s.store.GetString(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newSetCmd(r *runner) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value",
		Long: "Store a value under key. A value that parses as JSON is stored as compact JSON,\n" +
			"anything else is stored as a plain string. Use --raw to always store the string.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if !s.store.Set(cmd.Context(), args[0], parseValue(args[1], raw)) {
				return fmt.Errorf("failed to store %q", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Store the value as a plain string")
	return cmd
}

// parseValue mirrors the HTTP API: JSON strings are stored unquoted and other
// JSON values as compact JSON.
func parseValue(arg string, raw bool) any {
	if raw || !json.Valid([]byte(arg)) {
		return arg
	}
	var text string
	if err := json.Unmarshal([]byte(arg), &text); err == nil {
		return text
	}
	return json.RawMessage(arg)
}

func newRmCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>...",
		Aliases: []string{"remove"},
		Short:   "Remove keys",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			var errs []error
			for _, key := range args {
				if !s.store.Remove(cmd.Context(), key) {
					errs = append(errs, fmt.Errorf("failed to remove %q", key))
				}
			}
			return errors.Join(errs...)
		},
	}
}

func newClearCmd(r *runner) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear storage without --yes")
			}

			s, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if !s.store.Clear(cmd.Context()) {
				return errors.New("failed to clear storage")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm removing every key")
	return cmd
}

// Stats summarizes the store contents.
type Stats struct {
	Backend   string `json:"backend"`
	Version   string `json:"version,omitempty"`
	Keys      int    `json:"keys"`
	Notebooks int    `json:"notebooks"`
	SizeBytes int64  `json:"sizeBytes"`
	Quota     int64  `json:"quotaBytes,omitempty"`
	ErrorLogs int    `json:"errorLogs"`
}

func newStatsCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show storage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			version, _ := s.store.GetString(ctx, storage.VersionKey)
			notebooks := storage.Lookup[map[string]json.RawMessage](ctx, s.store, storage.NotebooksKey, nil)
			logs := storage.Lookup[[]json.RawMessage](ctx, s.store, storage.ErrorLogsKey, nil)

			stats := Stats{
				Backend:   s.config.Storage.Backend,
				Version:   version,
				Keys:      len(s.store.Keys(ctx)),
				Notebooks: len(notebooks),
				SizeBytes: s.store.Size(ctx),
				Quota:     s.config.Storage.QuotaBytes,
				ErrorLogs: len(logs),
			}
			b, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}

func newExportCmd(r *runner) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every stored entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q: use json or yaml", format)
			}

			s, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			var data []byte
			if format == "yaml" {
				data, err = exportYAML(s.store.Snapshot(cmd.Context()))
				if err != nil {
					return err
				}
			} else {
				data = []byte(s.store.ExportAll(cmd.Context()) + "\n")
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func exportYAML(snapshot map[string]json.RawMessage) ([]byte, error) {
	doc := make(map[string]any, len(snapshot))
	for key, raw := range snapshot {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %q: %w", key, err)
		}
		doc[key] = v
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	return data, nil
}

func newImportCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON export (\"-\" reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read snapshot: %w", err)
			}

			s, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			report, err := s.store.Import(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d keys\n", len(report.Imported))
			if !report.Complete() {
				return fmt.Errorf("failed to import %d keys: %v", len(report.Failed), report.Failed)
			}
			return nil
		},
	}
}
