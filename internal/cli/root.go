// Package cli implements the caderno command line. Every command opens the
// configured storage backend, does its work and closes it again.
package cli

import (
	"github.com/phrazzld/caderno-api/internal/config"
	"github.com/spf13/cobra"
)

// ConfigLoader returns the configuration commands run with.
type ConfigLoader func() (*config.Config, error)

type rootOptions struct {
	backend string
	path    string
	verbose bool
}

// NewRootCmd builds the caderno command tree. load is called once per command
// invocation; flags given on the command line override what it returns.
func NewRootCmd(load ConfigLoader) *cobra.Command {
	r := &runner{load: load}

	root := &cobra.Command{
		Use:   "caderno",
		Short: "Notebook storage and AI text continuation",
		Long: "caderno manages the notebook key-value store and continues text with Gemini.\n" +
			"Configuration is read from config.yaml and CADERNO_* environment variables.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&r.opts.backend, "backend", "b", "", "Storage backend: memory, jsonfile, sqlite or postgres (default from config)")
	root.PersistentFlags().StringVarP(&r.opts.path, "path", "p", "", "Storage file for the jsonfile and sqlite backends")
	root.PersistentFlags().BoolVarP(&r.opts.verbose, "verbose", "v", false, "Write debug logs to stderr")

	root.AddCommand(
		newGenerateCmd(r),
		newCredentialCmd(r),
		newStorageCmd(r),
	)
	return root
}
