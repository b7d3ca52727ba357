package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/phrazzld/caderno-api/internal/generation"
	"github.com/spf13/cobra"
)

func newGenerateCmd(r *runner) *cobra.Command {
	var (
		opts   generation.Options
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "generate [text...]",
		Short: "Continue a piece of text",
		Long:  "Continue the given text with Gemini. With no arguments, or with \"-\", the text is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			s, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			client, err := s.generator(cmd)
			if err != nil {
				return err
			}

			result, err := client.Generate(cmd.Context(), generation.Request{Prompt: prompt, Options: opts})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				b, _ := json.MarshalIndent(result, "", "  ")
				fmt.Fprintln(out, string(b))
				return nil
			}
			fmt.Fprintln(out, result.Text)
			return nil
		},
	}

	cmd.Flags().Float64Var(&opts.Temperature, "temperature", 0, "Sampling temperature, 0 to 2 (default 0.7)")
	cmd.Flags().IntVar(&opts.TopK, "top-k", 0, "Top-k sampling (default 40)")
	cmd.Flags().Float64Var(&opts.TopP, "top-p", 0, "Nucleus sampling, 0 to 1 (default 0.95)")
	cmd.Flags().IntVar(&opts.MaxOutputTokens, "max-tokens", 0, "Maximum output tokens (default 1024)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")

	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read text from stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}
