package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCredentialCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the stored Gemini API key",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set [api-key]",
			Short: "Store the Gemini API key (read from stdin when omitted)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := readInput(cmd, args)
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
				if err := client.SetCredential(cmd.Context(), strings.TrimSpace(key)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key stored")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether an API key is stored",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := r.open(cmd)
				if err != nil {
					return err
				}
				defer s.close()

				client, err := s.generator(cmd)
				if err != nil {
					return err
				}
				b, _ := json.Marshal(map[string]bool{"configured": client.HasCredential(cmd.Context())})
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check the stored API key against Gemini",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := r.open(cmd)
				if err != nil {
					return err
				}
				defer s.close()

				client, err := s.generator(cmd)
				if err != nil {
					return err
				}
				v := client.ValidateCredential(cmd.Context())
				if !v.Valid {
					return errors.New(v.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), v.Message)
				return nil
			},
		},
	)
	return cmd
}
