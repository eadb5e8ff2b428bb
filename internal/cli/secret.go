package cli

import (
	"fmt"

	"account-portal/internal/auth"
	"account-portal/internal/config"

	"github.com/spf13/cobra"
)

func newGenSecretCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "gen-secret",
		Short: "Print a random value for sessions.secret or linked.hmac_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Each byte encodes to at least one character.
			if size < config.MinSessionSecretLength {
				return fmt.Errorf("--bytes must be at least %d", config.MinSessionSecretLength)
			}
			fmt.Fprintln(cmd.OutOrStdout(), auth.GenerateRandString(size))
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "bytes", 48, "number of random bytes")

	return cmd
}
