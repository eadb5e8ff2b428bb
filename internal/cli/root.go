package cli

import (
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "account-portal",
	Short: "Account portal login and session service",
	Long: `Signs users in with an OpenID Connect provider, keeps their session in a
signed cookie and optionally links an account at a second provider.`,
	SilenceUsage: true,
}

func Execute() {
	// Wipe session key enclaves on SIGINT/SIGTERM as well as on normal exit.
	memguard.CatchInterrupt()
	defer memguard.Purge()

	if err := rootCmd.Execute(); err != nil {
		memguard.Purge()
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenSecretCmd())
}
