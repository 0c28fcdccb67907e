// Package app provides the entry point for the guidepost-api command-line application.
package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/guidepost-hq/guidepost/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "guidepost-api",
	DisableAutoGenTag: true,
	Short:             "Guidepost authentication and authorization service",
	Long: `Guidepost is the authentication service for the coaching platform.
It verifies Clerk-issued bearer tokens against the issuer's JWKS, resolves each
caller's effective identity and roles, and enforces organization-scoped access
for coaches and admins.`,
	PersistentPreRun: func(*cobra.Command, []string) {
		// Flags are parsed by now, so a --debug level can take effect.
		logger.Initialize()
	},
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the Guidepost CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("Failed to bind debug flag: %v", err)
	}

	// Every flag can also be set through the environment, e.g.
	// GUIDEPOST_CLERK_SECRET_KEY for --clerk-secret-key.
	viper.SetEnvPrefix("guidepost")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
