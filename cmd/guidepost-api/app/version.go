package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guidepost-hq/guidepost/pkg/logger"
	"github.com/guidepost-hq/guidepost/pkg/versions"
)

// newVersionCmd builds the version subcommand.
func newVersionCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the version of guidepost-api",
		Long:  `Display detailed version information, including version number, git commit, build date, and Go version.`,
		Run: func(_ *cobra.Command, _ []string) {
			info := versions.GetVersionInfo()

			if jsonOutput {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					logger.Errorf("Failed to marshal version information: %v", err)
					return
				}
				fmt.Println(string(out))
				return
			}

			fmt.Printf("guidepost-api %s (commit %s)\n", info.Version, info.Commit)
			fmt.Printf("Built:      %s\n", info.BuildDate)
			fmt.Printf("Go version: %s\n", info.GoVersion)
			fmt.Printf("Platform:   %s\n", info.Platform)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print version information as JSON")

	return cmd
}
