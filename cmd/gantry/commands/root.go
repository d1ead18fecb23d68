package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	envFiles   []string
	appID      string
	verbose    bool
	jsonOutput bool

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gantry",
		Short: "Gantry - component metadata resolution runtime",
		Long: `Gantry resolves the declarative components an application uses into the
flat property maps handed to component drivers.

For every component it:
  - Checks that the application is in the component's scopes
  - Resolves secretKeyRef and envRef entries against the configured stores
  - Substitutes {uuid}, {podName}, {namespace} and {appID} placeholders
  - Applies the strict WASM sandbox policy
  - Evaluates admission policies (OPA/rego)
  - Records the outcome in the activation history`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv file read before the process environment (repeatable)")
	rootCmd.PersistentFlags().StringVar(&appID, "app-id", "", "application id (overrides APP_ID)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newScopesCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newPoliciesCommand())

	return rootCmd
}
