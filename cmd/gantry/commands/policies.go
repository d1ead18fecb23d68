package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gantry-run/gantry/pkg/policy"
)

func newPoliciesCommand() *cobra.Command {
	var paths []string

	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List admission policies",
		Long: `List the built-in admission policies together with any policies loaded
from the given paths. Policies are .rego files or JSON policy documents.`,
		Example: `  # List built-in policies
  gantry policies

  # Include policies from a directory
  gantry policies --path ./policies`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			engine, err := policy.NewEngine(log.Logger)
			if err != nil {
				return err
			}
			if len(paths) > 0 {
				if err := engine.LoadPolicies(ctx, paths); err != nil {
					return err
				}
			}

			list := engine.ListPolicies()

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Name", "Severity", "Enabled", "Description"})
			for _, p := range list {
				table.Append([]string{p.Name, string(p.Severity), strconv.FormatBool(p.Enabled), p.Description})
			}
			table.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "%d policies\n", len(list))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&paths, "path", nil, "policy file or directory (repeatable)")

	return cmd
}
