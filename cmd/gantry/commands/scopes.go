package commands

import (
	"encoding/json"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gantry-run/gantry/pkg/components"
	"github.com/gantry-run/gantry/pkg/meta"
	"github.com/gantry-run/gantry/pkg/runtime"
)

type scopeView struct {
	Component string   `json:"component"`
	Scopes    []string `json:"scopes"`
	Allowed   bool     `json:"allowed"`
}

func newScopesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scopes <component-file> <app-id>",
		Short: "Check which components an application may use",
		Long: `Report, for every component in a manifest file or directory, whether the
application is allowed to use it. A component without scopes is available to
every application.`,
		Example: `  # Check a single manifest
  gantry scopes ./components/statestore.yaml checkout

  # Check a whole directory as JSON
  gantry scopes --json ./components orders`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := components.NewLoader(log.Logger)
			if err != nil {
				return err
			}
			comps, err := loadPath(loader, args[0])
			if err != nil {
				return err
			}

			activator, err := runtime.NewActivator(runtime.Options{
				Meta:   meta.NewMeta(meta.Options{ID: args[1]}),
				Logger: log.Logger,
			})
			if err != nil {
				return err
			}

			views := make([]scopeView, len(comps))
			for i, comp := range comps {
				views[i] = scopeView{
					Component: comp.Name(),
					Scopes:    comp.Scopes,
					Allowed:   activator.Authorize(comp, args[1]) == nil,
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Component", "Scopes", "Allowed"})
			for _, v := range views {
				scopes := strings.Join(v.Scopes, ",")
				if scopes == "" {
					scopes = "*"
				}
				allowed := "no"
				if v.Allowed {
					allowed = "yes"
				}
				table.Append([]string{v.Component, scopes, allowed})
			}
			table.Render()
			return nil
		},
	}

	return cmd
}
