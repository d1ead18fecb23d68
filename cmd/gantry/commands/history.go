package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gantry-run/gantry/pkg/config"
	"github.com/gantry-run/gantry/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		component   string
		filterApp   string
		status      string
		limit       int
		offset      int
		pruneBefore time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded activations",
		Long: `List the activations recorded in the activation history store, newest
first. The store is configured by store.path in the config file.

With --prune, activations older than the given age are deleted instead.`,
		Example: `  # Show the last 20 activations
  gantry history --limit 20

  # Show denied activations of one component
  gantry history --component statestore --status denied

  # Delete activations older than 30 days
  gantry history --prune 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := environment()
			if err != nil {
				return err
			}
			cfg, err := config.LoadWithEnv(configPath, env)
			if err != nil {
				return err
			}
			if cfg.Store.Path == "" {
				return fmt.Errorf("activation history is disabled: store.path is not set")
			}

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					log.Warn().Err(err).Msg("Failed to close store")
				}
			}()

			if pruneBefore > 0 {
				n, err := store.DeleteActivationsBefore(ctx, time.Now().Add(-pruneBefore))
				if err != nil {
					return err
				}
				log.Info().Int64("deleted", n).Dur("older_than", pruneBefore).Msg("Pruned activation history")
				return nil
			}

			acts, err := store.ListActivations(ctx, stores.ActivationFilter{
				Component: component,
				AppID:     filterApp,
				Status:    stores.ActivationStatus(status),
				Limit:     limit,
				Offset:    offset,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(acts)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Time", "Component", "Type", "App", "Status", "Properties", "Duration", "Error"})
			table.SetAutoWrapText(false)
			for _, act := range acts {
				errText := ""
				if act.Error != nil {
					errText = *act.Error
				}
				table.Append([]string{
					act.CreatedAt.Local().Format(time.DateTime),
					act.Component,
					act.ComponentType,
					act.AppID,
					string(act.Status),
					strconv.Itoa(act.PropertyCount),
					act.Duration.String(),
					errText,
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&component, "component", "", "only show activations of this component")
	cmd.Flags().StringVar(&filterApp, "app", "", "only show activations of this application")
	cmd.Flags().StringVar(&status, "status", "", "only show activations with this status (succeeded, failed, denied, skipped)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of activations to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of activations to skip")
	cmd.Flags().DurationVar(&pruneBefore, "prune", 0, "delete activations older than this age")

	return cmd
}
