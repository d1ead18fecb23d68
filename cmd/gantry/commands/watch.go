package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gantry-run/gantry/pkg/components"
	"github.com/gantry-run/gantry/pkg/policy"
	"github.com/gantry-run/gantry/pkg/stores"
)

func newWatchCommand() *cobra.Command {
	var (
		reloadDelay time.Duration
		withMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-resolve components whenever their manifests change",
		Long: `Resolve every component in a directory, then watch the directory and the
configured policy paths. Components are re-resolved after each change until
the command is interrupted.

The Prometheus metrics endpoint is served while watching when metrics are
enabled in the telemetry configuration.`,
		Example: `  # Watch the configured components directory
  gantry watch --app-id checkout

  # Watch a directory without serving metrics
  gantry watch --metrics=false ./components`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(ctx); err != nil {
					log.Warn().Err(err).Msg("Failed to shut down cleanly")
				}
			}()

			dir := a.cfg.ComponentsPath
			if len(args) > 0 {
				dir = args[0]
			}
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			if withMetrics {
				if err := a.telemetry.StartMetricsServer(); err != nil {
					return err
				}
			}

			comps, err := a.loadComponents(dir)
			if err != nil {
				return err
			}
			a.activateAndReport(ctx, comps)

			watcher := components.NewWatcher(a.loader, a.logger)
			watcher.SetReloadDelay(reloadDelay)
			if err := watcher.Watch(ctx, dir, func(comps []*components.Component) error {
				a.telemetry.Metrics.SetComponentsLoaded(len(comps))
				a.activateAndReport(ctx, comps)
				return nil
			}); err != nil {
				return err
			}
			defer watcher.Stop()

			if a.policy != nil && len(a.cfg.Policy.Paths) > 0 {
				policyLoader := policy.NewLoader(a.logger)
				if err := policyLoader.Watch(ctx, a.cfg.Policy.Paths, func(policies []policy.Policy) error {
					if err := a.policy.ReplacePolicies(ctx, policies); err != nil {
						return err
					}
					// Re-admit the current components under the new policies
					comps, err := a.loadComponents(dir)
					if err != nil {
						return err
					}
					a.activateAndReport(ctx, comps)
					return nil
				}); err != nil {
					return err
				}
				defer policyLoader.StopWatching()
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().DurationVar(&reloadDelay, "reload-delay", components.DefaultReloadDelay, "debounce delay after a change")
	cmd.Flags().BoolVar(&withMetrics, "metrics", true, "serve Prometheus metrics while watching")

	return cmd
}

// activateAndReport activates comps and logs a summary line.
func (a *app) activateAndReport(ctx context.Context, comps []*components.Component) {
	acts, err := a.activator.ActivateAll(ctx, comps)

	counts := make(map[stores.ActivationStatus]int)
	for _, act := range acts {
		counts[act.Status]++
	}

	event := a.logger.Info()
	if err != nil {
		event = a.logger.Warn().Err(err)
	}
	event.
		Int("components", len(comps)).
		Int("succeeded", counts[stores.ActivationSucceeded]).
		Int("failed", counts[stores.ActivationFailed]).
		Int("denied", counts[stores.ActivationDenied]).
		Int("skipped", counts[stores.ActivationSkipped]).
		Msg("Components resolved")
}
