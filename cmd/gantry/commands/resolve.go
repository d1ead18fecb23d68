package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gantry-run/gantry/pkg/components"
	"github.com/gantry-run/gantry/pkg/runtime"
	"github.com/gantry-run/gantry/pkg/stores"
	"github.com/gantry-run/gantry/pkg/wasmhost"
)

const maskedValue = "******"

// activationView is the printed form of an activation.
type activationView struct {
	ID         string            `json:"id"`
	Component  string            `json:"component"`
	Type       string            `json:"type"`
	Status     string            `json:"status"`
	Properties map[string]string `json:"properties,omitempty"`
	Sandbox    *wasmhost.Config  `json:"sandbox,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	Error      string            `json:"error,omitempty"`
	ErrorCode  string            `json:"errorCode,omitempty"`
	DurationMS int64             `json:"durationMs"`
}

func newResolveCommand() *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "resolve [path]",
		Short: "Resolve component metadata",
		Long: `Load component manifests and resolve each one into the property map its
driver would receive.

Secret-backed values are masked unless --show-secrets is given. The command
fails when any component fails to resolve or is denied by policy.`,
		Example: `  # Resolve the configured components directory
  gantry resolve --app-id checkout

  # Resolve one manifest with variables from a dotenv file
  gantry resolve --env-file .env ./components/statestore.yaml

  # Machine-readable output
  gantry resolve --json ./components`,
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

			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			comps, err := a.loadComponents(path)
			if err != nil {
				return err
			}

			acts, activateErr := a.activator.ActivateAll(ctx, comps)

			views := make([]activationView, len(acts))
			for i, act := range acts {
				views[i] = newActivationView(act, showSecrets)
			}
			if err := printActivations(cmd.OutOrStdout(), views); err != nil {
				return err
			}

			if activateErr != nil {
				return fmt.Errorf("%d of %d components failed to resolve", countFailures(acts), len(acts))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secret-backed values instead of masking them")

	return cmd
}

// loadPath loads a single manifest file or every manifest in a directory.
func loadPath(loader *components.Loader, path string) ([]*components.Component, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read components: %w", err)
	}
	if info.IsDir() {
		return loader.LoadDir(path)
	}
	return loader.LoadFile(path)
}

func newActivationView(act *runtime.Activation, showSecrets bool) activationView {
	view := activationView{
		ID:         act.ID,
		Component:  act.Component,
		Type:       act.ComponentType,
		Status:     string(act.Status),
		Sandbox:    act.Sandbox,
		DurationMS: act.Duration.Milliseconds(),
	}

	if act.Base.Len() > 0 {
		view.Properties = act.Base.Properties()
		for k, v := range view.Properties {
			if act.SecretBacked[k] && !showSecrets {
				v = maskedValue
			}
			view.Properties[k] = v
		}
	}

	if act.Policy != nil {
		for _, w := range act.Policy.Warnings {
			view.Warnings = append(view.Warnings, fmt.Sprintf("%s: %s", w.Policy, w.Message))
		}
	}

	if act.Err != nil {
		view.Error = act.Err.Error()
		view.ErrorCode = runtime.ErrorCode(act.Err)
	}

	return view
}

func printActivations(w io.Writer, views []activationView) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Component", "Type", "Status", "Property", "Value"})
	table.SetAutoWrapText(false)

	for _, v := range views {
		if v.Error != "" {
			table.Append([]string{v.Component, v.Type, v.Status, v.ErrorCode, v.Error})
			continue
		}
		if len(v.Properties) == 0 {
			table.Append([]string{v.Component, v.Type, v.Status, "", ""})
			continue
		}

		keys := make([]string, 0, len(v.Properties))
		for k := range v.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			table.Append([]string{v.Component, v.Type, v.Status, k, v.Properties[k]})
		}
	}

	table.Render()
	return nil
}

func countFailures(acts []*runtime.Activation) int {
	n := 0
	for _, act := range acts {
		if act.Status == stores.ActivationFailed || act.Status == stores.ActivationDenied {
			n++
		}
	}
	return n
}
