package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gantry-run/gantry/pkg/components"
	"github.com/gantry-run/gantry/pkg/config"
	"github.com/gantry-run/gantry/pkg/meta"
	"github.com/gantry-run/gantry/pkg/policy"
	"github.com/gantry-run/gantry/pkg/runtime"
	"github.com/gantry-run/gantry/pkg/secretstores"
	"github.com/gantry-run/gantry/pkg/stores"
	"github.com/gantry-run/gantry/pkg/telemetry"
)

// app holds everything a command needs to activate components.
type app struct {
	cfg       *config.RuntimeConfig
	env       secretstores.EnvLookup
	telemetry *telemetry.Telemetry
	logger    zerolog.Logger
	loader    *components.Loader
	policy    *policy.Engine
	store     *stores.SQLiteStore
	activator *runtime.Activator
}

// environment returns the lookup built from the global --env-file and --app-id flags.
func environment() (secretstores.EnvLookup, error) {
	env, err := secretstores.EnvFileLookup(envFiles...)
	if err != nil {
		return nil, err
	}
	if appID != "" {
		env = secretstores.ChainEnv(secretstores.MapEnv(map[string]string{config.EnvAppID: appID}), env)
	}
	return env, nil
}

// openStore opens the activation history store configured in cfg.
func openStore(ctx context.Context, cfg *config.RuntimeConfig) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Store.Path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// newApp loads the configuration and wires the activation pipeline.
func newApp(ctx context.Context) (*app, error) {
	env, err := environment()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadWithEnv(configPath, env)
	if err != nil {
		return nil, err
	}

	telCfg := cfg.TelemetryConfig()
	telCfg.ServiceVersion = buildVersion
	if verbose {
		telCfg.Logging.Level = "debug"
	}
	tel, err := telemetry.NewTelemetry(telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a := &app{
		cfg:       cfg,
		env:       env,
		telemetry: tel,
		logger:    tel.Logger.Zerolog(),
	}

	a.loader, err = components.NewLoader(a.logger)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	registry, err := secretstores.NewRegistryFromConfig(cfg.SecretStores, env, a.logger)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	opts := runtime.Options{
		Meta:           meta.NewMeta(cfg.ToOptions()),
		Resolver:       secretstores.NewReferenceResolver(registry, env, a.logger),
		Metrics:        tel.Metrics,
		Tracer:         tel.Tracer,
		Logger:         a.logger,
		MaxConcurrency: cfg.Concurrency(),
	}

	if cfg.Policy.Enabled {
		a.policy, err = policy.NewEngine(a.logger)
		if err != nil {
			return nil, a.fail(ctx, err)
		}
		if len(cfg.Policy.Paths) > 0 {
			if err := a.policy.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
				return nil, a.fail(ctx, err)
			}
		}
		opts.Policy = a.policy
	}

	if cfg.Store.Path != "" {
		a.store, err = openStore(ctx, cfg)
		if err != nil {
			return nil, a.fail(ctx, err)
		}
		opts.Store = a.store
	}

	a.activator, err = runtime.NewActivator(opts)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	return a, nil
}

// loadComponents reads path, falling back to the configured components path.
func (a *app) loadComponents(path string) ([]*components.Component, error) {
	if path == "" {
		path = a.cfg.ComponentsPath
	}
	comps, err := loadPath(a.loader, path)
	if err != nil {
		return nil, err
	}
	a.telemetry.Metrics.SetComponentsLoaded(len(comps))
	return comps, nil
}

func (a *app) fail(ctx context.Context, err error) error {
	return errors.Join(err, a.close(ctx))
}

// close releases the store and flushes telemetry.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.telemetry.Shutdown(context.WithoutCancel(ctx)))
	return errors.Join(errs...)
}
