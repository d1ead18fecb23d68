package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gantry-run/gantry/pkg/components"
	"github.com/gantry-run/gantry/pkg/meta"
	"github.com/gantry-run/gantry/pkg/policy"
	"github.com/gantry-run/gantry/pkg/secretstores"
	"github.com/gantry-run/gantry/pkg/stores"
	"github.com/gantry-run/gantry/pkg/telemetry"
	"github.com/gantry-run/gantry/pkg/wasmhost"
)

// Options configures an Activator. Only Meta is required.
type Options struct {
	Meta     *meta.Meta
	Resolver *secretstores.ReferenceResolver
	Policy   *policy.Engine
	Store    stores.Store
	Metrics  *telemetry.Metrics
	Tracer   *telemetry.Tracer
	Logger   zerolog.Logger

	// MaxConcurrency bounds ActivateAll. Zero or less means 1.
	MaxConcurrency int
}

// Activation is the outcome of activating one component.
type Activation struct {
	ID            string
	Component     string
	ComponentType string
	Status        stores.ActivationStatus

	// Base is the resolved metadata. It is empty unless the component resolved.
	Base meta.MetaBase

	// SecretBacked names the properties whose values came from a secret store.
	SecretBacked map[string]bool

	// Sandbox is the sandbox configuration of a resolved WASM component.
	Sandbox *wasmhost.Config

	// Policy is the admission result, nil when no policy engine is configured.
	Policy *policy.Result

	Err      error
	Duration time.Duration
}

// Activator resolves and admits components for one application.
type Activator struct {
	meta           *meta.Meta
	resolver       *secretstores.ReferenceResolver
	policy         *policy.Engine
	store          stores.Store
	metrics        *telemetry.Metrics
	tracer         *telemetry.Tracer
	logger         zerolog.Logger
	maxConcurrency int
	newID          func() string
}

// NewActivator creates an activator.
func NewActivator(opts Options) (*Activator, error) {
	if opts.Meta == nil {
		return nil, fmt.Errorf("activator requires metadata options")
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics, _ = telemetry.NewMetrics(telemetry.MetricsConfig{})
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer, _ = telemetry.NewTracer(telemetry.TracingConfig{}, "gantry", "", "")
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = secretstores.NewReferenceResolver(nil, nil, opts.Logger)
	}

	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	return &Activator{
		meta:           opts.Meta,
		resolver:       resolver,
		policy:         opts.Policy,
		store:          opts.Store,
		metrics:        metrics,
		tracer:         tracer,
		logger:         opts.Logger.With().Str("component", "activator").Str("app_id", opts.Meta.AppID()).Logger(),
		maxConcurrency: maxConcurrency,
		newID:          uuid.NewString,
	}, nil
}

// Authorize returns ErrNotAllowed unless comp is scoped to appID.
func (a *Activator) Authorize(comp *components.Component, appID string) error {
	if !comp.IsAppScoped(appID) {
		return fmt.Errorf("%w: component %s is scoped to %v, not %s", ErrNotAllowed, comp.Name(), comp.Scopes, appID)
	}
	return nil
}

// Activate resolves comp and evaluates admission policies against it. comp is
// not modified. Components not scoped to the application, and failed
// components with ignoreErrors set, are returned as skipped with a nil error.
// Denials are never skipped.
func (a *Activator) Activate(ctx context.Context, comp *components.Component) (*Activation, error) {
	start := time.Now()
	act := &Activation{
		ID:            a.newID(),
		Component:     comp.Name(),
		ComponentType: comp.ComponentType(),
		SecretBacked:  secretstores.SecretBacked(comp),
	}

	logger := a.logger.With().
		Str("activation_id", act.ID).
		Str("component_name", act.Component).
		Str("component_type", act.ComponentType).
		Logger()

	ctx, span := a.tracer.StartActivationSpan(ctx, act.ID, act.Component, act.ComponentType)
	defer span.End()

	a.metrics.ActivationStarted()

	act.Err = a.run(ctx, comp, act)
	act.Duration = time.Since(start)

	switch {
	case act.Err == nil:
		act.Status = stores.ActivationSucceeded
	case errors.Is(act.Err, ErrDenied):
		act.Status = stores.ActivationDenied
	case errors.Is(act.Err, ErrNotAllowed), comp.IgnoreErrors():
		act.Status = stores.ActivationSkipped
	default:
		act.Status = stores.ActivationFailed
	}

	a.finish(ctx, span, act, logger)

	if act.Status == stores.ActivationSkipped {
		return act, nil
	}
	return act, act.Err
}

// run performs the activation stages, filling act as it goes.
func (a *Activator) run(ctx context.Context, comp *components.Component, act *Activation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := a.Authorize(comp, a.meta.AppID()); err != nil {
		return err
	}

	stageCtx, stage := a.tracer.StartStageSpan(ctx, "resolve_references")
	resolved, err := a.resolver.Resolve(stageCtx, comp, a.meta.AuthSecretStoreOrDefault(comp))
	a.recordReferences(comp, err)
	endStage(stage, err)
	if err != nil {
		return err
	}

	_, stage = a.tracer.StartStageSpan(ctx, "build_metadata")
	base, err := a.meta.ToBaseMetadata(resolved)
	endStage(stage, err)
	if err != nil {
		if meta.IsPodNameNotSet(err) {
			a.metrics.RecordPlaceholderFailure(meta.ErrCodePodNameNotSet)
		}
		return err
	}
	act.Base = base

	if meta.IsWASMComponentType(comp.ComponentType()) {
		if a.meta.StrictSandbox() {
			a.metrics.RecordSandboxEnforcement(comp.ComponentType())
		}
		cfg, err := wasmhost.ConfigFromMetadata(base)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSandbox, err)
		}
		act.Sandbox = &cfg
	}

	if a.policy == nil {
		return nil
	}

	stageCtx, stage = a.tracer.StartStageSpan(ctx, "evaluate_policies")
	result, err := a.policy.EvaluateActivation(stageCtx, policy.NewActivationInput(resolved, base, a.meta))
	endStage(stage, err)
	if err != nil {
		return fmt.Errorf("failed to evaluate policies: %w", err)
	}
	act.Policy = result

	for _, v := range result.Violations {
		a.metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
	}
	for _, v := range result.Warnings {
		a.metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
	}

	if !result.Allowed {
		v := result.Violations[0]
		return fmt.Errorf("%w: %s: %s", ErrDenied, v.Policy, v.Message)
	}
	return nil
}

// recordReferences counts reference lookups. On failure every reference of
// comp is counted as failed since the resolver stops at the first error.
func (a *Activator) recordReferences(comp *components.Component, err error) {
	for _, item := range comp.NameValuePairs() {
		switch source := item.Source(); source {
		case components.SourceSecretRef, components.SourceEnvRef:
			a.metrics.RecordSecretResolution(string(source), err)
		}
	}
}

// finish records the activation in the store, metrics and span.
func (a *Activator) finish(ctx context.Context, span trace.Span, act *Activation, logger zerolog.Logger) {
	a.metrics.RecordActivation(act.ComponentType, string(act.Status), act.Duration)

	span.SetAttributes(
		telemetry.AttrActivationStatus.String(string(act.Status)),
		telemetry.AttrAppID.String(a.meta.AppID()),
		telemetry.AttrNamespace.String(a.meta.Namespace()),
		telemetry.AttrPropertyCount.Int(act.Base.Len()),
	)

	record := &stores.Activation{
		ID:            act.ID,
		Component:     act.Component,
		ComponentType: act.ComponentType,
		AppID:         a.meta.AppID(),
		Namespace:     a.meta.Namespace(),
		Status:        act.Status,
		PropertyCount: act.Base.Len(),
		Duration:      act.Duration,
	}

	if act.Err != nil {
		code := ErrorCode(act.Err)
		msg := act.Err.Error()
		record.Error = &msg
		record.ErrorCode = &code

		a.metrics.RecordError(errorClass(act.Err), code)
		span.SetAttributes(telemetry.AttrErrorCode.String(code))
		telemetry.RecordError(span, act.Err)

		event := logger.Error()
		if act.Status == stores.ActivationSkipped {
			event = logger.Warn()
		}
		event.Err(act.Err).
			Str("status", string(act.Status)).
			Str("error_code", code).
			Dur("duration", act.Duration).
			Msg("Component activation did not succeed")
	} else {
		telemetry.RecordSuccess(span)
		logger.Info().
			Int("properties", act.Base.Len()).
			Dur("duration", act.Duration).
			Msg("Component activated")
	}

	if a.store == nil {
		return
	}
	// History is best effort; a store failure never fails the activation.
	if err := a.store.RecordActivation(context.WithoutCancel(ctx), record); err != nil {
		logger.Warn().Err(err).Msg("Failed to record activation")
	}
}

// ActivateAll activates comps with at most MaxConcurrency activations in flight.
// Each activation works on its own copy of the component. Results are in input
// order; the returned error joins every activation error.
func (a *Activator) ActivateAll(ctx context.Context, comps []*components.Component) ([]*Activation, error) {
	results := make([]*Activation, len(comps))
	errs := make([]error, len(comps))

	var g errgroup.Group
	g.SetLimit(a.maxConcurrency)

	for i, comp := range comps {
		g.Go(func() error {
			results[i], errs[i] = a.Activate(ctx, comp)
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

func endStage(span trace.Span, err error) {
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	span.End()
}
