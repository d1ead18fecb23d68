package telemetry_test

import (
	"context"
	"time"

	"github.com/gantry-run/gantry/pkg/telemetry"
)

// Example_activationInstrumentation shows how the runtime instruments one activation.
func Example_activationInstrumentation() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = false

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx, span := tel.Tracer.StartActivationSpan(context.Background(), "act-1", "statestore", "state.redis")
	defer span.End()

	logger := tel.Logger.WithAppID("checkout").WithComponent("statestore", "state.redis")
	logger.Debug("activating component")

	tel.Metrics.ActivationStarted()
	tel.Metrics.RecordActivation("state.redis", "succeeded", 3*time.Millisecond)

	_ = ctx
}
