// Package telemetry provides the observability stack of the gantry runtime.
//
// It combines structured logging (zerolog), distributed tracing (OpenTelemetry)
// and Prometheus metrics behind a single Telemetry value built from Config:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// # Logging
//
// Logger wraps zerolog. Packages that accept a zerolog.Logger receive
// tel.Logger.NewComponentLogger("name").Zerolog() and derive their own fields
// from it. Activation-scoped loggers carry app_id, activation_id and the
// component name and type.
//
// # Tracing
//
// Every activation runs inside a "component.activate" span with a child span
// per stage. Exporters are otlp (gRPC), stdout and none.
//
// # Metrics
//
// Metrics are registered on a private registry and served by
// StartMetricsServer. Recorders on a disabled Metrics are no-ops, so callers
// never check whether metrics are enabled.
//
//	gantry_activations_total{type,status}
//	gantry_activation_duration_seconds{type}
//	gantry_active_activations
//	gantry_secret_resolutions_total{source,result}
//	gantry_sandbox_enforcements_total{type}
//	gantry_placeholder_failures_total{code}
//	gantry_policy_violations_total{policy,severity}
//	gantry_components_loaded
//	gantry_errors_by_class_total{class}
//	gantry_errors_by_code_total{code}
//
// Property values never appear in logs, span attributes or metric labels.
package telemetry
