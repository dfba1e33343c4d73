// Package telemetry provides observability instrumentation for the runtime
// engine.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), and metrics (Prometheus) into a unified system for
// monitoring framework discovery, package registration and assembly
// execution.
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "mdruntime"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// The logger provides component-specific child loggers with domain field
// helpers:
//
//	logger := tel.Logger.NewComponentLogger("backend-cache")
//	logger.WithFramework("net/4.0").Debug("backend initialized")
//
// Every engine component accepts its telemetry dependencies explicitly; the
// no-op constructors (NewNopLogger, NewNopTracer, a nil *Metrics) make all
// instrumentation optional.
package telemetry
