// Package observability wires the commhub daemon into its observability
// stack: OpenTelemetry tracing exported over OTLP gRPC, metrics exposed
// through the Prometheus exporter, trace-correlated structured logging,
// and an HTTP health endpoint.
//
// # Setup
//
//	obs, err := observability.New(ctx, observability.Config{
//	    ServiceName:       "commhub",
//	    ServiceVersion:    "1.0.0",
//	    Environment:       "production",
//	    CollectorEndpoint: "otel-collector:4317",
//	    LogLevel:          slog.LevelInfo,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer obs.Shutdown(ctx)
//	slog.SetDefault(obs.Logger)
//
// New installs the tracer and meter providers globally, so packages that
// resolve instruments through otel.Tracer and otel.Meter need no further
// wiring.
//
// # Logging
//
// LogHandler is a slog.Handler producing one JSON object per record. When
// the calling context carries an active span, the record includes the
// trace_id and span_id, which is what links a log line to its trace in the
// backend. Records pass through a bounded buffer; on overflow the record
// is dropped and logs_dropped_total is incremented, so a slow log sink
// cannot stall the hub.
//
// # Health
//
// HealthServer serves /health and /ready with the aggregated results of
// the registered checkers, and /metrics with the Prometheus scrape
// payload. CollectorHealthChecker reports the connectivity state of the
// gRPC connection to the OTLP collector. Additional endpoints register
// through Handle before Start.
//
// # System Metrics
//
// MetricsManager samples goroutine count, heap and process memory, and GC
// pause time. StartTicker keeps the gauges fresh for the scrape endpoint.
package observability
