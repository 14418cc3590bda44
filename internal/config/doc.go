// Package config loads the commhub daemon configuration from environment
// variables with sensible defaults, optionally overlaid by a YAML file.
//
// # Quick Start
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.HubName, cfg.HealthAddress())
//
// # Environment Variables
//
// **Service Metadata**:
//   - SERVICE_NAME: Service name for observability (default: "commhub")
//   - SERVICE_VERSION: Service version (default: "1.0.0")
//   - ENVIRONMENT: Deployment environment (default: "development")
//   - LOG_LEVEL: Logging level - DEBUG, INFO, WARN, ERROR (default: "INFO")
//
// **Hub Settings**:
//   - COMMHUB_NAME: Hub instance name (default: "commhub")
//   - COMMHUB_DEFAULT_TIMEOUT: Request wait bound, Go duration syntax (default: "5m")
//   - COMMHUB_CONSENSUS_TIMEOUT: Consensus round bound (default: "60s")
//   - COMMHUB_SUPERVISOR_ROLES: Comma-separated escalation targets (default: "ceo,supervisor")
//   - COMMHUB_SHUTDOWN_GRACE: Handler drain window on shutdown (default: "10s")
//
// **Observability Stack**:
//   - OTEL_COLLECTOR_ENDPOINT: OTLP gRPC collector endpoint (default: "127.0.0.1:4317")
//   - COMMHUB_HEALTH_PORT: Health and metrics HTTP port (default: "8080")
//   - PROMETHEUS_PORT: Prometheus server port, for dashboard links (default: "9090")
//
// # YAML Overlay
//
// If COMMHUB_CONFIG points at a YAML file, its keys overlay the values
// loaded from the environment. Keys absent from the file keep their
// environment or default value:
//
//	hub_name: commhub-prod
//	log_level: WARN
//	supervisor_roles: [ceo, lead]
//	collector_endpoint: otel-collector.internal:4317
//
// # Thread Safety
//
// AppConfig is a read-only snapshot taken at startup. It is safe to read
// from multiple goroutines; do not modify fields after Load returns.
package config
