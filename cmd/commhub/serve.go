package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentcomm/commhub/hub"
	"github.com/agentcomm/commhub/internal/config"
	"github.com/agentcomm/commhub/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub daemon",
	Long: `Starts the hub with its health and metrics endpoint and blocks
until SIGINT or SIGTERM. Agents in the same process attach through the
hub API; the HTTP surface exposes /health, /ready, /metrics, and /hubz
for dashboards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, observability.Config{
		ServiceName:       cfg.ServiceName,
		ServiceVersion:    cfg.ServiceVersion,
		Environment:       cfg.Environment,
		CollectorEndpoint: cfg.CollectorEndpoint,
		LogLevel:          cfg.SlogLevel(),
	})
	if err != nil {
		return err
	}
	slog.SetDefault(obs.Logger)

	h, err := hub.New(ctx, hub.Config{
		Name:            cfg.HubName,
		DefaultTimeout:  cfg.DefaultTimeout,
		SupervisorRoles: cfg.SupervisorRoles,
		Logger:          obs.Logger,
	})
	if err != nil {
		return err
	}

	systemMetrics, err := observability.NewMetricsManager(obs.Meter)
	if err != nil {
		return err
	}
	systemMetrics.StartTicker(ctx, 30*time.Second)

	collectorCheck := observability.NewCollectorHealthChecker("otel_collector", cfg.CollectorEndpoint)
	defer collectorCheck.Close()

	healthServer := observability.NewHealthServer(cfg.HealthAddress(), cfg.ServiceName, cfg.ServiceVersion)
	healthServer.AddChecker("otel_collector", collectorCheck)
	healthServer.AddChecker("hub", observability.NewBasicHealthChecker("hub", func(ctx context.Context) error {
		h.Metrics()
		return nil
	}))
	healthServer.Handle("/hubz", hubStatusHandler(h))

	serveErr := make(chan error, 1)
	go func() {
		obs.Logger.InfoContext(ctx, "health server listening",
			slog.String("addr", cfg.HealthAddress()),
		)
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	obs.Logger.InfoContext(ctx, "hub running",
		slog.String("hub", h.Name()),
		slog.String("environment", cfg.Environment),
	)

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	obs.Logger.Info("shutting down", slog.String("hub", h.Name()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := h.Shutdown(cfg.ShutdownGrace); err != nil {
		obs.Logger.Warn("hub shutdown incomplete", slog.String("error", err.Error()))
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		obs.Logger.Warn("health server shutdown failed", slog.String("error", err.Error()))
	}
	return obs.Shutdown(shutdownCtx)
}

// hubStatusHandler serves the hub's counters and queue depths as JSON.
func hubStatusHandler(h *hub.Hub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(h.Metrics()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
