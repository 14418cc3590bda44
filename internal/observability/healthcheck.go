package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck is one named probe result.
type HealthCheck struct {
	Name        string       `json:"name"`
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked time.Time    `json:"last_checked"`
	Duration    string       `json:"duration"`
}

// HealthResponse is the /health payload. Overall status is unhealthy as
// soon as any single check is.
type HealthResponse struct {
	Status  HealthStatus  `json:"status"`
	Checks  []HealthCheck `json:"checks"`
	Version string        `json:"version"`
	Uptime  string        `json:"uptime"`
}

// HealthChecker is one probe run on every /health request.
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
}

// HealthServer serves /health, /ready, and /metrics, plus any extra
// endpoints registered with Handle before Start.
type HealthServer struct {
	addr        string
	serviceName string
	version     string
	startTime   time.Time
	checkers    map[string]HealthChecker
	extra       map[string]http.Handler
	server      *http.Server
}

func NewHealthServer(addr, serviceName, version string) *HealthServer {
	return &HealthServer{
		addr:        addr,
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		checkers:    make(map[string]HealthChecker),
		extra:       make(map[string]http.Handler),
	}
}

// AddChecker registers a probe. Not safe to call after Start.
func (hs *HealthServer) AddChecker(name string, checker HealthChecker) {
	hs.checkers[name] = checker
}

// Handle registers an extra endpoint on the health mux. Not safe to call
// after Start.
func (hs *HealthServer) Handle(pattern string, handler http.Handler) {
	hs.extra[pattern] = handler
}

// Start serves until the listener fails or Shutdown is called.
func (hs *HealthServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	for pattern, handler := range hs.extra {
		mux.Handle(pattern, handler)
	}

	hs.server = &http.Server{
		Addr:    hs.addr,
		Handler: mux,
	}

	return hs.server.ListenAndServe()
}

func (hs *HealthServer) Shutdown(ctx context.Context) error {
	if hs.server != nil {
		return hs.server.Shutdown(ctx)
	}
	return nil
}

func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := HealthResponse{
		Status:  HealthStatusHealthy,
		Version: hs.version,
		Uptime:  time.Since(hs.startTime).String(),
		Checks:  make([]HealthCheck, 0, len(hs.checkers)),
	}

	for _, checker := range hs.checkers {
		check := checker.Check(ctx)
		response.Checks = append(response.Checks, check)
		if check.Status != HealthStatusHealthy {
			response.Status = HealthStatusUnhealthy
		}
	}

	statusCode := http.StatusOK
	if response.Status != HealthStatusHealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// BasicHealthChecker wraps a plain error-returning probe function.
type BasicHealthChecker struct {
	name    string
	checkFn func(ctx context.Context) error
}

func NewBasicHealthChecker(name string, checkFn func(ctx context.Context) error) *BasicHealthChecker {
	return &BasicHealthChecker{
		name:    name,
		checkFn: checkFn,
	}
}

func (bhc *BasicHealthChecker) Check(ctx context.Context) HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Name:        bhc.name,
		LastChecked: start,
	}

	if err := bhc.checkFn(ctx); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = err.Error()
	} else {
		check.Status = HealthStatusHealthy
	}

	check.Duration = time.Since(start).String()
	return check
}

// CollectorHealthChecker probes the gRPC connection to the OTLP collector.
// The client connection is created lazily on the first check and reused;
// a connection in shutdown or transient failure reports unhealthy without
// failing the process.
type CollectorHealthChecker struct {
	name     string
	endpoint string
	conn     *grpc.ClientConn
}

func NewCollectorHealthChecker(name, endpoint string) *CollectorHealthChecker {
	return &CollectorHealthChecker{
		name:     name,
		endpoint: endpoint,
	}
}

func (chc *CollectorHealthChecker) Check(ctx context.Context) HealthCheck {
	start := time.Now()

	check := HealthCheck{
		Name:        chc.name,
		LastChecked: start,
	}

	if chc.conn == nil {
		conn, err := grpc.NewClient(chc.endpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			check.Status = HealthStatusUnhealthy
			check.Message = err.Error()
			check.Duration = time.Since(start).String()
			return check
		}
		chc.conn = conn
	}

	chc.conn.Connect()
	switch state := chc.conn.GetState(); state {
	case connectivity.Ready, connectivity.Idle, connectivity.Connecting:
		check.Status = HealthStatusHealthy
		check.Message = state.String()
	default:
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("collector connection is %s", state)
	}

	check.Duration = time.Since(start).String()
	return check
}

// Close releases the checker's client connection.
func (chc *CollectorHealthChecker) Close() error {
	if chc.conn != nil {
		return chc.conn.Close()
	}
	return nil
}
