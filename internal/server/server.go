// Package server provides the HTTP server for the theming add-on: the
// config API, theme assets, event stream, and the optional page proxy.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/mediatheme/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// ReadinessChecker verifies that the server is ready to serve traffic.
// Returns nil if ready, an error describing why not otherwise.
type ReadinessChecker func(ctx context.Context) error

// RouteRegistrar allows external packages to register routes on the server
// without creating import cycles (consumer-side interface).
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Server is the add-on HTTP server.
type Server struct {
	httpServer *http.Server
	cfg        Config
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
}

// New creates a new Server with middleware and routes.
// The fallback handler is optional; when set it receives every request no
// other route matches (the page proxy). When cfg.DevMode is true, Swagger
// UI is served at {base}/swagger/.
func New(cfg Config, logger *zap.Logger, ready ReadinessChecker, fallback http.Handler, routes ...RouteRegistrar) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    mux,
		ready:  ready,
	}

	s.registerRoutes()
	for _, r := range routes {
		r.RegisterRoutes(mux)
	}

	base := cfg.Base()
	if cfg.DevMode {
		mux.Handle("GET "+base+"/swagger/", httpSwagger.Handler(
			httpSwagger.URL(base+"/swagger/doc.json"),
		))
		logger.Info("swagger UI enabled (dev_mode)", zap.String("path", base+"/swagger/"))
	}

	if fallback != nil {
		mux.Handle("/", fallback)
	}

	rps, burst := cfg.RateLimitRPS, cfg.RateLimitBurst
	if rps <= 0 {
		rps = 50
	}
	if burst <= 0 {
		burst = 100
	}

	// Middleware chain: outermost listed first.
	middlewares := []Middleware{
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger, base, []string{"/healthz", "/readyz", "/metrics"}),
		SecurityHeadersMiddleware(base),
		VersionHeaderMiddleware,
		CORSMiddleware(base),
		RateLimitMiddleware(base, rps, burst, nil),
	}
	if cfg.ReadOnly {
		middlewares = append(middlewares, ReadOnlyMiddleware(cfg.Base()+"/api"))
	}

	handler := Chain(mux, middlewares...)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Proxied media streams and the event socket outlive a fixed write
		// deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// registerRoutes sets up the operational routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET "+s.cfg.Base()+"/api/health", s.handleHealth)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealthz reports liveness: it returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// handleReadyz checks readiness -- returns 200 if the server can serve traffic.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HealthResponse is the payload of GET {base}/api/health.
type HealthResponse struct {
	Status  string            `json:"status" example:"ok"`
	Service string            `json:"service" example:"mediatheme"`
	Version map[string]string `json:"version"`
}

// handleHealth returns service health with version information.
//
//	@Summary		Health check
//	@Description	Returns service health status with version information.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	server.Envelope{data=HealthResponse}
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteData(w, HealthResponse{
		Status:  "ok",
		Service: "mediatheme",
		Version: version.Map(),
	})
}
