// Package api serves the sizing and allocation engine over HTTP/JSON.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/newtron-network/fabricplan/pkg/metrics"
	"github.com/newtron-network/fabricplan/pkg/spec"
	"github.com/newtron-network/fabricplan/pkg/util"
)

// Route patterns, also used as the metrics route label.
const (
	RouteHealth   = "GET /healthz"
	RouteMetrics  = "GET /metrics"
	RouteDerive   = "POST /v1/topology/derive"
	RouteAllocate = "POST /v1/allocations"
	RouteAudit    = "POST /v1/allocations/audit"
	RouteExpand   = "POST /v1/ports/expand"
	RouteProfiles = "GET /v1/profiles"
	RouteProfile  = "GET /v1/profiles/{modelId}"
)

// ServerConfig contains configuration for the API server.
type ServerConfig struct {
	Address string
}

// Server is the HTTP API over a fixed switch profile catalog.
type Server struct {
	server  *http.Server
	catalog spec.Catalog
	metrics *metrics.Collector
}

// NewServer creates a server. collector may be nil.
func NewServer(config ServerConfig, catalog spec.Catalog, collector *metrics.Collector) *Server {
	s := &Server{
		catalog: catalog,
		metrics: collector,
		server: &http.Server{
			Addr:         config.Address,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
	s.server.Handler = s.Handler()
	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, RouteHealth, s.healthHandler())
	mux.Handle(RouteMetrics, s.metrics.Handler())

	s.handle(mux, RouteDerive, s.deriveHandler())
	s.handle(mux, RouteAllocate, s.allocateHandler())
	s.handle(mux, RouteAudit, s.auditHandler())
	s.handle(mux, RouteExpand, s.expandHandler())
	s.handle(mux, RouteProfiles, s.listProfilesHandler())
	s.handle(mux, RouteProfile, s.getProfileHandler())

	return Chain(RequestID, Logging, Recovery)(mux)
}

// handle registers h and counts its responses under route.
func (s *Server) handle(mux *http.ServeMux, route string, h http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		h(wrapped, r)
		s.metrics.ObserveHTTP(route, wrapped.statusCode)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		util.Infof("API server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("api server failed: %w", err)
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	util.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	return nil
}
