// Package server exposes the gateway's operational HTTP surface: /health
// and /metrics. Modeled directly on the teacher's server/server.go
// http.ServeMux + handler-per-route shape, trimmed to the two routes
// spec.md §6 actually specifies.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/liquorice-gateway/gateway/internal/health"
	"github.com/liquorice-gateway/gateway/internal/logging"
)

type Server struct {
	port    int
	health  *health.Service
	metrics http.Handler
	log     *logging.Logger
}

func New(port int, healthSvc *health.Service, metricsHandler http.Handler, log *logging.Logger) *Server {
	return &Server{port: port, health: healthSvc, metrics: metricsHandler, log: log}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics)

	addr := fmt.Sprintf(":%d", s.port)
	s.log.Infof("HTTP server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := s.health.CheckAll()
	allHealthy := true
	for _, ok := range checks {
		if !ok {
			allHealthy = false
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if allHealthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}
