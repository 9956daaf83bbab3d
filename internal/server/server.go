// Package server is the network-facing tile serving engine.
//
// It answers tile requests addressed by chart name and slippy-map
// coordinates, converts the row to the archive's TMS convention exactly
// once, queries the resolved archive, and writes the binary tile with the
// framing the map toolkit expects. The engine is stateless per request;
// the chart registry is built before serving starts and shared read-only.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/beetlebugorg/enctiler/internal/registry"
)

// Server serves tiles and diagnostics from a loaded chart registry.
type Server struct {
	registry *registry.Registry
	log      *logrus.Logger
	metrics  *metrics
	prom     *prometheus.Registry
}

// New creates a server over an already-built registry.
func New(reg *registry.Registry, log *logrus.Logger) *Server {
	prom := prometheus.NewRegistry()
	prom.MustRegister(collectors.NewGoCollector())

	return &Server{
		registry: reg,
		log:      log,
		metrics:  newMetrics(prom),
		prom:     prom,
	}
}

// Handler returns the full HTTP handler, CORS middleware included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tiles/", s.handleTiles)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/charts", s.handleCharts)
	mux.HandleFunc("/charts/coverage", s.handleCoverage)
	mux.Handle("/metrics", promhttp.HandlerFor(s.prom, promhttp.HandlerOpts{}))

	return corsMiddleware(mux)
}

// corsMiddleware allows the map front end, which runs on its own origin,
// to fetch tiles and diagnostics.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
