// Package api exposes the agent's diagnostics surface: health, delivery
// stats, the consolidated report, and Prometheus metrics.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/pranaysuyash/caption-art-sub009/internal/budget"
	"github.com/pranaysuyash/caption-art-sub009/internal/monitor"
)

// Handler serves the ops endpoints.
type Handler struct {
	monitor *monitor.PerformanceMonitor
	logger  *logrus.Logger
	router  *mux.Router
	metrics http.Handler

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHandler creates the handler and registers its request metrics. A nil
// registerer uses the default registry.
func NewHandler(pm *monitor.PerformanceMonitor, logger *logrus.Logger, reg prometheus.Registerer) *Handler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	h := &Handler{
		monitor: pm,
		logger:  logger,
		router:  mux.NewRouter(),
	}

	h.requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_api_requests_total",
			Help: "Total ops API requests",
		},
		[]string{"method", "endpoint"},
	)
	h.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telemetry_api_request_duration_seconds",
			Help:    "Duration of ops API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	reg.MustRegister(h.requestCount, h.requestDuration)

	// /metrics must expose whatever registry the handler registered on
	h.metrics = promhttp.Handler()
	if g, ok := reg.(prometheus.Gatherer); ok {
		h.metrics = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}

	h.setupRoutes()
	return h
}

func (h *Handler) setupRoutes() {
	h.router.HandleFunc("/health", h.instrument("/health", h.handleHealth)).Methods("GET")
	h.router.HandleFunc("/stats", h.instrument("/stats", h.handleStats)).Methods("GET")
	h.router.HandleFunc("/report", h.instrument("/report", h.handleReport)).Methods("GET")
	h.router.HandleFunc("/violations", h.instrument("/violations", h.handleViolations)).Methods("GET")
	h.router.HandleFunc("/budget", h.instrument("/budget", h.handleBudgetUpdate)).Methods("PATCH")
	h.router.Handle("/metrics", h.metrics).Methods("GET")
}

// Router returns the configured router.
func (h *Handler) Router() *mux.Router {
	return h.router
}

func (h *Handler) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		h.requestCount.WithLabelValues(r.Method, endpoint).Inc()
		h.requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.monitor.Delivery().Stats())
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.monitor.Report())
}

func (h *Handler) handleViolations(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.monitor.Budgets().Violations())
}

// handleBudgetUpdate merges a partial budget into the live enforcer.
func (h *Handler) handleBudgetUpdate(w http.ResponseWriter, r *http.Request) {
	var patch budget.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.monitor.Budgets().UpdateBudget(patch)
	h.writeJSON(w, http.StatusOK, h.monitor.Budgets().Budget())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && h.logger != nil {
		h.logger.Warnf("failed to encode response: %v", err)
	}
}
