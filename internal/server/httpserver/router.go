package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/worldsave/internal/storage/slotstore"
	"github.com/yndnr/worldsave/internal/telemetry/metric"
)

// RouterConfig holds the dependencies of the router.
type RouterConfig struct {
	// Store is the slot store the slot routes read from.
	Store slotstore.Store

	// Registry exposes /metrics when set.
	Registry *prometheus.Registry

	// Metrics counts slot infos loaded by the slot routes.
	Metrics *metric.Metrics

	// Feed exposes /events when set.
	Feed *Feed

	Logger *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := NewHandler(cfg.Store, cfg.Metrics, cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Get("/slots", h.handleListSlots)
	r.Get("/slots/{name}", h.handleGetSlot)

	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metric.Handler(cfg.Registry))
	}
	if cfg.Feed != nil {
		r.Method(http.MethodGet, "/events", cfg.Feed)
	}
	return r
}
