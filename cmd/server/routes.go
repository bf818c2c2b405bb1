package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/macromaster/ingest-server-go/internal/audit"
	"github.com/macromaster/ingest-server-go/internal/config"
	"github.com/macromaster/ingest-server-go/internal/handler"
	"github.com/macromaster/ingest-server-go/internal/live"
	"github.com/macromaster/ingest-server-go/internal/middleware"
	"github.com/macromaster/ingest-server-go/internal/service"
)

type services struct {
	sessions     *service.SessionService
	interactions *service.InteractionService
	metrics      *service.MetricsService
	maintenance  *service.MaintenanceService
	logs         *service.SystemLogService
}

type routerDeps struct {
	services  services
	broker    *live.Broker
	audit     *audit.Logger
	limiter   middleware.Limiter
	rateLimit int
}

func newRouter(deps routerDeps) http.Handler {
	sessionHandler := handler.NewSessionHandler(deps.services.sessions, deps.audit)
	ingestHandler := handler.NewIngestHandler(deps.services.interactions)
	metricsHandler := handler.NewMetricsHandler(deps.services.metrics, deps.services.interactions, deps.audit)
	maintenanceHandler := handler.NewMaintenanceHandler(deps.services.maintenance, deps.audit)
	logsHandler := handler.NewLogsHandler(deps.services.logs, deps.audit)
	eventsHandler := handler.NewEventsHandler(deps.broker, deps.services.metrics)
	wsHandler := handler.NewWSHandler(deps.broker, deps.services.metrics, deps.services.interactions, deps.audit)

	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Recoverer(deps.audit))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", handler.Health)
	r.Handle("/internal/prometheus", promhttp.Handler())

	// Streams stay open, so they sit outside the request timeout.
	r.Get("/events/{sessionId}", eventsHandler.ServeHTTP)
	r.Get("/ws", wsHandler.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(bodyLimitMiddleware.Handler)

		r.Group(func(r chi.Router) {
			if deps.limiter != nil && deps.rateLimit > 0 {
				r.Use(middleware.NewRateLimitMiddleware(deps.limiter, deps.rateLimit).Handler)
			}
			r.Mount("/ingest", ingestHandler.Routes())
			r.Mount("/session", sessionHandler.Routes())
		})

		r.Mount("/sessions", sessionHandler.ListRoutes())
		r.Get("/metrics/{sessionId}", metricsHandler.GetMetrics)
		r.Get("/interactions/{sessionId}", metricsHandler.GetInteractions)
		r.Mount("/maintenance", maintenanceHandler.Routes())
		r.Mount("/logs", logsHandler.Routes())
	})

	return r
}
