package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/juniorpayne/registry-core/internal/metrics"
	"github.com/juniorpayne/registry-core/internal/transport/middleware"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	Handler   *Handler
	Health    *HealthHandler
	Auth      middleware.Middleware
	RateLimit middleware.Middleware
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// NewRouter wires the registrar API.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	r.Get("/live", deps.Health.Live)
	r.Get("/ready", deps.Health.Ready)
	r.Get("/health", deps.Health.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit)
		}
		r.Use(deps.Auth)

		r.Post("/domains/check", deps.Handler.Check)
		r.Post("/domains/{name}/renew", deps.Handler.Renew)
		r.Delete("/domains/{name}", deps.Handler.Delete)
		r.Patch("/domains/{name}", deps.Handler.Update)
		r.Post("/domains/{name}/restore", deps.Handler.Restore)
		r.Post("/domains/{name}/transfer/approve", deps.Handler.TransferApprove)
		r.Post("/domains/{name}/transfer/reject", deps.Handler.TransferReject)
		r.Post("/domains/{name}/transfer/cancel", deps.Handler.TransferCancel)

		r.Get("/poll", deps.Handler.Poll)
		r.Delete("/poll/{id}", deps.Handler.AckPoll)
	})

	return r
}
