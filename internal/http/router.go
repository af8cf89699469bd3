package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/gigconnect/internal/idempotency"
	"github.com/robertarktes/gigconnect/internal/observability"
	"github.com/robertarktes/gigconnect/internal/ratelimit"
)

type RouterConfig struct {
	Logger             observability.Logger
	Verifier           TokenVerifier
	Limiter            ratelimit.Limiter
	Idempotency        *idempotency.Idempotency
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	BookmarkPerMinute  int
}

func SetupRouter(h *Handlers, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware)
	r.Use(TracingMiddleware)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier))
		r.Use(RateLimitMiddleware(cfg.Limiter, "api", cfg.RateLimitPerMinute, cfg.Logger))

		r.Get("/v1/stats/artists/{id}", h.ArtistStats)
		r.Get("/v1/leaderboards", h.Leaderboard)
		r.Get("/v1/leaderboards/cities", h.Cities)

		r.Group(func(r chi.Router) {
			r.Use(RequireActor)
			r.Use(IdempotencyMiddleware(cfg.Idempotency, cfg.Logger))

			r.Route("/v1/matches", func(r chi.Router) {
				r.Post("/", h.RequestMatch)
				r.Delete("/", h.CancelMatch)
				r.Get("/", h.counterparts(h.matches.Mutual))
				r.Post("/accept", h.AcceptMatch)
				r.Get("/status", h.MatchStatus)
				r.Get("/incoming", h.counterparts(h.matches.Incoming))
				r.Get("/outgoing", h.counterparts(h.matches.Outgoing))
			})

			r.Route("/v1/gigs", func(r chi.Router) {
				r.Post("/", h.CreateGig)
				r.Get("/", h.ListGigs)
				r.Get("/{id}", h.GetGig)
				r.Patch("/{id}/metrics", h.SubmitMetrics)
				r.Post("/{id}/confirm", h.ConfirmGig)
				r.Patch("/{id}/status", h.UpdateGigStatus)
			})

			r.Route("/v1/bookmarks", func(r chi.Router) {
				r.With(RateLimitMiddleware(cfg.Limiter, "bookmarks", cfg.BookmarkPerMinute, cfg.Logger)).
					Post("/", h.CreateBookmark)
				r.Get("/", h.ListBookmarks)
				r.Delete("/{id}", h.DeleteBookmark)
			})

			r.Get("/v1/relationship-logs/export", h.ExportRelationshipLog)
		})
	})

	return r
}
