/**
 * @description
 * HTTP router for the SUP ledger. User wallet and draw routes need a bearer
 * JWT, treasury routes additionally need the admin role, and /internal routes
 * are reserved for the task verifier and the payout gateway.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: router and standard middleware.
 * - github.com/go-chi/cors: CORS handling.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/config"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/metrics"
	"go.uber.org/zap"
)

// NewRouter creates the chi router and registers every route.
func NewRouter(h *Handlers, cfg config.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger.With(zap.String("component", "http"))))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.HTTPRateLimitPerSecond > 0 {
		r.Use(NewRateLimiter(cfg.HTTPRateLimitPerSecond, logger.With(zap.String("component", "ratelimit"))).Handler)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))
		r.Post("/buy", h.BuyHandler)
		r.Post("/engage", h.EngageHandler)
		r.Post("/payouts/{id}/status", h.PayoutStatusHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(cfg.JWTSecret))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", h.BalanceHandler)
			r.Get("/transactions", h.HistoryHandler)
			r.Post("/cashout", h.CashoutHandler)
			r.Post("/vote", h.VoteHandler)
		})

		r.Route("/draw", func(r chi.Router) {
			r.Get("/rounds", h.ListRoundsHandler)
			r.Get("/rounds/{id}", h.GetRoundHandler)
			r.Post("/enter", h.EnterHandler)
		})

		r.Route("/treasury", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/overview", h.OverviewHandler)
			r.Post("/transfer", h.TransferHandler)
			r.Post("/emergency-freeze", h.FreezeHandler)
			r.Post("/lift-freeze", h.LiftFreezeHandler)
			r.Get("/alerts", h.ListAlertsHandler)
			r.Post("/alerts/{id}/resolve", h.ResolveAlertHandler)
			r.Post("/transactions/{id}/reverse", h.ReverseHandler)
			r.Post("/rounds", h.OpenRoundHandler)
			r.Post("/rounds/{id}/draw", h.DrawRoundHandler)
			r.Get("/rounds/{id}/verify", h.VerifyRoundHandler)
			r.Post("/audit", h.AuditHandler)
			r.Get("/audit-log", h.AuditLogHandler)
		})
	})

	return r
}
