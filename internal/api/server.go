// ABOUTME: HTTP server struct, constructor, and handler wiring for fluxqueue.
// ABOUTME: Holds the job submission/query service and the observer gateway used by handlers.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxqueue/fluxqueue/internal/config"
	"github.com/fluxqueue/fluxqueue/internal/jobqueue"
	"github.com/fluxqueue/fluxqueue/internal/observer"
)

// Server holds the dependencies for the HTTP layer.
type Server struct {
	jobs    *jobqueue.Service
	gateway *observer.Gateway
	cfg     *config.Config
	pool    *pgxpool.Pool // nil-able, used only for /healthz
}

// NewServer creates a Server.
func NewServer(jobs *jobqueue.Service, gateway *observer.Gateway, cfg *config.Config, pool *pgxpool.Pool) *Server {
	return &Server{jobs: jobs, gateway: gateway, cfg: cfg, pool: pool}
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// ── Security headers ──────────────────────────────────────────────────────
	// Must be first so they appear on every response including errors.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	})

	// ── Standard chi middleware ───────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// 1 MB global body limit — protects against OOM from large job payloads.
	r.Use(middleware.RequestSize(1 << 20))
	r.Use(middleware.Recoverer)

	// ── Infrastructure endpoints ──────────────────────────────────────────────
	r.Get("/healthz", healthzHandler(srv.pool))
	r.Handle("/metrics", promhttp.Handler())

	// ── API v1 sub-router with huma (OpenAPI 3.1) ────────────────────────────
	apiRouter := chi.NewRouter()
	humaConfig := huma.DefaultConfig("fluxqueue API", "0.1.0")
	humaConfig.Info.Description = "Durable, multi-tenant job queue and worker runtime"
	humaAPI := humachi.New(apiRouter, humaConfig)
	registerJobRoutes(humaAPI, srv.jobs)
	registerDLQRoutes(humaAPI, srv.jobs)
	registerMetricsRoutes(humaAPI, srv.jobs)

	// ── Events websocket (chi, not huma — a protocol upgrade, not JSON) ──────
	apiRouter.With(srv.requireTenant).Get("/events", srv.eventsHandler)

	r.Mount("/api/v1", apiRouter)

	return r
}

// healthResponse is the JSON body for /healthz.
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

// healthzHandler returns 200 {"status":"ok"} when the DB is reachable,
// or 503 {"status":"degraded","db":"unavailable"} when it is not.
func healthzHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		statusCode := http.StatusOK

		if pool == nil {
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		} else if err := pool.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "healthz: db ping failed", "error", err)
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(r.Context(), "healthz: failed to encode response", "error", err)
		}
	}
}
