// Package httptransport is the thin HTTP layer over the arbitration
// pipeline. Handlers delegate to domain services and only translate between
// headers and status codes; business logic stays out of this package.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"authgateway/internal/arbiter"
	"authgateway/internal/platform/config"
	"authgateway/internal/platform/health"
	"authgateway/internal/platform/middleware"
)

// Handler carries the collaborators the routes need.
type Handler struct {
	arbiter *arbiter.Service
	conf    *config.Config
	health  *health.Handler
	logger  *slog.Logger
}

// NewHandler builds the route handler set.
func NewHandler(svc *arbiter.Service, conf *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		arbiter: svc,
		conf:    conf,
		health:  health.New(),
		logger:  logger,
	}
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	// auth_request decision endpoints consumed by the HTTP proxy.
	r.Get("/api/auth", h.handleAuth)
	r.Get("/api/audit", h.handleAudit)

	r.Get("/api/health", h.health.HandleStatus)

	// Endpoints reached through the auth proxy, which adds the
	// X-Forwarded-* identity headers.
	r.Get("/api/proxied/session", h.handleProxiedSession)
	r.Method(http.MethodGet, "/api/proxied/metrics", promhttp.Handler())

	return r
}

// handleAuth verifies a request to a protected app for authorization.
// Responds 202 when allowed, 401 when not, or an auditor override code.
// The body is always empty.
func (h *Handler) handleAuth(w http.ResponseWriter, r *http.Request) {
	code := h.arbiter.Authorize(r.Context(), arbiter.RequestFrom(r))
	w.WriteHeader(code)
}

// handleAudit records a request to an audited app. Audited requests are
// always allowed unless the auditor overrides; upstreams of this kind
// implement their own authentication.
func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	code := h.arbiter.Audited(r.Context(), arbiter.RequestFrom(r))
	w.WriteHeader(code)
}
