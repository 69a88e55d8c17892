package http

import (
	"io/fs"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/opentrusty/console/internal/audit"
	"github.com/opentrusty/console/internal/backend"
	"github.com/opentrusty/console/internal/cookie"
	"github.com/opentrusty/console/internal/identity"
	"github.com/opentrusty/console/internal/observability/logger"
	"github.com/opentrusty/console/internal/observability/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	backend     *backend.Client
	verifier    *identity.Verifier
	auditLogger audit.Logger
	tracer      *tracing.Tracer
}

// NewHandler creates a new HTTP handler.
// verifier may be nil, in which case the permissions endpoint is not served.
func NewHandler(
	backendClient *backend.Client,
	verifier *identity.Verifier,
	auditLogger audit.Logger,
	tracer *tracing.Tracer,
) *Handler {
	if auditLogger == nil {
		auditLogger = audit.Discard{}
	}
	if tracer == nil {
		tracer = tracing.NewNoop()
	}
	return &Handler{
		backend:     backendClient,
		verifier:    verifier,
		auditLogger: auditLogger,
		tracer:      tracer,
	}
}

// RouterOptions configures the parts of the router that vary per deployment
type RouterOptions struct {
	// ExternalHost is the domain every outgoing cookie is pinned to.
	ExternalHost string
	// StaticFS holds the built UI bundle. Nil disables the SPA fallback.
	StaticFS fs.FS
	// RequestTimeout bounds each request's context. Zero means 60s.
	RequestTimeout time.Duration
	// UploadsPerMinute caps avatar uploads per client. Zero disables the cap.
	UploadsPerMinute int
	// TrustedProxies may supply the client address through X-Forwarded-For.
	TrustedProxies []netip.Prefix
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(ClientIPMiddleware(opts.TrustedProxies))
	if rateLimiter != nil {
		r.Use(RateLimitMiddleware(rateLimiter))
	}
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cookie.Middleware(opts.ExternalHost))

	// System
	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	// Avatar proxy. Method checks live in the handlers so that every
	// other method gets a JSON 405.
	r.HandleFunc("/avatar-proxy", h.GetAvatar)
	r.With(uploadLimit(opts.UploadsPerMinute)).HandleFunc("/avatar-proxy/upload", h.UploadAvatar)
	r.HandleFunc("/avatar-proxy/*", h.GetAvatar)

	// Invitation proxy
	r.HandleFunc("/invitation-proxy", h.Invitation)
	r.HandleFunc("/invitation-proxy/*", h.Invitation)

	// Backend API passthrough
	r.Handle("/api/*", h.APIProxy())

	if h.verifier != nil {
		r.Route("/console-api", func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Get("/permissions", h.GetPermissions)
		})
	}

	if opts.StaticFS != nil {
		r.Handle("/*", SPAHandler{StaticFS: opts.StaticFS})
	}

	return r
}

// uploadLimit throttles avatar uploads on top of the global limiter
func uploadLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return getClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusTooManyRequests, "Too many uploads")
		}),
	)
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "opentrusty-console",
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", logger.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"message": message,
	})
}

// respondBackend relays a backend response unchanged
func respondBackend(w http.ResponseWriter, resp *backend.Response) {
	w.Header().Set("Content-Type", resp.ContentType("application/json"))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// escapedWildcard returns the still-escaped request path after prefix.
// chi's wildcard param is already decoded when RawPath is empty, so handlers
// that unescape path segments read them from here instead.
func escapedWildcard(r *http.Request, prefix string) (string, bool) {
	return strings.CutPrefix(r.URL.EscapedPath(), prefix)
}
