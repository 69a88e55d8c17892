package http

import (
	"log/slog"
	"net/http"
	"net/http/httputil"

	"github.com/opentrusty/console/internal/observability/logger"
)

// APIProxy relays /api/* to the backend unchanged. Set-Cookie headers on the
// way back are rewritten by the cookie middleware like any other response.
func (h *Handler) APIProxy() http.Handler {
	target := h.backend.BaseURL()
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: h.backend.Transport(),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.ErrorContext(r.Context(), "backend proxy error",
				logger.Path(r.URL.Path),
				logger.Error(err),
			)
			respondError(w, http.StatusBadGateway, "Backend unavailable")
		},
	}
}
