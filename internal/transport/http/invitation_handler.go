package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/opentrusty/console/internal/audit"
	"github.com/opentrusty/console/internal/observability/logger"
)

const (
	routeInvitation = "/invitation-proxy/{token}"

	maxInvitationBody = 1 << 20
)

// invitationEnvelope is the part of a backend invitation payload the proxy
// inspects. Everything else is relayed untouched.
type invitationEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (e invitationEnvelope) hasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}

// invitationPath maps the escaped wildcard of /invitation-proxy/* onto the
// backend invitations API. Every segment is unescaped once, checked and
// re-escaped.
func invitationPath(wildcard string) (string, bool) {
	segments := strings.Split(wildcard, "/")
	if segments[0] == "" {
		return "", false
	}

	var b strings.Builder
	b.WriteString("/api/invitations")
	for i, seg := range segments {
		if seg == "" && i == len(segments)-1 && i > 0 {
			// trailing slash
			continue
		}
		decoded, err := url.PathUnescape(seg)
		if err != nil || decoded == "" || decoded == "." || decoded == ".." || strings.Contains(decoded, "/") {
			return "", false
		}
		b.WriteString("/")
		b.WriteString(url.PathEscape(decoded))
	}
	return b.String(), true
}

// Invitation relays invitation lookups and responses to the backend
func (h *Handler) Invitation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	wildcard, _ := escapedWildcard(r, "/invitation-proxy/")
	target, ok := invitationPath(wildcard)
	if !ok {
		respondError(w, http.StatusBadRequest, "Token is required")
		return
	}

	ctx, span := h.tracer.StartProxy(r.Context(), routeInvitation, r.Method)
	defer span.End()
	auth := r.Header.Get("Authorization")

	if r.Method == http.MethodGet {
		resp, err := h.backend.Get(ctx, routeInvitation, target, auth)
		if err != nil {
			slog.ErrorContext(ctx, "failed to fetch invitation", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to fetch invitation")
			return
		}

		var env invitationEnvelope
		if err := json.Unmarshal(resp.Body, &env); err != nil || !env.hasData() {
			slog.InfoContext(ctx, "invitation not found", logger.BackendStatus(resp.StatusCode))
			respondError(w, http.StatusNotFound, "Invitation not found")
			return
		}
		respondBackend(w, resp)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInvitationBody))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	resp, err := h.backend.PostJSON(ctx, routeInvitation, target, auth, body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to submit invitation", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to process invitation")
		return
	}

	var env invitationEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil || !env.hasData() {
		message := env.Message
		if message == "" {
			message = "Failed to process invitation"
		}
		slog.WarnContext(ctx, "backend rejected invitation", logger.BackendStatus(resp.StatusCode))
		respondError(w, http.StatusBadRequest, message)
		return
	}

	h.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeInvitationAccepted,
		Resource:  routeInvitation,
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{"backend_status": resp.StatusCode},
	})
	respondBackend(w, resp)
}
