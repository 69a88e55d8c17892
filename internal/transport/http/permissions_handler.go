package http

import (
	"log/slog"
	"net/http"

	"github.com/opentrusty/console/internal/audit"
	"github.com/opentrusty/console/internal/authz"
	"github.com/opentrusty/console/internal/observability/logger"
)

// PermissionsResponse is the evaluated capability set for the caller
type PermissionsResponse struct {
	UserID string `json:"user_id"`
	authz.Decision
}

// GetPermissions evaluates the caller's capabilities for an organization role.
// The organization role is supplied by the UI from the membership it already
// loaded; system roles come only from the verified token.
func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	subject := GetSubject(r.Context())
	if subject == nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	userID := GetUserID(r.Context())
	orgRole := authz.Role(r.URL.Query().Get("organization_role"))
	decision := authz.Evaluate(orgRole, subject.SystemRoles)
	authz.RecordDecisions(decision)

	slog.DebugContext(r.Context(), "permissions evaluated",
		logger.UserID(userID),
		logger.OrganizationRole(string(orgRole)),
	)
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypePermissionEvaluated,
		ActorID:   userID,
		Resource:  string(orgRole),
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
		Metadata: map[string]any{
			"is_organization_head":            decision.IsOrganizationHead,
			"can_manage_organization_members": decision.CanManageOrganizationMembers,
		},
	})

	respondJSON(w, http.StatusOK, PermissionsResponse{
		UserID:   userID,
		Decision: decision,
	})
}
