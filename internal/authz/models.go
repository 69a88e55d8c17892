package authz

// Subject is the caller identity as carried by the access token
type Subject struct {
	ID          string
	Email       string
	Roles       []string
	SystemRoles []string
}

// Decision is the authorization snapshot handed to the UI for one
// organization role and set of system roles
type Decision struct {
	OrganizationRole             Role         `json:"organization_role"`
	Permissions                  []Permission `json:"permissions"`
	IsOrganizationHead           bool         `json:"is_organization_head"`
	CanManageOrganizationMembers bool         `json:"can_manage_organization_members"`
	CanViewOrganizationMembers   bool         `json:"can_view_organization_members"`
	CanManageTeams               bool         `json:"can_manage_teams"`
}
