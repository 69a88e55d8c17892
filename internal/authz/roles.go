// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

// -----------------------------------------------------------------------------
// Organization Role Constants
// A user holds at most one of these per organization.
// -----------------------------------------------------------------------------

// Role is a user's standing within a single organization.
type Role string

const (
	// RoleOwner has full control of the organization.
	RoleOwner Role = "owner"

	// RoleAdmin manages members and teams but cannot delete the organization.
	RoleAdmin Role = "admin"

	// RoleMember can see the organization's members and teams.
	RoleMember Role = "member"

	// RoleGuest holds no capabilities.
	RoleGuest Role = "guest"
)

// ParseRole converts a stored role name to a Role.
// Unknown or empty values report false.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleOwner, RoleAdmin, RoleMember, RoleGuest:
		return Role(s), true
	default:
		return "", false
	}
}

// -----------------------------------------------------------------------------
// System Role Constants
// Platform-wide designations carried on the user identity, independent of any
// organization membership.
// -----------------------------------------------------------------------------

const (
	SystemRoleOrganizationHead   = "Organization Head"
	SystemRoleOrganizationAdmin  = "Organization Admin"
	SystemRoleOrganizationMember = "Organization Member"
)

// -----------------------------------------------------------------------------
// Permission Constants
// Flat boolean capabilities. Never combined or parameterized.
// -----------------------------------------------------------------------------

// Permission is an atomic capability granted per Role.
type Permission string

const (
	PermManageOrganization        Permission = "manage_organization"
	PermDeleteOrganization        Permission = "delete_organization"
	PermManageBilling             Permission = "manage_billing"
	PermManageOrganizationMembers Permission = "manage_organization_members"
	PermViewOrganizationMembers   Permission = "view_organization_members"
	PermInviteUsers               Permission = "invite_users"
	PermRemoveUsers               Permission = "remove_users"
	PermCreateTeam                Permission = "create_team"
	PermManageTeams               Permission = "manage_teams"
	PermViewTeams                 Permission = "view_teams"
)

var allPermissions = []Permission{
	PermManageOrganization,
	PermDeleteOrganization,
	PermManageBilling,
	PermManageOrganizationMembers,
	PermViewOrganizationMembers,
	PermInviteUsers,
	PermRemoveUsers,
	PermCreateTeam,
	PermManageTeams,
	PermViewTeams,
}

// AllPermissions returns every defined permission.
func AllPermissions() []Permission {
	return append([]Permission(nil), allPermissions...)
}

// -----------------------------------------------------------------------------
// Role Permission Table
// Built once at package initialisation. There is no mutation API; callers
// only ever receive copies.
// -----------------------------------------------------------------------------

var rolePermissions = buildRolePermissions()

func buildRolePermissions() map[Role]map[Permission]struct{} {
	grants := map[Role][]Permission{
		// owner is always the full set so it stays a superset of every role.
		RoleOwner: allPermissions,
		RoleAdmin: {
			PermManageOrganization,
			PermManageOrganizationMembers,
			PermViewOrganizationMembers,
			PermInviteUsers,
			PermRemoveUsers,
			PermCreateTeam,
			PermManageTeams,
			PermViewTeams,
		},
		RoleMember: {
			PermViewOrganizationMembers,
			PermViewTeams,
		},
		RoleGuest: nil,
	}

	table := make(map[Role]map[Permission]struct{}, len(grants))
	for role, perms := range grants {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		table[role] = set
	}
	return table
}

// PermissionsFor returns the permissions bound to role, in definition order.
// Unknown roles return nil.
func PermissionsFor(role Role) []Permission {
	set, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	perms := make([]Permission, 0, len(set))
	for _, p := range allPermissions {
		if _, granted := set[p]; granted {
			perms = append(perms, p)
		}
	}
	return perms
}
