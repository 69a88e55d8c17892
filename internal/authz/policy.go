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

import "slices"

// Authorization Principles:
// 1. Every check is fail-closed: missing data means "not permitted".
// 2. No check panics or errors, whatever the input.
// 3. A platform Organization Head or Organization Admin escalates over the
//    organization-scoped role in every member and team check below.

// HasPermission reports whether role is granted permission.
// Unknown roles are never granted anything.
func HasPermission(role Role, permission Permission) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, granted := set[permission]
	return granted
}

// HasSystemRole reports whether role is one of systemRoles.
func HasSystemRole(systemRoles []string, role string) bool {
	return slices.Contains(systemRoles, role)
}

// IsOrganizationHead reports whether systemRoles carry head-level escalation.
// Organization Admin is deliberately treated the same as Organization Head.
func IsOrganizationHead(systemRoles []string) bool {
	return HasSystemRole(systemRoles, SystemRoleOrganizationHead) ||
		HasSystemRole(systemRoles, SystemRoleOrganizationAdmin)
}

// CanManageOrganizationMembers gates member management for one organization.
//
// SECURITY: a platform Organization Head/Admin passes regardless of orgRole,
// including RoleGuest and no membership at all (empty orgRole). This is the
// platform escalation path and must not be narrowed without a policy change.
func CanManageOrganizationMembers(orgRole Role, systemRoles []string) bool {
	if orgRole == RoleOwner || orgRole == RoleAdmin {
		return true
	}
	return IsOrganizationHead(systemRoles)
}

// CanViewOrganizationMembers currently uses the manage gate: view is not
// narrower than manage.
func CanViewOrganizationMembers(orgRole Role, systemRoles []string) bool {
	return CanManageOrganizationMembers(orgRole, systemRoles)
}

// CanManageTeams uses the member management gate.
func CanManageTeams(orgRole Role, systemRoles []string) bool {
	return CanManageOrganizationMembers(orgRole, systemRoles)
}

// HasRole reports whether subject holds role. An empty role never matches.
func HasRole(subject *Subject, role string) bool {
	if subject == nil || role == "" {
		return false
	}
	return slices.Contains(subject.Roles, role)
}

// Evaluate builds the full decision for orgRole and systemRoles.
func Evaluate(orgRole Role, systemRoles []string) Decision {
	perms := PermissionsFor(orgRole)
	if perms == nil {
		perms = []Permission{}
	}
	return Decision{
		OrganizationRole:             orgRole,
		Permissions:                  perms,
		IsOrganizationHead:           IsOrganizationHead(systemRoles),
		CanManageOrganizationMembers: CanManageOrganizationMembers(orgRole, systemRoles),
		CanViewOrganizationMembers:   CanViewOrganizationMembers(orgRole, systemRoles),
		CanManageTeams:               CanManageTeams(orgRole, systemRoles),
	}
}
