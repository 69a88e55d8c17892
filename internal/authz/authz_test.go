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

package authz_test

import (
	"testing"

	"github.com/opentrusty/console/internal/authz"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates that roles outside the organization role set never receive a permission.
// Scope: Unit Test
// Security: Fail-closed authorization (unknown input resolves to deny)
// Expected: HasPermission returns false for every permission on unknown roles.
// Test Case ID: AUT-01
func TestAuthz_HasPermission_UnknownRoleDenied(t *testing.T) {
	for _, role := range []authz.Role{"", "root", "Owner", "superadmin", "guest "} {
		for _, p := range authz.AllPermissions() {
			assert.False(t, authz.HasPermission(role, p), "role %q must not have %q", role, p)
		}
	}
}

// TestPurpose: Validates that owner is granted every defined permission and guest none.
// Scope: Unit Test
// Security: RBAC table invariants
// Expected: owner holds all permissions, guest holds none.
// Test Case ID: AUT-02
func TestAuthz_HasPermission_OwnerAllGuestNone(t *testing.T) {
	for _, p := range authz.AllPermissions() {
		assert.True(t, authz.HasPermission(authz.RoleOwner, p), "owner should have %q", p)
		assert.False(t, authz.HasPermission(authz.RoleGuest, p), "guest should not have %q", p)
	}
}

// TestPurpose: Validates that owner is a superset of every other role's permissions.
// Scope: Unit Test
// Security: Prevents a lower role from holding a capability the owner lacks
// Expected: Every permission granted to admin or member is granted to owner.
// Test Case ID: AUT-03
func TestAuthz_OwnerIsSuperset(t *testing.T) {
	for _, role := range []authz.Role{authz.RoleAdmin, authz.RoleMember, authz.RoleGuest} {
		for _, p := range authz.PermissionsFor(role) {
			assert.True(t, authz.HasPermission(authz.RoleOwner, p), "owner missing %q granted to %q", p, role)
		}
	}
}

// TestPurpose: Validates the role-to-permission mapping for admin and member.
// Scope: Unit Test
// Security: RBAC Permission Enforcement
// Expected: Admin manages members but cannot delete the organization; member can only view.
// Test Case ID: AUT-04
func TestAuthz_HasPermission_Table(t *testing.T) {
	tests := []struct {
		name       string
		role       authz.Role
		permission authz.Permission
		expected   bool
	}{
		{"admin manages members", authz.RoleAdmin, authz.PermManageOrganizationMembers, true},
		{"admin creates teams", authz.RoleAdmin, authz.PermCreateTeam, true},
		{"admin invites users", authz.RoleAdmin, authz.PermInviteUsers, true},
		{"admin cannot delete organization", authz.RoleAdmin, authz.PermDeleteOrganization, false},
		{"admin cannot manage billing", authz.RoleAdmin, authz.PermManageBilling, false},
		{"member views members", authz.RoleMember, authz.PermViewOrganizationMembers, true},
		{"member views teams", authz.RoleMember, authz.PermViewTeams, true},
		{"member cannot create teams", authz.RoleMember, authz.PermCreateTeam, false},
		{"member cannot invite", authz.RoleMember, authz.PermInviteUsers, false},
		{"guest cannot view teams", authz.RoleGuest, authz.PermViewTeams, false},
		{"owner deletes organization", authz.RoleOwner, authz.PermDeleteOrganization, true},
		{"unknown permission", authz.RoleOwner, authz.Permission("launch_rockets"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := authz.HasPermission(tt.role, tt.permission)
			if result != tt.expected {
				t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.permission, result, tt.expected)
			}
		})
	}
}

// TestPurpose: Validates that the permission table cannot be mutated through returned slices.
// Scope: Unit Test
// Security: Immutable RBAC table
// Expected: Modifying the slices returned by PermissionsFor and AllPermissions has no effect on later lookups.
// Test Case ID: AUT-05
func TestAuthz_PermissionsFor_ReturnsCopies(t *testing.T) {
	perms := authz.PermissionsFor(authz.RoleMember)
	for i := range perms {
		perms[i] = authz.PermDeleteOrganization
	}
	all := authz.AllPermissions()
	all[0] = "tampered"

	assert.False(t, authz.HasPermission(authz.RoleMember, authz.PermDeleteOrganization))
	assert.Equal(t, []authz.Permission{authz.PermViewOrganizationMembers, authz.PermViewTeams}, authz.PermissionsFor(authz.RoleMember))
	assert.NotContains(t, authz.AllPermissions(), authz.Permission("tampered"))
	assert.Nil(t, authz.PermissionsFor("unknown"))
	assert.Empty(t, authz.PermissionsFor(authz.RoleGuest))
}

// TestPurpose: Validates system role membership checks, including absent collections.
// Scope: Unit Test
// Security: Fail-closed on missing identity data
// Expected: nil and empty collections contain nothing; exact matches only.
// Test Case ID: AUT-06
func TestAuthz_HasSystemRole(t *testing.T) {
	assert.False(t, authz.HasSystemRole(nil, authz.SystemRoleOrganizationHead))
	assert.False(t, authz.HasSystemRole([]string{}, authz.SystemRoleOrganizationHead))
	assert.False(t, authz.HasSystemRole([]string{"organization head"}, authz.SystemRoleOrganizationHead))
	assert.True(t, authz.HasSystemRole([]string{"x", authz.SystemRoleOrganizationMember}, authz.SystemRoleOrganizationMember))
}

// TestPurpose: Validates that Organization Head and Organization Admin are equivalent for head-level checks.
// Scope: Unit Test
// Security: Platform escalation policy
// Expected: Head or Admin passes; Member or nothing does not.
// Test Case ID: AUT-07
func TestAuthz_IsOrganizationHead(t *testing.T) {
	assert.True(t, authz.IsOrganizationHead([]string{authz.SystemRoleOrganizationHead}))
	assert.True(t, authz.IsOrganizationHead([]string{authz.SystemRoleOrganizationAdmin}))
	assert.False(t, authz.IsOrganizationHead([]string{authz.SystemRoleOrganizationMember}))
	assert.False(t, authz.IsOrganizationHead(nil))
}

// TestPurpose: Validates the member management gate including platform escalation over local roles.
// Scope: Unit Test
// Security: Documented privilege escalation path (system role overrides organization role)
// Expected: owner/admin pass; member/guest/none pass only with a head-level system role.
// Test Case ID: AUT-08
func TestAuthz_CanManageOrganizationMembers(t *testing.T) {
	head := []string{authz.SystemRoleOrganizationHead}
	admin := []string{authz.SystemRoleOrganizationAdmin}

	tests := []struct {
		name        string
		role        authz.Role
		systemRoles []string
		expected    bool
	}{
		{"owner", authz.RoleOwner, nil, true},
		{"admin", authz.RoleAdmin, nil, true},
		{"member", authz.RoleMember, nil, false},
		{"guest without system roles", authz.RoleGuest, []string{}, false},
		{"no membership with head", "", head, true},
		{"guest with head", authz.RoleGuest, head, true},
		{"member with organization admin", authz.RoleMember, admin, true},
		{"unknown role with member system role", "root", []string{authz.SystemRoleOrganizationMember}, false},
		{"no membership no system roles", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, authz.CanManageOrganizationMembers(tt.role, tt.systemRoles))
			// View and team management share the same gate.
			assert.Equal(t, tt.expected, authz.CanViewOrganizationMembers(tt.role, tt.systemRoles))
			assert.Equal(t, tt.expected, authz.CanManageTeams(tt.role, tt.systemRoles))
		})
	}
}

// TestPurpose: Validates HasRole never matches on empty queries or missing subjects.
// Scope: Unit Test
// Security: Fail-closed role checks
// Expected: Empty role and nil subject return false; present roles return true.
// Test Case ID: AUT-09
func TestAuthz_HasRole(t *testing.T) {
	subject := &authz.Subject{ID: "user-1", Roles: []string{"admin", "billing"}}

	assert.True(t, authz.HasRole(subject, "admin"))
	assert.False(t, authz.HasRole(subject, ""))
	assert.False(t, authz.HasRole(subject, "owner"))
	assert.False(t, authz.HasRole(nil, "admin"))
	assert.False(t, authz.HasRole(&authz.Subject{}, "admin"))
}

// TestPurpose: Validates that Evaluate combines the table and the gates consistently.
// Scope: Unit Test
// Expected: Decision fields match the individual checks; unknown roles get an empty, non-nil permission list.
// Test Case ID: AUT-10
func TestAuthz_Evaluate(t *testing.T) {
	d := authz.Evaluate(authz.RoleGuest, []string{authz.SystemRoleOrganizationHead})
	assert.Equal(t, authz.RoleGuest, d.OrganizationRole)
	assert.Empty(t, d.Permissions)
	assert.NotNil(t, d.Permissions)
	assert.True(t, d.IsOrganizationHead)
	assert.True(t, d.CanManageOrganizationMembers)
	assert.True(t, d.CanViewOrganizationMembers)
	assert.True(t, d.CanManageTeams)

	d = authz.Evaluate("bogus", nil)
	assert.NotNil(t, d.Permissions)
	assert.Empty(t, d.Permissions)
	assert.False(t, d.CanManageOrganizationMembers)

	d = authz.Evaluate(authz.RoleOwner, nil)
	assert.ElementsMatch(t, authz.AllPermissions(), d.Permissions)
}

// TestPurpose: Validates ParseRole accepts only the four organization roles.
// Scope: Unit Test
// Expected: Known names parse, anything else reports false.
// Test Case ID: AUT-11
func TestAuthz_ParseRole(t *testing.T) {
	for _, s := range []string{"owner", "admin", "member", "guest"} {
		role, ok := authz.ParseRole(s)
		assert.True(t, ok)
		assert.Equal(t, authz.Role(s), role)
	}
	_, ok := authz.ParseRole("OWNER")
	assert.False(t, ok)
	_, ok = authz.ParseRole("")
	assert.False(t, ok)
}

// TestPurpose: Validates that decision metrics count escalated grants separately.
// Scope: Unit Test
// Expected: A guest with Organization Head increments allow and escalation counters.
// Test Case ID: AUT-12
func TestAuthz_RecordDecisions(t *testing.T) {
	allowBefore := testutil.ToFloat64(authz.DecisionsTotal.WithLabelValues(authz.CheckManageTeams, "allow"))
	escBefore := testutil.ToFloat64(authz.EscalationsTotal.WithLabelValues(authz.CheckManageTeams))

	authz.RecordDecisions(authz.Evaluate(authz.RoleGuest, []string{authz.SystemRoleOrganizationHead}))

	assert.Equal(t, allowBefore+1, testutil.ToFloat64(authz.DecisionsTotal.WithLabelValues(authz.CheckManageTeams, "allow")))
	assert.Equal(t, escBefore+1, testutil.ToFloat64(authz.EscalationsTotal.WithLabelValues(authz.CheckManageTeams)))

	denyBefore := testutil.ToFloat64(authz.DecisionsTotal.WithLabelValues(authz.CheckManageTeams, "deny"))
	authz.RecordDecisions(authz.Evaluate(authz.RoleMember, nil))
	assert.Equal(t, denyBefore+1, testutil.ToFloat64(authz.DecisionsTotal.WithLabelValues(authz.CheckManageTeams, "deny")))
}
