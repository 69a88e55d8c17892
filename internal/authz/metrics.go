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

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check names used as the "check" label.
const (
	CheckManageOrganizationMembers = "manage_organization_members"
	CheckViewOrganizationMembers   = "view_organization_members"
	CheckManageTeams               = "manage_teams"
)

var (
	// DecisionsTotal counts authorization decisions by check and outcome.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"check", "decision"},
	)

	// EscalationsTotal counts decisions granted only through a platform
	// system role.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_authz_escalations_total",
			Help: "Total number of decisions granted through system role escalation",
		},
		[]string{"check"},
	)
)

// RecordDecision records one decision outcome.
func RecordDecision(check string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	DecisionsTotal.WithLabelValues(check, decision).Inc()
}

// RecordDecisions records the member and team checks of d, including
// whether the grant came only from escalation.
func RecordDecisions(d Decision) {
	escalated := d.IsOrganizationHead && d.OrganizationRole != RoleOwner && d.OrganizationRole != RoleAdmin

	checks := []struct {
		name    string
		allowed bool
	}{
		{CheckManageOrganizationMembers, d.CanManageOrganizationMembers},
		{CheckViewOrganizationMembers, d.CanViewOrganizationMembers},
		{CheckManageTeams, d.CanManageTeams},
	}
	for _, c := range checks {
		RecordDecision(c.name, c.allowed)
		if c.allowed && escalated {
			EscalationsTotal.WithLabelValues(c.name).Inc()
		}
	}
}
