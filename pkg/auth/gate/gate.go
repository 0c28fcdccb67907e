// Package gate enforces organization-scoped access control on top of an
// already authenticated identity.
//
// A gate never re-verifies credentials; it consumes the identity produced
// by the authentication middleware and decides whether the request may
// proceed in the organization named by the X-Org-Id header. Outcomes are
// explicit Decision values rather than errors, and the translation to an
// HTTP response happens at the API layer.
package gate

import (
	"fmt"
	"net/http"

	"github.com/guidepost-hq/guidepost/pkg/auth"
	"github.com/guidepost-hq/guidepost/pkg/logger"
)

// Decision is the outcome of an authorization gate: either an authorized
// identity enriched with organization scope, or a rejection carrying an
// HTTP status and a message safe to show the client.
type Decision struct {
	// User is the enriched identity when the gate authorizes the request.
	User *auth.AuthenticatedUser

	// Status and Message describe the rejection otherwise.
	Status  int
	Message string
}

// Authorized reports whether the gate let the request through.
func (d Decision) Authorized() bool {
	return d.Status == 0
}

func authorized(user *auth.AuthenticatedUser) Decision {
	return Decision{User: user}
}

func rejected(status int, message string) Decision {
	return Decision{Status: status, Message: message}
}

// OrgRequired admits coaches and admins of the organization named by
// orgID and rejects everyone else.
//
// Checks run in order: a missing organization ID is a 400; a member
// primary role is a 403 before any membership lookup; an organization
// absent from the caller's role map, or held with a role other than
// coach or admin, is a 403. On success the returned identity carries the
// resolved OrgID and OrgRole.
func OrgRequired(user *auth.AuthenticatedUser, orgID string) Decision {
	if user == nil {
		// Gates run strictly after authentication; an absent identity is a
		// wiring fault, not a client error.
		logger.Error("org_required gate invoked without an authenticated user")
		return rejected(http.StatusInternalServerError, "Failed to validate organization access")
	}

	if orgID == "" {
		return rejected(http.StatusBadRequest, "Organization ID required")
	}

	if user.PrimaryRole == auth.RoleMember {
		return rejected(http.StatusForbidden, "Members cannot access organization-scoped endpoints")
	}

	role, ok := user.OrganizationRoles[orgID]
	if !ok {
		return rejected(http.StatusForbidden, fmt.Sprintf("Not a member of organization %s", orgID))
	}

	if !role.Elevated() {
		return rejected(http.StatusForbidden, fmt.Sprintf("Requires coach or admin role in organization %s", orgID))
	}

	return authorized(user.WithOrg(orgID, role.Role))
}

// OrgOptional resolves organization scope when the caller provides one
// and degrades to no scope otherwise.
//
// It never rejects for organization reasons: an absent or unknown
// organization yields the identity with empty OrgID and OrgRole, so
// endpoints open to every authenticated role still see organization
// context when a valid one was presented.
func OrgOptional(user *auth.AuthenticatedUser, orgID string) Decision {
	if user == nil {
		logger.Error("org_optional gate invoked without an authenticated user")
		return rejected(http.StatusInternalServerError, "Failed to validate organization access")
	}

	if orgID == "" {
		return authorized(user.WithOrg("", ""))
	}

	role, ok := user.OrganizationRoles[orgID]
	if !ok {
		return authorized(user.WithOrg("", ""))
	}

	return authorized(user.WithOrg(orgID, role.Role))
}
