// Package auth provides authentication and authorization utilities.
package auth

import "fmt"

// Role names used across the platform. Coaches and admins hold elevated
// access to organization-scoped endpoints; everyone else is a member.
const (
	RoleMember = "member"
	RoleCoach  = "coach"
	RoleAdmin  = "admin"
)

// OrgRole is the caller's role within a single organization.
//
// Older tokens carry role grants as bare strings while newer ones use an
// object with a "role" field. NormalizeOrgRoles folds both shapes into
// this one type so downstream code never branches on shape again.
type OrgRole struct {
	Role string `json:"role"`
}

// Elevated reports whether the role grants coach-level access.
func (r OrgRole) Elevated() bool {
	return r.Role == RoleCoach || r.Role == RoleAdmin
}

// OrgRoleMap maps organization IDs to the caller's role in each.
type OrgRoleMap map[string]OrgRole

// NormalizeOrgRoles converts a raw organization-role claim value into an
// OrgRoleMap. It accepts both value shapes found in tokens in the wild,
// `{"org_1": {"role": "coach"}}` and `{"org_1": "coach"}`, and drops
// entries of any other shape. The result is never nil.
func NormalizeOrgRoles(raw map[string]any) OrgRoleMap {
	roles := make(OrgRoleMap, len(raw))
	for orgID, value := range raw {
		switch v := value.(type) {
		case string:
			roles[orgID] = OrgRole{Role: v}
		case map[string]any:
			if role, ok := v["role"].(string); ok {
				roles[orgID] = OrgRole{Role: role}
			}
		}
	}
	return roles
}

// AuthenticatedUser represents the caller's effective identity for a single
// request. It is built fresh per request by identity resolution and never
// cached across requests.
type AuthenticatedUser struct {
	// ClerkUserID is the unique identifier for the caller (from 'sub' claim).
	ClerkUserID string

	// PrimaryRole is the caller's platform-wide role after applying the
	// elevation rule: any admin or coach organization membership forces it
	// to coach.
	PrimaryRole string

	// OrganizationRoles maps each organization the caller belongs to onto
	// their role in it.
	OrganizationRoles OrgRoleMap

	// OrgID and OrgRole identify the organization scope resolved by an
	// authorization gate from the X-Org-Id header. Empty when the request
	// carries no organization scope.
	OrgID   string
	OrgRole string

	// FirstName and LastName come from the first organization membership's
	// embedded user data, when available.
	FirstName string
	LastName  string
}

// String returns a string representation of the AuthenticatedUser suitable
// for logging.
func (u *AuthenticatedUser) String() string {
	if u == nil {
		return "<nil>"
	}
	return fmt.Sprintf("AuthenticatedUser{ClerkUserID:%q, PrimaryRole:%q}", u.ClerkUserID, u.PrimaryRole)
}

// WithOrg returns a copy of the user enriched with the resolved
// organization scope.
func (u *AuthenticatedUser) WithOrg(orgID, orgRole string) *AuthenticatedUser {
	enriched := *u
	enriched.OrgID = orgID
	enriched.OrgRole = orgRole
	return &enriched
}
