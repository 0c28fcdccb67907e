package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/guidepost-hq/guidepost/pkg/logger"
	"github.com/guidepost-hq/guidepost/pkg/telemetry"
)

// ErrMissingSubject is returned when verified claims carry no usable 'sub'.
var ErrMissingSubject = errors.New("missing or invalid 'sub' claim")

// Resolver produces the caller's effective identity, preferring live
// organization-membership data from the identity provider over the
// possibly stale token claims.
type Resolver struct {
	directory Directory
	metrics   *telemetry.Metrics
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverMetrics attaches pipeline metrics to the resolver.
func WithResolverMetrics(m *telemetry.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a Resolver backed by the given directory.
func NewResolver(directory Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{directory: directory}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve builds the AuthenticatedUser for a set of verified claims.
//
// Role grants come from the live membership list when the directory is
// reachable: holding admin or coach in any organization forces the primary
// role to coach, so revocations and promotions take effect without waiting
// for a token refresh. When the directory call fails, role data falls back
// to the token's public metadata with a logged warning; the fallback never
// fails the request.
func (r *Resolver) Resolve(ctx context.Context, claims jwt.MapClaims) (*AuthenticatedUser, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrMissingSubject
	}

	user := &AuthenticatedUser{
		ClerkUserID:       sub,
		PrimaryRole:       PrimaryRoleFromClaims(claims),
		OrganizationRoles: OrgRolesFromClaims(claims),
	}

	memberships, err := r.directory.OrganizationMemberships(ctx, sub)
	if err != nil {
		logger.Warnf("Failed to list organization memberships for %s, falling back to token claims: %v", sub, err)
		r.metrics.IdentityFallback()
		return user, nil
	}

	liveRoles := make(OrgRoleMap, len(memberships))
	elevated := false
	for _, m := range memberships {
		role := OrgRole{Role: m.Role}
		liveRoles[m.Organization.ID] = role
		if role.Elevated() {
			elevated = true
		}
	}

	user.OrganizationRoles = liveRoles
	if elevated {
		user.PrimaryRole = RoleCoach
	}
	if len(memberships) > 0 {
		user.FirstName = memberships[0].PublicUserData.FirstName
		user.LastName = memberships[0].PublicUserData.LastName
	}

	return user, nil
}
