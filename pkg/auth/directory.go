package auth

//go:generate mockgen -destination=mocks/mock_directory.go -package=mocks -source=directory.go Directory

import (
	"context"

	"github.com/guidepost-hq/guidepost/pkg/clerk"
)

// Directory is the subset of the identity provider's API that the auth
// pipeline reads: live user records and organization memberships.
type Directory interface {
	// User fetches the live user record for the given user ID.
	User(ctx context.Context, userID string) (*clerk.User, error)

	// OrganizationMemberships lists all organization memberships for the
	// given user ID.
	OrganizationMemberships(ctx context.Context, userID string) ([]clerk.OrganizationMembership, error)
}
