// SPDX-FileCopyrightText: Copyright 2025 Guidepost, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// UserContextKey is the key used to store the AuthenticatedUser in the
// request context.
//
// Using an empty struct as the key prevents collisions with other context
// keys, as each empty struct type is distinct even if they have the same
// name in different packages.
type UserContextKey struct{}

// ClaimsContextKey is the key used to store verified token claims in the
// request context.
type ClaimsContextKey struct{}

// WithUser stores an AuthenticatedUser in the context.
// If user is nil, the original context is returned unchanged.
//
// This is typically called by the authentication middleware after identity
// resolution to make the caller available to downstream handlers.
func WithUser(ctx context.Context, user *AuthenticatedUser) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, UserContextKey{}, user)
}

// UserFromContext retrieves the AuthenticatedUser from the context.
// Returns the user and true if present, nil and false otherwise.
func UserFromContext(ctx context.Context) (*AuthenticatedUser, bool) {
	user, ok := ctx.Value(UserContextKey{}).(*AuthenticatedUser)
	return user, ok
}

// WithClaims stores verified token claims in the context.
// If claims is nil, the original context is returned unchanged.
func WithClaims(ctx context.Context, claims jwt.MapClaims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, ClaimsContextKey{}, claims)
}

// ClaimsFromContext retrieves verified token claims from the context.
// Returns the claims and true if present, nil and false otherwise.
func ClaimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey{}).(jwt.MapClaims)
	return claims, ok
}
