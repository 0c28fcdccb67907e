// SPDX-FileCopyrightText: Copyright 2025 Guidepost, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session checks whether a token's role claims still match the
// live identity-provider record. A token issued before a role change
// keeps its old claims until the client refreshes it; this package
// detects that lag and reports it without, by default, blocking anyone.
package session

import (
	"context"
	"maps"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/guidepost-hq/guidepost/pkg/auth"
	"github.com/guidepost-hq/guidepost/pkg/clerk"
	"github.com/guidepost-hq/guidepost/pkg/logger"
	"github.com/guidepost-hq/guidepost/pkg/telemetry"
)

// Header names announcing freshness outcomes to clients.
const (
	HeaderRefreshRecommended = "X-Session-Refresh-Recommended"
	HeaderStaleReason        = "X-Session-Stale-Reason"
	HeaderExpectedRole       = "X-Expected-Role"
	HeaderCurrentJWTRole     = "X-Current-JWT-Role"
	HeaderFresh              = "X-Session-Fresh"
)

// Stale reasons reported in the X-Session-Stale-Reason header.
const (
	ReasonRoleMismatch     = "role_mismatch"
	ReasonOrgRolesMismatch = "org_roles_mismatch"
)

// Result reports how the live identity record compares against the role
// claims embedded in a token.
type Result struct {
	IsFresh            bool            `json:"is_fresh"`
	ClerkPrimaryRole   string          `json:"clerk_primary_role"`
	JWTPrimaryRole     string          `json:"jwt_primary_role"`
	ClerkOrgRoles      auth.OrgRoleMap `json:"clerk_org_roles"`
	JWTOrgRoles        auth.OrgRoleMap `json:"jwt_org_roles"`
	RoleMismatch       bool            `json:"role_mismatch"`
	OrgRolesMismatch   bool            `json:"org_roles_mismatch"`
	RefreshRecommended bool            `json:"refresh_recommended"`
}

// StaleReasons lists which comparisons diverged, in a stable order.
func (r *Result) StaleReasons() []string {
	var reasons []string
	if r.RoleMismatch {
		reasons = append(reasons, ReasonRoleMismatch)
	}
	if r.OrgRolesMismatch {
		reasons = append(reasons, ReasonOrgRolesMismatch)
	}
	return reasons
}

// ApplyHeaders writes the freshness outcome onto response headers. A
// fresh session is announced with X-Session-Fresh; a stale one with the
// refresh-recommendation header set.
func (r *Result) ApplyHeaders(h http.Header) {
	if !r.RefreshRecommended {
		h.Set(HeaderFresh, "true")
		return
	}
	h.Set(HeaderRefreshRecommended, "true")
	h.Set(HeaderStaleReason, strings.Join(r.StaleReasons(), ","))
	h.Set(HeaderExpectedRole, r.ClerkPrimaryRole)
	h.Set(HeaderCurrentJWTRole, r.JWTPrimaryRole)
}

// Validator compares live identity-provider records with token claims.
type Validator struct {
	directory auth.Directory
	metrics   *telemetry.Metrics
}

// Option configures a Validator.
type Option func(*Validator)

// WithMetrics attaches pipeline metrics to the validator.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// NewValidator creates a Validator backed by the given directory.
func NewValidator(directory auth.Directory, opts ...Option) *Validator {
	v := &Validator{directory: directory}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check fetches the live user record for userID and compares its role
// metadata with the verified claims.
//
// The check fails open: when the live fetch errors, the session is
// reported fresh with no refresh recommended. Freshness is advisory and
// its own dependency being down must never be the reason a legitimate
// request fails.
func (v *Validator) Check(ctx context.Context, userID string, claims jwt.MapClaims) *Result {
	result := &Result{
		JWTPrimaryRole: auth.PrimaryRoleFromClaims(claims),
		JWTOrgRoles:    auth.OrgRolesFromClaims(claims),
		ClerkOrgRoles:  auth.OrgRoleMap{},
	}

	live, err := v.directory.User(ctx, userID)
	if err != nil {
		logger.Warnf("Session freshness check for %s skipped, live user fetch failed: %v", userID, err)
		result.IsFresh = true
		return result
	}

	result.ClerkPrimaryRole = livePrimaryRole(live)
	result.ClerkOrgRoles = liveOrgRoles(live)

	result.RoleMismatch = result.ClerkPrimaryRole != result.JWTPrimaryRole
	result.OrgRolesMismatch = !maps.Equal(result.ClerkOrgRoles, result.JWTOrgRoles)
	result.RefreshRecommended = result.RoleMismatch || result.OrgRolesMismatch
	result.IsFresh = !result.RefreshRecommended

	if result.RefreshRecommended {
		v.metrics.SessionStale()
		logger.Warnw("Session token claims lag the live identity record",
			"user_id", userID,
			"clerk_primary_role", result.ClerkPrimaryRole,
			"jwt_primary_role", result.JWTPrimaryRole,
			"role_mismatch", result.RoleMismatch,
			"org_roles_mismatch", result.OrgRolesMismatch,
		)
	}

	return result
}

func livePrimaryRole(user *clerk.User) string {
	if role, ok := user.PublicMetadata["primary_role"].(string); ok && role != "" {
		return role
	}
	return auth.RoleMember
}

func liveOrgRoles(user *clerk.User) auth.OrgRoleMap {
	raw, _ := user.PublicMetadata["organization_roles"].(map[string]any)
	return auth.NormalizeOrgRoles(raw)
}
