// SPDX-FileCopyrightText: Copyright 2025 Guidepost, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/guidepost-hq/guidepost/pkg/auth"
	"github.com/guidepost-hq/guidepost/pkg/auth/mocks"
	"github.com/guidepost-hq/guidepost/pkg/clerk"
	"github.com/guidepost-hq/guidepost/pkg/logger"
)

func claimsWithRoles(primaryRole string, orgRoles map[string]any) jwt.MapClaims {
	meta := map[string]any{}
	if primaryRole != "" {
		meta["primary_role"] = primaryRole
	}
	if orgRoles != nil {
		meta["organization_roles"] = orgRoles
	}
	return jwt.MapClaims{
		"sub":            "user_123",
		"publicMetadata": meta,
	}
}

func liveUser(primaryRole string, orgRoles map[string]any) *clerk.User {
	meta := map[string]any{}
	if primaryRole != "" {
		meta["primary_role"] = primaryRole
	}
	if orgRoles != nil {
		meta["organization_roles"] = orgRoles
	}
	return &clerk.User{ID: "user_123", PublicMetadata: meta}
}

func TestValidator_Check(t *testing.T) {
	t.Parallel()
	logger.Initialize()

	tests := []struct {
		name      string
		claims    jwt.MapClaims
		setupMock func(*mocks.MockDirectory)
		validate  func(*testing.T, *Result)
	}{
		{
			name:   "fresh session",
			claims: claimsWithRoles("coach", map[string]any{"org_1": map[string]any{"role": "coach"}}),
			setupMock: func(m *mocks.MockDirectory) {
				m.EXPECT().
					User(gomock.Any(), "user_123").
					Return(liveUser("coach", map[string]any{"org_1": map[string]any{"role": "coach"}}), nil)
			},
			validate: func(t *testing.T, r *Result) {
				t.Helper()
				require.True(t, r.IsFresh)
				require.False(t, r.RoleMismatch)
				require.False(t, r.OrgRolesMismatch)
				require.False(t, r.RefreshRecommended)
			},
		},
		{
			name: "shape differences are not a mismatch",
			// The token carries the bare-string shape, the live record the
			// object shape; both normalize to the same map
			claims: claimsWithRoles("coach", map[string]any{"org_1": "coach"}),
			setupMock: func(m *mocks.MockDirectory) {
				m.EXPECT().
					User(gomock.Any(), "user_123").
					Return(liveUser("coach", map[string]any{"org_1": map[string]any{"role": "coach"}}), nil)
			},
			validate: func(t *testing.T, r *Result) {
				t.Helper()
				require.True(t, r.IsFresh)
				require.False(t, r.OrgRolesMismatch)
			},
		},
		{
			name:   "primary role promoted since token was issued",
			claims: claimsWithRoles("member", nil),
			setupMock: func(m *mocks.MockDirectory) {
				m.EXPECT().
					User(gomock.Any(), "user_123").
					Return(liveUser("coach", nil), nil)
			},
			validate: func(t *testing.T, r *Result) {
				t.Helper()
				require.False(t, r.IsFresh)
				require.True(t, r.RoleMismatch)
				require.False(t, r.OrgRolesMismatch)
				require.True(t, r.RefreshRecommended)
				require.Equal(t, "coach", r.ClerkPrimaryRole)
				require.Equal(t, "member", r.JWTPrimaryRole)
			},
		},
		{
			name:   "organization roles diverged",
			claims: claimsWithRoles("coach", map[string]any{"org_1": "coach"}),
			setupMock: func(m *mocks.MockDirectory) {
				m.EXPECT().
					User(gomock.Any(), "user_123").
					Return(liveUser("coach", map[string]any{
						"org_1": "coach",
						"org_2": "admin",
					}), nil)
			},
			validate: func(t *testing.T, r *Result) {
				t.Helper()
				require.False(t, r.IsFresh)
				require.False(t, r.RoleMismatch)
				require.True(t, r.OrgRolesMismatch)
				require.True(t, r.RefreshRecommended)
			},
		},
		{
			name:   "missing metadata defaults to member on both sides",
			claims: claimsWithRoles("", nil),
			setupMock: func(m *mocks.MockDirectory) {
				m.EXPECT().
					User(gomock.Any(), "user_123").
					Return(&clerk.User{ID: "user_123"}, nil)
			},
			validate: func(t *testing.T, r *Result) {
				t.Helper()
				require.True(t, r.IsFresh)
				require.Equal(t, auth.RoleMember, r.ClerkPrimaryRole)
				require.Equal(t, auth.RoleMember, r.JWTPrimaryRole)
			},
		},
		{
			name:   "live fetch failure fails open",
			claims: claimsWithRoles("member", nil),
			setupMock: func(m *mocks.MockDirectory) {
				m.EXPECT().
					User(gomock.Any(), "user_123").
					Return(nil, errors.New("provider down"))
			},
			validate: func(t *testing.T, r *Result) {
				t.Helper()
				require.True(t, r.IsFresh)
				require.False(t, r.RefreshRecommended)
				require.False(t, r.RoleMismatch)
				require.False(t, r.OrgRolesMismatch)
				require.Equal(t, "member", r.JWTPrimaryRole)
				require.Empty(t, r.ClerkPrimaryRole)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockDirectory := mocks.NewMockDirectory(ctrl)
			tt.setupMock(mockDirectory)

			validator := NewValidator(mockDirectory)
			result := validator.Check(context.Background(), "user_123", tt.claims)

			require.NotNil(t, result)
			tt.validate(t, result)
		})
	}
}

func TestResult_StaleReasons(t *testing.T) {
	t.Parallel()

	assert.Empty(t, (&Result{}).StaleReasons())
	assert.Equal(t, []string{ReasonRoleMismatch}, (&Result{RoleMismatch: true}).StaleReasons())
	assert.Equal(t, []string{ReasonOrgRolesMismatch}, (&Result{OrgRolesMismatch: true}).StaleReasons())
	assert.Equal(t,
		[]string{ReasonRoleMismatch, ReasonOrgRolesMismatch},
		(&Result{RoleMismatch: true, OrgRolesMismatch: true}).StaleReasons())
}

func TestResult_ApplyHeaders(t *testing.T) {
	t.Parallel()

	t.Run("fresh", func(t *testing.T) {
		t.Parallel()

		h := http.Header{}
		r := &Result{IsFresh: true}
		r.ApplyHeaders(h)

		assert.Equal(t, "true", h.Get(HeaderFresh))
		assert.Empty(t, h.Get(HeaderRefreshRecommended))
	})

	t.Run("stale", func(t *testing.T) {
		t.Parallel()

		h := http.Header{}
		r := &Result{
			ClerkPrimaryRole:   "coach",
			JWTPrimaryRole:     "member",
			RoleMismatch:       true,
			RefreshRecommended: true,
		}
		r.ApplyHeaders(h)

		assert.Equal(t, "true", h.Get(HeaderRefreshRecommended))
		assert.Equal(t, ReasonRoleMismatch, h.Get(HeaderStaleReason))
		assert.Equal(t, "coach", h.Get(HeaderExpectedRole))
		assert.Equal(t, "member", h.Get(HeaderCurrentJWTRole))
		assert.Empty(t, h.Get(HeaderFresh))
	})
}
