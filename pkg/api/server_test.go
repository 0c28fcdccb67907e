package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oauth2-proxy/mockoidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidepost-hq/guidepost/pkg/auth"
	"github.com/guidepost-hq/guidepost/pkg/auth/gate"
	"github.com/guidepost-hq/guidepost/pkg/auth/jwks"
	authmw "github.com/guidepost-hq/guidepost/pkg/auth/middleware"
	"github.com/guidepost-hq/guidepost/pkg/auth/session"
	"github.com/guidepost-hq/guidepost/pkg/auth/token"
	"github.com/guidepost-hq/guidepost/pkg/clerk"
	"github.com/guidepost-hq/guidepost/pkg/logger"
	"github.com/guidepost-hq/guidepost/pkg/telemetry"
)

const testSecretKey = "sk_test_guidepost"

func startIssuer(t *testing.T) *mockoidc.MockOIDC {
	t.Helper()

	m, err := mockoidc.Run()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func signClaims(t *testing.T, m *mockoidc.MockOIDC, publicMetadata map[string]any) string {
	t.Helper()

	now := time.Now()
	tokenString, err := m.Keypair.SignJWT(jwt.MapClaims{
		"iss":            m.Issuer(),
		"sub":            "user_123",
		"iat":            now.Add(-time.Minute).Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"publicMetadata": publicMetadata,
	})
	require.NoError(t, err)
	return tokenString
}

// fakeClerkBackend serves the two backend API endpoints the pipeline reads.
// user and memberships are written in the wire shape, so tests control
// details like the "org:" role prefix.
func fakeClerkBackend(t *testing.T, user map[string]any, memberships []map[string]any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/users/{id}/organization_memberships", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testSecretKey, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"data":        memberships,
			"total_count": len(memberships),
		}))
	})
	mux.HandleFunc("GET /v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testSecretKey, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(user))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestServer stands up the whole pipeline, with only the issuer and the
// identity provider faked, and returns the running API server.
func newTestServer(t *testing.T, m *mockoidc.MockOIDC, clerkURL string, strict bool) *httptest.Server {
	t.Helper()
	logger.Initialize()

	clerkClient, err := clerk.New(testSecretKey,
		clerk.WithBaseURL(clerkURL),
		clerk.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}),
	)
	require.NoError(t, err)

	cache, err := jwks.New(jwks.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	require.NoError(t, err)

	registry := telemetry.NewRegistry()
	metrics := telemetry.NewMetrics(registry)
	freshness := session.NewValidator(clerkClient, session.WithMetrics(metrics))

	opts := []authmw.Option{
		authmw.WithFreshness(freshness),
		authmw.WithMetrics(metrics),
	}
	if strict {
		opts = append(opts, authmw.WithStrictSessions())
	}

	srv := httptest.NewServer(Router(Config{
		Authenticator: authmw.NewAuthenticator(
			token.NewVerifier(cache, token.WithExpectedIssuer(m.Issuer())),
			auth.NewResolver(clerkClient, auth.WithResolverMetrics(metrics)),
			opts...,
		),
		Freshness: freshness,
		Metrics:   metrics,
		Registry:  registry,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, rawURL, bearer, orgID string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if orgID != "" {
		req.Header.Set(gate.HeaderOrgID, orgID)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, body
}

type identityBody struct {
	ClerkUserID       string                       `json:"clerk_user_id"`
	PrimaryRole       string                       `json:"primary_role"`
	OrganizationRoles map[string]map[string]string `json:"organization_roles"`
	OrgID             *string                      `json:"org_id"`
	OrgRole           *string                      `json:"org_role"`
	FirstName         string                       `json:"first_name"`
	LastName          string                       `json:"last_name"`
}

func TestServer_PublicEndpoints(t *testing.T) {
	t.Parallel()

	m := startIssuer(t)
	backend := fakeClerkBackend(t, map[string]any{"id": "user_123"}, nil)
	srv := newTestServer(t, m, backend.URL, false)

	resp, body := get(t, srv.URL+"/health", "", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, body)

	resp, body = get(t, srv.URL+"/api/v1/version", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "build-")

	resp, body = get(t, srv.URL+"/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
	assert.Contains(t, string(body), "guidepost_http_requests_in_flight")
}

func TestServer_RequiresCredentials(t *testing.T) {
	t.Parallel()

	m := startIssuer(t)
	backend := fakeClerkBackend(t, map[string]any{"id": "user_123"}, nil)
	srv := newTestServer(t, m, backend.URL, false)

	for _, path := range []string{"/api/v1/auth/me", "/api/v1/auth/session", "/api/v1/org/summary"} {
		resp, body := get(t, srv.URL+path, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.Contains(t, string(body), "Authorization header required")
		assert.Contains(t, resp.Header.Get("WWW-Authenticate"), `Bearer realm="guidepost"`)
	}

	// An expired token names the problem in the challenge.
	expired, err := m.Keypair.SignJWT(jwt.MapClaims{
		"iss": m.Issuer(),
		"sub": "user_123",
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)

	resp, body := get(t, srv.URL+"/api/v1/auth/me", expired, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "Token has expired")
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), `error_description="Token has expired"`)
}

func TestServer_IdentityFlow(t *testing.T) {
	t.Parallel()

	m := startIssuer(t)
	// Live record: admin of org_1, promoted since the token was issued.
	backend := fakeClerkBackend(t,
		map[string]any{
			"id":         "user_123",
			"first_name": "Dana",
			"last_name":  "Reyes",
			"public_metadata": map[string]any{
				"primary_role": "coach",
				"organization_roles": map[string]any{
					"org_1": map[string]any{"role": "admin"},
				},
			},
		},
		[]map[string]any{{
			"organization":     map[string]any{"id": "org_1", "name": "Acme Coaching"},
			"role":             "org:admin",
			"public_user_data": map[string]any{"first_name": "Dana", "last_name": "Reyes"},
		}},
	)
	srv := newTestServer(t, m, backend.URL, false)
	bearer := signClaims(t, m, map[string]any{"primary_role": "member"})

	t.Run("identity is resolved from live memberships", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/auth/me", bearer, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var identity identityBody
		require.NoError(t, json.Unmarshal(body, &identity))
		assert.Equal(t, "user_123", identity.ClerkUserID)
		// The admin membership elevates the member token.
		assert.Equal(t, auth.RoleCoach, identity.PrimaryRole)
		assert.Equal(t, "admin", identity.OrganizationRoles["org_1"]["role"])
		assert.Nil(t, identity.OrgID)
		assert.Equal(t, "Dana", identity.FirstName)

		// The token's claims lag the live record, so every response warns.
		assert.Equal(t, "true", resp.Header.Get(session.HeaderRefreshRecommended))
		assert.Equal(t, "coach", resp.Header.Get(session.HeaderExpectedRole))
		assert.Equal(t, "member", resp.Header.Get(session.HeaderCurrentJWTRole))
	})

	t.Run("org header scopes the identity", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/auth/me", bearer, "org_1")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var identity identityBody
		require.NoError(t, json.Unmarshal(body, &identity))
		require.NotNil(t, identity.OrgID)
		require.NotNil(t, identity.OrgRole)
		assert.Equal(t, "org_1", *identity.OrgID)
		assert.Equal(t, "admin", *identity.OrgRole)
	})

	t.Run("org summary requires the header", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/org/summary", bearer, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, string(body), "Organization ID required")
	})

	t.Run("org summary rejects unknown organizations", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/org/summary", bearer, "org_9")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Contains(t, string(body), "Not a member of organization org_9")
	})

	t.Run("org summary reports the resolved scope", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/org/summary", bearer, "org_1")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var summary struct {
			OrgID   string `json:"org_id"`
			OrgRole string `json:"org_role"`
			Admin   bool   `json:"admin"`
		}
		require.NoError(t, json.Unmarshal(body, &summary))
		assert.Equal(t, "org_1", summary.OrgID)
		assert.Equal(t, "admin", summary.OrgRole)
		assert.True(t, summary.Admin)
	})

	t.Run("session endpoint reports the lag", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/auth/session", bearer, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result session.Result
		require.NoError(t, json.Unmarshal(body, &result))
		assert.False(t, result.IsFresh)
		assert.True(t, result.RoleMismatch)
		assert.True(t, result.RefreshRecommended)
	})

	t.Run("pipeline counters are exposed", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/metrics", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "guidepost_auth_tokens_verified_total")
		assert.Contains(t, string(body), "guidepost_auth_stale_sessions_total")
	})
}

func TestServer_MemberAccess(t *testing.T) {
	t.Parallel()

	m := startIssuer(t)
	backend := fakeClerkBackend(t,
		map[string]any{
			"id": "user_123",
			"public_metadata": map[string]any{
				"primary_role": "member",
				"organization_roles": map[string]any{
					"org_1": map[string]any{"role": "member"},
				},
			},
		},
		[]map[string]any{{
			"organization":     map[string]any{"id": "org_1", "name": "Acme Coaching"},
			"role":             "org:member",
			"public_user_data": map[string]any{"first_name": "Sam", "last_name": "Okafor"},
		}},
	)
	srv := newTestServer(t, m, backend.URL, false)
	// Older token shape: org roles as bare strings.
	bearer := signClaims(t, m, map[string]any{
		"primary_role":       "member",
		"organization_roles": map[string]any{"org_1": "member"},
	})

	t.Run("members are blocked from org endpoints", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/org/summary", bearer, "org_1")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Contains(t, string(body), "Members cannot access organization-scoped endpoints")
	})

	t.Run("optional org scope still enriches members", func(t *testing.T) {
		resp, body := get(t, srv.URL+"/api/v1/auth/me", bearer, "org_1")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var identity identityBody
		require.NoError(t, json.Unmarshal(body, &identity))
		assert.Equal(t, auth.RoleMember, identity.PrimaryRole)
		require.NotNil(t, identity.OrgID)
		assert.Equal(t, "org_1", *identity.OrgID)
		assert.Equal(t, "member", *identity.OrgRole)

		// Role claims match the live record, so the session is fresh.
		assert.Equal(t, "true", resp.Header.Get(session.HeaderFresh))
	})
}

func TestServer_ClerkOutageFallsBackToClaims(t *testing.T) {
	t.Parallel()

	m := startIssuer(t)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)
	srv := newTestServer(t, m, broken.URL, false)

	bearer := signClaims(t, m, map[string]any{
		"primary_role": "coach",
		"organization_roles": map[string]any{
			"org_1": map[string]any{"role": "coach"},
		},
	})

	resp, body := get(t, srv.URL+"/api/v1/auth/me", bearer, "org_1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var identity identityBody
	require.NoError(t, json.Unmarshal(body, &identity))
	assert.Equal(t, auth.RoleCoach, identity.PrimaryRole)
	require.NotNil(t, identity.OrgID)
	assert.Equal(t, "org_1", *identity.OrgID)

	// Freshness cannot be checked, so it fails open.
	assert.Equal(t, "true", resp.Header.Get(session.HeaderFresh))

	// Organization gates still work off the claims-derived identity.
	resp, _ = get(t, srv.URL+"/api/v1/org/summary", bearer, "org_1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StrictSessions(t *testing.T) {
	t.Parallel()

	m := startIssuer(t)
	backend := fakeClerkBackend(t,
		map[string]any{
			"id":              "user_123",
			"public_metadata": map[string]any{"primary_role": "coach"},
		},
		nil,
	)
	srv := newTestServer(t, m, backend.URL, true)
	bearer := signClaims(t, m, map[string]any{"primary_role": "member"})

	resp, body := get(t, srv.URL+"/api/v1/auth/me", bearer, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "Session refresh required")
	assert.Equal(t, "true", resp.Header.Get(session.HeaderRefreshRecommended))
}
