// Package v1 contains version 1 of the Guidepost API.
package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guidepost-hq/guidepost/pkg/auth"
	"github.com/guidepost-hq/guidepost/pkg/auth/gate"
	"github.com/guidepost-hq/guidepost/pkg/auth/session"
	"github.com/guidepost-hq/guidepost/pkg/logger"
)

// AuthRoutes defines the routes exposing the caller's resolved identity.
type AuthRoutes struct {
	freshness *session.Validator
}

// AuthRouter creates a new router for identity and session endpoints. It
// expects to be mounted behind the authentication middleware, which puts
// the resolved user and verified claims on the request context.
func AuthRouter(freshness *session.Validator) http.Handler {
	routes := AuthRoutes{
		freshness: freshness,
	}

	r := chi.NewRouter()
	r.With(gate.OptionalOrg).Get("/me", routes.getMe)
	r.Get("/session", routes.getSession)
	return r
}

// getMe
//
//	@Summary		Get the caller's identity
//	@Description	Returns the identity resolved for the presented token. When
//	@Description	X-Org-Id names an organization the caller belongs to, the
//	@Description	identity is scoped to it; otherwise the org fields are null.
//	@Tags			auth
//	@Produce		json
//	@Param			X-Org-Id	header	string	false	"Organization to scope the identity to"
//	@Success		200	{object}	identityResponse
//	@Failure		401	{string}	string	"Unauthorized"
//	@Router			/api/v1/auth/me [get]
func (*AuthRoutes) getMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not validate credentials", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(newIdentityResponse(user)); err != nil {
		logger.Errorf("Failed to encode identity response: %v", err)
		http.Error(w, "Failed to encode identity", http.StatusInternalServerError)
	}
}

// getSession
//
//	@Summary		Check session freshness
//	@Description	Compares the token's role claims against the live identity
//	@Description	record and reports any lag. With strict=true a stale session
//	@Description	is rejected with 401 instead of just reported.
//	@Tags			auth
//	@Produce		json
//	@Param			strict	query	bool	false	"Reject stale sessions"
//	@Success		200	{object}	session.Result
//	@Failure		401	{string}	string	"Session refresh required"
//	@Router			/api/v1/auth/session [get]
func (a *AuthRoutes) getSession(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not validate credentials", http.StatusUnauthorized)
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())

	result := a.freshness.Check(r.Context(), user.ClerkUserID, claims)
	result.ApplyHeaders(w.Header())

	if r.URL.Query().Get("strict") == "true" && result.RefreshRecommended {
		http.Error(w, "Session refresh required", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Errorf("Failed to encode session freshness response: %v", err)
		http.Error(w, "Failed to encode session freshness", http.StatusInternalServerError)
	}
}

// identityResponse represents the caller's effective identity.
type identityResponse struct {
	ClerkUserID       string          `json:"clerk_user_id"`
	PrimaryRole       string          `json:"primary_role"`
	OrganizationRoles auth.OrgRoleMap `json:"organization_roles"`
	OrgID             *string         `json:"org_id"`
	OrgRole           *string         `json:"org_role"`
	FirstName         string          `json:"first_name,omitempty"`
	LastName          string          `json:"last_name,omitempty"`
}

func newIdentityResponse(user *auth.AuthenticatedUser) identityResponse {
	resp := identityResponse{
		ClerkUserID:       user.ClerkUserID,
		PrimaryRole:       user.PrimaryRole,
		OrganizationRoles: user.OrganizationRoles,
		FirstName:         user.FirstName,
		LastName:          user.LastName,
	}
	// Unscoped requests report the org fields as null, not absent.
	if user.OrgID != "" {
		resp.OrgID = &user.OrgID
		resp.OrgRole = &user.OrgRole
	}
	return resp
}
