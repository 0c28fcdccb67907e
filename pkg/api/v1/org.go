package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guidepost-hq/guidepost/pkg/auth"
	"github.com/guidepost-hq/guidepost/pkg/auth/gate"
	"github.com/guidepost-hq/guidepost/pkg/logger"
)

// OrgRoutes defines the organization-scoped routes.
type OrgRoutes struct{}

// OrgRouter creates a new router for organization-scoped endpoints. Every
// route requires an elevated role in the organization named by the
// X-Org-Id header.
func OrgRouter() http.Handler {
	routes := OrgRoutes{}

	r := chi.NewRouter()
	r.Use(gate.RequireOrg)
	r.Get("/summary", routes.getSummary)
	return r
}

// getSummary
//
//	@Summary		Summarize the caller's organization access
//	@Description	Returns the organization scope resolved for the caller and
//	@Description	their role within it.
//	@Tags			org
//	@Produce		json
//	@Param			X-Org-Id	header	string	true	"Organization to summarize"
//	@Success		200	{object}	orgSummaryResponse
//	@Failure		400	{string}	string	"Organization ID required"
//	@Failure		403	{string}	string	"Forbidden"
//	@Router			/api/v1/org/summary [get]
func (*OrgRoutes) getSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not validate credentials", http.StatusUnauthorized)
		return
	}

	resp := orgSummaryResponse{
		OrgID:       user.OrgID,
		OrgRole:     user.OrgRole,
		ClerkUserID: user.ClerkUserID,
		PrimaryRole: user.PrimaryRole,
		Admin:       user.OrgRole == auth.RoleAdmin,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Errorf("Failed to encode org summary response: %v", err)
		http.Error(w, "Failed to encode org summary", http.StatusInternalServerError)
	}
}

// orgSummaryResponse describes the caller's access within one organization.
type orgSummaryResponse struct {
	OrgID       string `json:"org_id"`
	OrgRole     string `json:"org_role"`
	ClerkUserID string `json:"clerk_user_id"`
	PrimaryRole string `json:"primary_role"`
	Admin       bool   `json:"admin"`
}
