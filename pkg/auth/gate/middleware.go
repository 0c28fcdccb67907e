package gate

import (
	"net/http"

	"github.com/guidepost-hq/guidepost/pkg/auth"
)

// HeaderOrgID is the request header naming the organization a request
// operates in.
const HeaderOrgID = "X-Org-Id"

// RequireOrg is HTTP middleware applying OrgRequired to every request,
// with the organization ID read from the X-Org-Id header. Rejections
// short-circuit with the decision's status and message.
func RequireOrg(next http.Handler) http.Handler {
	return middleware(next, OrgRequired)
}

// OptionalOrg is HTTP middleware applying OrgOptional to every request.
func OptionalOrg(next http.Handler) http.Handler {
	return middleware(next, OrgOptional)
}

func middleware(next http.Handler, decide func(*auth.AuthenticatedUser, string) Decision) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFromContext(r.Context())

		decision := decide(user, r.Header.Get(HeaderOrgID))
		if !decision.Authorized() {
			http.Error(w, decision.Message, decision.Status)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), decision.User)))
	})
}
