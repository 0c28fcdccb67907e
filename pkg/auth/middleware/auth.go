// Package middleware provides HTTP authentication middleware.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/guidepost-hq/guidepost/pkg/auth"
	"github.com/guidepost-hq/guidepost/pkg/auth/session"
	"github.com/guidepost-hq/guidepost/pkg/auth/token"
	gperrors "github.com/guidepost-hq/guidepost/pkg/errors"
	"github.com/guidepost-hq/guidepost/pkg/logger"
	"github.com/guidepost-hq/guidepost/pkg/telemetry"
)

// DefaultRealm is the RFC 6750 protection-space identifier announced in
// WWW-Authenticate challenges when no issuer is configured.
const DefaultRealm = "guidepost"

// Authenticator runs the request authentication pipeline: bearer token
// verification, identity resolution and, when a freshness validator is
// attached, a best-effort session freshness check.
//
// The pipeline order is fixed: verify, resolve, freshness. Verification
// failures always reject the request; resolution falls back to token
// claims internally and only fails on a structurally unusable token;
// freshness never rejects unless strict sessions are enabled.
type Authenticator struct {
	verifier  *token.Verifier
	resolver  *auth.Resolver
	freshness *session.Validator
	strict    bool
	realm     string
	metrics   *telemetry.Metrics
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithFreshness attaches a session freshness validator. Every
// authenticated request is then checked against the live identity record
// and the outcome announced via response headers.
func WithFreshness(v *session.Validator) Option {
	return func(a *Authenticator) { a.freshness = v }
}

// WithStrictSessions makes a recommended session refresh a hard 401
// instead of a logged warning. Only meaningful together with
// WithFreshness.
func WithStrictSessions() Option {
	return func(a *Authenticator) { a.strict = true }
}

// WithRealm sets the realm announced in WWW-Authenticate challenges.
// Deployments pinned to one issuer typically pass the issuer URL.
func WithRealm(realm string) Option {
	return func(a *Authenticator) { a.realm = realm }
}

// WithMetrics attaches pipeline metrics to the authenticator.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Authenticator) { a.metrics = m }
}

// NewAuthenticator creates an Authenticator from the verifier and
// resolver that every request must pass through.
func NewAuthenticator(verifier *token.Verifier, resolver *auth.Resolver, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		resolver: resolver,
		realm:    DefaultRealm,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Middleware wraps next with the authentication pipeline.
//
// Requests without usable credentials are rejected with a 401 and an
// RFC 6750 WWW-Authenticate challenge. Requests that cannot be verified
// because no key material is available at all get a 503. Everything else
// proceeds with the verified claims and the resolved identity stored in
// the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := auth.ExtractRequestToken(r)
		if err != nil {
			a.metrics.TokenRejected(telemetry.ReasonMissingToken)
			a.reject(w, gperrors.NewUnauthenticatedError(extractionMessage(err), err), false)
			return
		}

		claims, err := a.verifier.Verify(r.Context(), tokenString)
		if err != nil {
			reason, rejection := classifyVerifyError(err)
			a.metrics.TokenRejected(reason)
			a.reject(w, rejection, true)
			return
		}
		a.metrics.TokenVerified()

		user, err := a.resolver.Resolve(r.Context(), claims)
		if err != nil {
			a.metrics.TokenRejected(telemetry.ReasonInvalid)
			a.reject(w, gperrors.NewUnauthenticatedError("Could not validate credentials", err), true)
			return
		}
		logger.Debugw("Request authenticated", "user", user.ClerkUserID, "role", user.PrimaryRole)

		if a.freshness != nil {
			result := a.freshness.Check(r.Context(), user.ClerkUserID, claims)
			result.ApplyHeaders(w.Header())
			if a.strict && result.RefreshRecommended {
				a.metrics.TokenRejected(telemetry.ReasonStaleSession)
				a.reject(w, gperrors.NewSessionStaleError("Session refresh required", nil), true)
				return
			}
		}

		ctx := auth.WithClaims(r.Context(), claims)
		ctx = auth.WithUser(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// reject writes the rejection for err. 401 responses carry a
// WWW-Authenticate challenge; the RFC 6750 error fields are included
// only when credentials were actually presented.
func (a *Authenticator) reject(w http.ResponseWriter, err *gperrors.Error, presented bool) {
	status := gperrors.Code(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", a.challenge(presented, err.Message))
	}
	http.Error(w, err.Message, status)
}

// challenge builds an RFC 6750 compliant WWW-Authenticate header value.
func (a *Authenticator) challenge(includeError bool, description string) string {
	parts := []string{fmt.Sprintf(`realm="%s"`, auth.EscapeQuotes(a.realm))}

	if includeError {
		parts = append(parts, `error="invalid_token"`)
		if description != "" {
			parts = append(parts, fmt.Sprintf(`error_description="%s"`, auth.EscapeQuotes(description)))
		}
	}

	return "Bearer " + strings.Join(parts, ", ")
}

func extractionMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidAuthHeaderFormat):
		return "Invalid authorization header format"
	case errors.Is(err, auth.ErrEmptyBearerToken):
		return "Empty bearer token"
	default:
		return "Authorization header required"
	}
}

// classifyVerifyError folds a verification failure into the metric
// reason recorded for it and the typed error surfaced to the client.
// Everything that is not an expiry, an unknown key or a JWKS outage
// collapses to a generic credential failure, so responses never reveal
// why a forged token was rejected.
func classifyVerifyError(err error) (string, *gperrors.Error) {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return telemetry.ReasonExpired, gperrors.NewUnauthenticatedError("Token has expired", err)
	case errors.Is(err, token.ErrJWKSUnavailable):
		return telemetry.ReasonUpstream, gperrors.NewUpstreamUnavailableError("Authentication service unavailable", err)
	case errors.Is(err, token.ErrKeyNotFound):
		return telemetry.ReasonKeyNotFound, gperrors.NewUnauthenticatedError("Could not validate credentials", err)
	default:
		return telemetry.ReasonInvalid, gperrors.NewUnauthenticatedError("Could not validate credentials", err)
	}
}
