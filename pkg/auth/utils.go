package auth

import (
	"errors"
	"net/http"
	"strings"
)

// Common errors returned when extracting credentials from a request.
var (
	ErrAuthHeaderMissing       = errors.New("authorization header required")
	ErrInvalidAuthHeaderFormat = errors.New("invalid authorization header format")
	ErrEmptyBearerToken        = errors.New("empty bearer token")
)

// ExtractBearerToken extracts the bearer token from the request's
// Authorization header. The scheme is the case-sensitive "Bearer" prefix
// per RFC 6750.
func ExtractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrAuthHeaderMissing
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", ErrInvalidAuthHeaderFormat
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if strings.TrimSpace(token) == "" {
		return "", ErrEmptyBearerToken
	}

	return token, nil
}

// ExtractRequestToken returns the credential presented on a request.
// Most requests carry it in the Authorization header. WebSocket upgrade
// requests may carry it in a "token" query parameter instead, since the
// browser WebSocket API cannot set request headers.
func ExtractRequestToken(r *http.Request) (string, error) {
	token, err := ExtractBearerToken(r)
	if err == nil {
		return token, nil
	}

	if errors.Is(err, ErrAuthHeaderMissing) && isWebSocketUpgrade(r) {
		if qt := r.URL.Query().Get("token"); strings.TrimSpace(qt) != "" {
			return qt, nil
		}
	}

	return "", err
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// EscapeQuotes escapes backslashes and double quotes so a string can be
// embedded in a quoted-string HTTP header value.
func EscapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
