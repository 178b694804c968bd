package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Context keys
type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated caller extracted from the JWT. Subject is
// recorded as the reviewer on approval resolutions.
type Identity struct {
	Subject string
	Role    string
}

// IsAdmin reports whether the identity carries the admin role
func (i *Identity) IsAdmin() bool {
	return i.Role == "admin"
}

// AuthMiddleware validates bearer JWTs issued by the platform's auth
// service. This subsystem does not mint tokens; it only verifies them.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// Authenticate validates the request token and adds the caller identity to
// the request context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		identity, err := m.parseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin ensures the authenticated caller is an admin
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r.Context())
		if identity == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !identity.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (m *AuthMiddleware) parseToken(tokenString string) (*Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || c.Subject == "" {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &Identity{Subject: c.Subject, Role: c.Role}, nil
}

// GetIdentity retrieves the caller identity from the request context
func GetIdentity(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey).(*Identity)
	return identity
}

// extractBearerToken pulls the token from the Authorization header
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
