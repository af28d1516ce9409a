package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lexroom/redline/pkg/permission"
)

// Claims are the JWT claims expected on review API tokens. The role flags
// are minted by the identity service that issues the token.
type Claims struct {
	jwt.RegisteredClaims
	RoleName   string `json:"role"`
	Admin      bool   `json:"admin"`
	CanApprove bool   `json:"can_approve"`
}

// JWTVerifier validates HMAC-signed bearer tokens.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with the given secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	if len(secret) == 0 {
		return nil
	}
	return &JWTVerifier{secret: secret}
}

// Verify parses and validates a token string.
func (v *JWTVerifier) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// publicPaths are endpoints that do not require authentication.
var publicPaths = []string{
	"/health",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// NewMiddleware creates JWT auth middleware. If verifier is nil, all
// non-public requests are rejected (fail closed).
func NewMiddleware(verifier *JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "Missing Authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeUnauthorized(w, r, "Invalid Authorization header format (expected 'Bearer <token>')")
				return
			}

			if verifier == nil {
				writeUnauthorized(w, r, "Authentication not configured")
				return
			}

			claims, err := verifier.Verify(parts[1])
			if err != nil {
				writeUnauthorized(w, r, "Invalid or expired token")
				return
			}
			if claims.Subject == "" {
				writeUnauthorized(w, r, "Token subject is required")
				return
			}

			principal := Principal{
				UserID: claims.Subject,
				Role: permission.Role{
					Name:       claims.RoleName,
					Admin:      claims.Admin,
					CanApprove: claims.CanApprove,
				},
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// writeUnauthorized emits an RFC 7807 problem response. Kept local so the
// auth package stays import-free of the api handlers it guards.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"type":     "https://lexroom.dev/problems/unauthorized",
		"title":    "Unauthorized",
		"status":   http.StatusUnauthorized,
		"detail":   detail,
		"instance": r.URL.Path,
	})
}
