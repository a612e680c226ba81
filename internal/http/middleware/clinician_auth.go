package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const clinicianClaimsKey contextKey = "clinicianClaims"

// Roles accepted on clinician routes.
const (
	RoleClinician = "clinician"
	RoleAdmin     = "admin"
)

// ClinicianClaims are the claims carried by care team tokens.
type ClinicianClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
}

// ClinicianJWT enforces an HMAC-signed JWT with a clinician or admin role.
func ClinicianJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "clinician auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := ClinicianClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Role != RoleClinician && claims.Role != RoleAdmin {
				http.Error(w, "clinician role required", http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), clinicianClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClinicianFromContext returns clinician JWT claims if present.
func ClinicianFromContext(ctx context.Context) (ClinicianClaims, bool) {
	claims, ok := ctx.Value(clinicianClaimsKey).(ClinicianClaims)
	return claims, ok
}

// ClinicianID returns the authenticated clinician's subject, or "".
func ClinicianID(r *http.Request) string {
	claims, ok := ClinicianFromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.Subject
}
