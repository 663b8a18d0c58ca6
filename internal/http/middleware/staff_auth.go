package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wolfman30/clinic-agenda/internal/session"
)

// StaffClaims is the token issued by the login front end.
type StaffClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// StaffJWT admits requests carrying an HMAC-signed staff token and stores
// the resulting session.Identity on the request context. The display name
// comes from the name claim, falling back to the subject.
func StaffJWT(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "staff auth not configured", http.StatusUnauthorized)
				return
			}
			raw, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			var claims StaffClaims
			token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			name := strings.TrimSpace(claims.Name)
			if name == "" {
				name = claims.Subject
			}
			ctx := session.WithIdentity(r.Context(), session.Identity{Authenticated: true, DisplayName: name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}
