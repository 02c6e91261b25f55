package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"hashscope/internal/api/response"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Auth verifies bearer tokens issued by the identity provider. Tokens are
// HS256-signed; the subject claim carries the user id.
type Auth struct {
	secret []byte
}

func NewAuth(jwtSecret string) *Auth {
	return &Auth{secret: []byte(jwtSecret)}
}

// Authenticate validates the Authorization header and puts the user identity
// on the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			response.Error(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.secret, nil
		})
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			response.Error(w, http.StatusUnauthorized, "Token missing subject")
			return
		}
		userID, err := uuid.Parse(sub)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "Token subject is not a valid user id")
			return
		}

		ctx := SetUserID(r.Context(), userID)
		if email, ok := claims["email"].(string); ok {
			ctx = setUserEmail(ctx, email)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
