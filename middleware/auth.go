package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"northcart-payment-engine/utils"
)

type contextKey string

// OperatorContextKey carries the authenticated operator subject.
const OperatorContextKey contextKey = "operator"

// OperatorClaims is the token payload for operator endpoints (refunds,
// card deletion).
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// OperatorAuth guards operator-only endpoints with a bearer token. Tokens
// must be HS256-signed with the configured secret and carry role=operator.
func OperatorAuth(secret, issuer string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				log.Printf("Operator endpoint hit but JWT_SECRET is not configured")
				utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Operator authentication is not configured")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Printf("Missing Authorization header from %s", r.RemoteAddr)
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Printf("Invalid Authorization header format from %s", r.RemoteAddr)
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}

			claims := &OperatorClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return key, nil
			}, jwt.WithIssuer(issuer))

			if err != nil || !token.Valid {
				log.Printf("Token validation failed from %s: %v", r.RemoteAddr, err)
				message := "Invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					message = "Token expired"
				}
				utils.SendErrorResponse(w, http.StatusUnauthorized, message)
				return
			}

			if claims.Role != "operator" {
				log.Printf("Non-operator token used on operator endpoint from %s", r.RemoteAddr)
				utils.SendErrorResponse(w, http.StatusForbidden, "This endpoint requires an operator token")
				return
			}

			ctx := context.WithValue(r.Context(), OperatorContextKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorFromContext returns the authenticated operator subject, or "".
func OperatorFromContext(ctx context.Context) string {
	if subject, ok := ctx.Value(OperatorContextKey).(string); ok {
		return subject
	}
	return ""
}
