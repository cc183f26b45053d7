package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cloo-solutions/vocabtool/internal/api"
	"github.com/cloo-solutions/vocabtool/internal/domain"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

// ClientIDHeader carries the authenticated client to the outer logging and
// tracing middleware, which cannot see context values set further in.
const ClientIDHeader = "X-Client-ID"

// TokenValidator resolves a bearer token to a client identity.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// StaticToken accepts exactly one shared token.
type StaticToken string

func (s StaticToken) ValidateToken(_ context.Context, token string) (string, error) {
	if s == "" || subtle.ConstantTimeCompare([]byte(s), []byte(token)) != 1 {
		return "", domain.NewDomainError(domain.ErrCodeUnauthorized, "invalid token")
	}
	return "api", nil
}

func BearerAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			clientID, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			r.Header.Set(ClientIDHeader, clientID)
			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}
