package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/kidfeed/internal/api/apierr"
	"github.com/mcoot/kidfeed/internal/model"
)

type contextKey string

const (
	accountContextKey contextKey = "account"
	tokenContextKey   contextKey = "token"
)

// SessionCookie is the cookie a browser client may carry its token in
const SessionCookie = "session"

// AccountResolver looks up the account behind a login token
type AccountResolver interface {
	Account(token string) (*model.Account, error)
}

// Auth creates authentication middleware. It only checks that the token names a
// live login; session budgets are enforced by the controller on every action.
func Auth(resolver AccountResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			account, err := resolver.Account(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, tokenContextKey, token)
			ctx = context.WithValue(ctx, accountContextKey, account)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken extracts the login token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	cookie, err := r.Cookie(SessionCookie)
	if err == nil {
		return cookie.Value
	}

	return ""
}

// GetToken returns the login token from the request context
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// GetAccount returns the authenticated account from the request context
func GetAccount(ctx context.Context) *model.Account {
	account, _ := ctx.Value(accountContextKey).(*model.Account)
	return account
}

// MustGetToken returns the login token or panics
func MustGetToken(ctx context.Context) string {
	token := GetToken(ctx)
	if token == "" {
		panic("no token in context - auth middleware not applied?")
	}
	return token
}
