// Package auth authenticates bearer tokens and pins the account to the
// request context.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/platform/httputil"
	"rolesync/pkg/requestcontext"
)

// AccountAuthenticator resolves a bearer token to the account it was issued
// for.
type AccountAuthenticator interface {
	AccountID(tokenString string) (id.AccountID, error)
}

func RequireAuth(authenticator AccountAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			accountID, err := authenticator.AccountID(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAccountID(ctx, accountID)))
		})
	}
}
