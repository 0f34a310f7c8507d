package testutil

import (
	"net/http"

	id "rolesync/pkg/domain"
	"rolesync/pkg/requestcontext"
)

// WithAccountID simulates the auth middleware for handlers tested without
// the router.
func WithAccountID(req *http.Request, accountID id.AccountID) *http.Request {
	return req.WithContext(requestcontext.WithAccountID(req.Context(), accountID))
}
