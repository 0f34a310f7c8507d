package httptransport

import (
	"net/http"

	"rolesync/internal/bootstrap"
	"rolesync/internal/roles/models"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/platform/httputil"
	"rolesync/pkg/requestcontext"
)

type BootstrapRoleRequest struct {
	RoleType   string         `json:"role_type"`
	Attributes map[string]any `json:"attributes"`
}

type BootstrapRequest struct {
	Roles []BootstrapRoleRequest `json:"roles"`
	// AllowDegraded keeps the primary role if a later one fails.
	AllowDegraded bool `json:"allow_degraded"`
}

// handleBootstrap creates the registration role set for the authenticated
// account. Failures still render the result so the client sees the counts.
func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req BootstrapRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if len(req.Roles) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "at least one role is required"))
		return
	}

	requests := make([]bootstrap.RoleRequest, 0, len(req.Roles))
	for _, rr := range req.Roles {
		roleType, err := models.ParseRoleType(rr.RoleType)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		attrs, err := models.DecodeAttributes(roleType, rr.Attributes)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		requests = append(requests, bootstrap.RoleRequest{RoleType: roleType, Attributes: attrs})
	}

	res, err := h.bootstrap.Bootstrap(ctx, requestcontext.AccountID(ctx), requests, bootstrap.Options{
		AllowDegraded: req.AllowDegraded,
	})
	if err != nil {
		if res == nil {
			httputil.WriteError(w, err)
			return
		}
		code := res.ErrorCode
		if code == "" {
			code = dErrors.CodeOf(err)
		}
		res.ErrorCode = code
		httputil.WriteJSON(w, httputil.StatusFor(code), res)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}
