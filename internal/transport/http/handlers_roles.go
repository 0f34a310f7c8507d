package httptransport

import (
	"net/http"

	"rolesync/internal/resolution"
	"rolesync/internal/roles/models"
	"rolesync/internal/roles/service"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/platform/httputil"
	"rolesync/pkg/requestcontext"
)

type AddRoleRequest struct {
	RoleType   string         `json:"role_type"`
	Attributes map[string]any `json:"attributes"`
}

type VerifyRoleRequest struct {
	Token string `json:"token"`
}

type ResolveResponse struct {
	Success bool `json:"success"`
	*resolution.Result
}

type RoleResponse struct {
	Success bool         `json:"success"`
	Role    *models.Role `json:"role"`
}

type AddRoleResponse struct {
	Success          bool         `json:"success"`
	Role             *models.Role `json:"role"`
	VerificationSent bool         `json:"verification_sent"`
}

type ActivationResponse struct {
	Success     bool         `json:"success"`
	Role        *models.Role `json:"role"`
	Deactivated int          `json:"deactivated"`
	Consistent  bool         `json:"consistent"`
}

type RemovalResponse struct {
	Success    bool         `json:"success"`
	Removed    *models.Role `json:"removed"`
	Reassigned *models.Role `json:"reassigned,omitempty"`
}

type VerificationResponse struct {
	Success          bool `json:"success"`
	VerificationSent bool `json:"verification_sent"`
}

// handleResolve loads the account's roles, repairing the active-role
// invariant on the way.
func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.resolver.Resolve(ctx, requestcontext.AccountID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ResolveResponse{Success: true, Result: res})
}

func (h *Handler) handleAddRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req AddRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	roleType, err := models.ParseRoleType(req.RoleType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	attrs, err := models.DecodeAttributes(roleType, req.Attributes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.roles.CreateRole(ctx, requestcontext.AccountID(ctx), roleType, attrs, service.CreateOptions{
		Verification: service.VerifyByToken,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, AddRoleResponse{
		Success:          true,
		Role:             res.Role,
		VerificationSent: h.sendVerification(r, res.Role, res.VerificationToken),
	})
}

func (h *Handler) handleVerifyRole(w http.ResponseWriter, r *http.Request) {
	var req VerifyRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token is required"))
		return
	}
	role, err := h.roles.VerifyRole(r.Context(), req.Token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RoleResponse{Success: true, Role: role})
}

func (h *Handler) handleReissueVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleType, err := roleTypeParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	accountID := requestcontext.AccountID(ctx)
	token, err := h.roles.ReissueVerificationToken(ctx, accountID, roleType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role := &models.Role{AccountID: accountID, RoleType: roleType}
	httputil.WriteJSON(w, http.StatusAccepted, VerificationResponse{
		Success:          true,
		VerificationSent: h.sendVerification(r, role, token),
	})
}

func (h *Handler) handleActivateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleType, err := roleTypeParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.roles.ActivateRole(ctx, requestcontext.AccountID(ctx), roleType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ActivationResponse{
		Success:     true,
		Role:        res.Role,
		Deactivated: res.Deactivated,
		Consistent:  res.Consistent,
	})
}

func (h *Handler) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleType, err := roleTypeParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.roles.RemoveRole(ctx, requestcontext.AccountID(ctx), roleType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RemovalResponse{
		Success:    true,
		Removed:    res.Removed,
		Reassigned: res.Reassigned,
	})
}

func (h *Handler) handleRemovePendingRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleType, err := roleTypeParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := h.roles.RemovePendingRole(ctx, requestcontext.AccountID(ctx), roleType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RoleResponse{Success: true, Role: role})
}

// sendVerification reports whether the token went out. A failed send leaves
// the role pending; the user can request a new token.
func (h *Handler) sendVerification(r *http.Request, role *models.Role, token string) bool {
	if h.tokens == nil || token == "" {
		return false
	}
	if err := h.tokens.SendVerification(r.Context(), role, token); err != nil {
		h.logger.WarnContext(r.Context(), "verification delivery failed",
			"account_id", role.AccountID,
			"role_type", role.RoleType,
			"error", err,
		)
		return false
	}
	return true
}
