package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rolesync/internal/propertysync"
	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	"rolesync/pkg/platform/httputil"
	"rolesync/pkg/requestcontext"
)

type SyncRequest struct {
	SourceRole  string             `json:"source_role"`
	TargetRole  string             `json:"target_role"`
	PropertyIDs []string           `json:"property_ids"`
	Options     models.SyncOptions `json:"options"`
}

type SyncResponse struct {
	Success bool `json:"success"`
	*propertysync.SyncResult
}

type UnsyncResponse struct {
	Success bool `json:"success"`
	Removed bool `json:"removed"`
}

type AssociationsResponse struct {
	Success      bool                         `json:"success"`
	Associations []models.PropertyAssociation `json:"associations"`
}

type SyncHistoryResponse struct {
	Success bool                   `json:"success"`
	History []models.SyncOperation `json:"history"`
}

// handleSync mirrors properties from one role into another. Per-property
// failures are part of a successful response.
func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SyncRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	source, err := models.ParseRoleType(req.SourceRole)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	target, err := models.ParseRoleType(req.TargetRole)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	propertyIDs, err := id.ParsePropertyIDs(req.PropertyIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.sync.SyncPropertyAccess(ctx, requestcontext.AccountID(ctx), source, target, propertyIDs, req.Options)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SyncResponse{Success: true, SyncResult: res})
}

func (h *Handler) handleUnsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleType, err := roleTypeParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	removed, err := h.sync.UnsyncProperty(ctx, requestcontext.AccountID(ctx), roleType, propertyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UnsyncResponse{Success: true, Removed: removed})
}

func (h *Handler) handleListAssociations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleType, err := roleTypeParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	assocs, err := h.sync.ListAssociations(ctx, requestcontext.AccountID(ctx), roleType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if assocs == nil {
		assocs = []models.PropertyAssociation{}
	}
	httputil.WriteJSON(w, http.StatusOK, AssociationsResponse{Success: true, Associations: assocs})
}

func (h *Handler) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roleType, err := roleTypeParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	history, err := h.sync.SyncHistory(ctx, requestcontext.AccountID(ctx), roleType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if history == nil {
		history = []models.SyncOperation{}
	}
	httputil.WriteJSON(w, http.StatusOK, SyncHistoryResponse{Success: true, History: history})
}
