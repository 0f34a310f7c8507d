package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/platform/httputil"
	"rolesync/pkg/platform/notify"
	"rolesync/pkg/requestcontext"
)

type AlertsResponse struct {
	Success bool           `json:"success"`
	Alerts  []notify.Event `json:"alerts"`
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		httputil.WriteJSON(w, http.StatusOK, AlertsResponse{Success: true, Alerts: []notify.Event{}})
		return
	}
	ctx := r.Context()
	alerts, err := h.alerts.ListOpenAlerts(ctx, requestcontext.AccountID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load alerts"))
		return
	}
	if alerts == nil {
		alerts = []notify.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, AlertsResponse{Success: true, Alerts: alerts})
}

// handleAcknowledgeAlert closes an open alert owned by the caller.
func (h *Handler) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "alert not found"))
		return
	}
	ctx := r.Context()
	alertID := chi.URLParam(r, "alertID")
	open, err := h.alerts.ListOpenAlerts(ctx, requestcontext.AccountID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load alerts"))
		return
	}
	owned := false
	for _, a := range open {
		if a.ID == alertID {
			owned = true
			break
		}
	}
	if !owned {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "alert not found"))
		return
	}
	if err := h.alerts.Acknowledge(ctx, alertID); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acknowledge alert"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
