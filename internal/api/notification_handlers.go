package api

import (
	"net/http"

	"github.com/onnwee/reelcast/internal/notification"
)

// NotificationHandlers serves the caller's notification inbox.
type NotificationHandlers struct {
	svc *notification.Service
}

// NewNotificationHandlers creates a new NotificationHandlers instance.
func NewNotificationHandlers(svc *notification.Service) *NotificationHandlers {
	return &NotificationHandlers{svc: svc}
}

// List handles GET /v1/notifications?limit=&unread=.
func (h *NotificationHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", notification.DefaultListLimit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	unread, err := queryBool(r, "unread")
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	ns, err := h.svc.ListForCaller(r.Context(), callerFrom(r), limit, unread)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if ns == nil {
		ns = []*notification.Notification{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"notifications": ns})
}

// MarkRead handles POST /v1/notifications/{id}/read.
func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkRead(r.Context(), callerFrom(r), r.PathValue("id")); err != nil {
		WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
