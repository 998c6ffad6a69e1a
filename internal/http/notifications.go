package http

import (
	"net/http"

	"github.com/talhabektas/smartdesk-sub000/internal/inbox"
	"github.com/talhabektas/smartdesk-sub000/pkg/deskapi"
	"github.com/talhabektas/smartdesk-sub000/pkg/httpx"
	"github.com/talhabektas/smartdesk-sub000/pkg/slogx"
)

// NotificationsHandler serves the notification inbox.
type NotificationsHandler struct {
	Inbox *inbox.Inbox
}

// HandleList handles GET /v1/notifications
//
//	@Summary		List Notifications
//	@Description	Recent NOTIFICATION and TICKET_UPDATE events, newest first, with the unread count.
//	@Tags			Notifications
//	@Produce		json
//	@Security		ControlToken
//	@Success		200	{object}	deskapi.NotificationsResponse	"unread, items"
//	@Router			/v1/notifications [get].
func (h *NotificationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries := h.Inbox.List()

	resp := deskapi.NotificationsResponse{
		Unread: h.Inbox.Unread(),
		Items:  make([]deskapi.NotificationView, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Items = append(resp.Items, deskapi.NotificationView{
			ID:          e.ID,
			Type:        e.Type,
			Destination: e.Destination,
			Data:        e.Data,
			ReceivedAt:  e.ReceivedAt,
			Read:        e.Read,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleMarkRead handles POST /v1/notifications/read
//
//	@Summary		Mark All Read
//	@Description	Marks every inbox entry as read and returns how many changed.
//	@Tags			Notifications
//	@Produce		json
//	@Security		ControlToken
//	@Success		200	{object}	deskapi.MarkReadResponse	"marked"
//	@Failure		500	{object}	deskapi.ErrorResponse		"error, error_description"
//	@Router			/v1/notifications/read [post].
func (h *NotificationsHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.Inbox.MarkAllRead(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to mark notifications read", "error", err)
		deskapi.ErrServerError.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, deskapi.MarkReadResponse{Marked: n})
}
