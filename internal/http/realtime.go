package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/talhabektas/smartdesk-sub000/pkg/deskapi"
	"github.com/talhabektas/smartdesk-sub000/pkg/httpx"
	"github.com/talhabektas/smartdesk-sub000/pkg/idx"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
	"github.com/talhabektas/smartdesk-sub000/pkg/slogx"
)

// RealtimeHandler drives the connection manager. Logger receives the logs of
// subscription handlers, which outlive the request that registered them.
type RealtimeHandler struct {
	Session *session.Session
	Logger  *slog.Logger
}

// HandleGet handles GET /v1/realtime
//
//	@Summary		Realtime State
//	@Description	Connection state, identity and the subscription registry in registration order.
//	@Tags			Realtime
//	@Produce		json
//	@Security		ControlToken
//	@Success		200	{object}	deskapi.RealtimeResponse	"state, identity, subscriptions"
//	@Router			/v1/realtime [get].
func (h *RealtimeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.view())
}

// HandleConnect handles POST /v1/realtime/connect
//
//	@Summary		Connect
//	@Description	Opens the realtime connection for the signed in user. A failed first dial is
//	@Description	retried in the background, the response then reports RECONNECTING.
//	@Tags			Realtime
//	@Produce		json
//	@Security		ControlToken
//	@Success		202	{object}	deskapi.RealtimeResponse	"state after the first dial"
//	@Failure		401	{object}	deskapi.ErrorResponse		"error, error_description"
//	@Router			/v1/realtime/connect [post].
func (h *RealtimeHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := h.Session.Connect(ctx); err != nil {
		if h.Session.Realtime.State() != session.StateReconnecting {
			writeSessionError(w, log, err)
			return
		}
		log.Warn("first dial failed, retrying in background", "error", err)
	}
	httpx.WriteJSON(w, http.StatusAccepted, h.view())
}

// HandleDisconnect handles POST /v1/realtime/disconnect
//
//	@Summary		Disconnect
//	@Description	Closes the connection and cancels any pending reconnect. The subscription registry is cleared.
//	@Tags			Realtime
//	@Security		ControlToken
//	@Success		204	"disconnected"
//	@Router			/v1/realtime/disconnect [post].
func (h *RealtimeHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	h.Session.Realtime.Disconnect()
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubscribe handles POST /v1/realtime/subscriptions
//
//	@Summary		Subscribe
//	@Description	Registers a destination. Frames received on it are dispatched as events, so
//	@Description	notification frames land in the inbox. The subscription survives reconnects.
//	@Tags			Realtime
//	@Accept			json
//	@Produce		json
//	@Security		ControlToken
//	@Param			request	body		deskapi.SubscribeRequest	true	"Destination"
//	@Success		201		{object}	deskapi.SubscriptionView	"registered subscription"
//	@Failure		400		{object}	deskapi.ErrorResponse		"error, error_description"
//	@Router			/v1/realtime/subscriptions [post].
func (h *RealtimeHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req deskapi.SubscribeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		deskapi.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Destination == "" {
		deskapi.ErrInvalidRequest.WithDescription("destination is required").WriteError(w)
		return
	}

	events := h.Session.Events
	subLog := h.Logger.With("subscription", req.Destination)
	id, err := h.Session.Realtime.Subscribe(req.Destination, func(m session.Message) {
		if err := events.DispatchFrame(m.Destination, m.Body); err != nil {
			subLog.Warn("dropping frame", "destination", m.Destination, "error", err)
		}
	})
	if err != nil {
		writeSessionError(w, log, err)
		return
	}

	view := deskapi.SubscriptionView{ID: id.String(), Destination: req.Destination}
	for _, s := range h.Session.Realtime.Subscriptions() {
		if s.ID == id {
			view.Active = s.Active
		}
	}
	httpx.WriteJSON(w, http.StatusCreated, view)
}

// HandleUnsubscribe handles DELETE /v1/realtime/subscriptions/{id}
//
//	@Summary		Unsubscribe
//	@Description	Removes a subscription from the connection and the registry.
//	@Tags			Realtime
//	@Security		ControlToken
//	@Param			id	path	string	true	"Subscription id"
//	@Success		204	"removed"
//	@Failure		400	{object}	deskapi.ErrorResponse	"error, error_description"
//	@Failure		404	{object}	deskapi.ErrorResponse	"error, error_description"
//	@Router			/v1/realtime/subscriptions/{id} [delete].
func (h *RealtimeHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		deskapi.ErrInvalidRequest.WithDescription("malformed subscription id").WriteError(w)
		return
	}

	known := false
	for _, s := range h.Session.Realtime.Subscriptions() {
		if s.ID == id {
			known = true
			break
		}
	}
	if !known {
		deskapi.ErrNotFound.WithDescription("no such subscription").WriteError(w)
		return
	}

	// The registry entry is gone even when the broker call fails.
	if err := h.Session.Realtime.Unsubscribe(id); err != nil {
		slogx.FromContext(ctx).Warn("broker unsubscribe failed", "id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSend handles POST /v1/realtime/send
//
//	@Summary		Send
//	@Description	Publishes a JSON payload. Messages are dropped, not queued, while disconnected.
//	@Tags			Realtime
//	@Accept			json
//	@Security		ControlToken
//	@Param			request	body	deskapi.SendRequest	true	"Destination and payload"
//	@Success		202		"sent"
//	@Failure		400		{object}	deskapi.ErrorResponse	"error, error_description"
//	@Failure		409		{object}	deskapi.ErrorResponse	"not connected"
//	@Router			/v1/realtime/send [post].
func (h *RealtimeHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req deskapi.SendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		deskapi.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}
	if strings.TrimSpace(req.Destination) == "" || len(req.Payload) == 0 {
		deskapi.ErrInvalidRequest.WithDescription("destination and payload are required").WriteError(w)
		return
	}

	err := h.Session.Realtime.Send(ctx, req.Destination, req.Payload, req.Headers)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, session.ErrNotConnected):
		deskapi.ErrNotConnected.WriteError(w)
	default:
		writeSessionError(w, slogx.FromContext(ctx), err)
	}
}

func (h *RealtimeHandler) view() deskapi.RealtimeResponse {
	rt := h.Session.Realtime
	subs := rt.Subscriptions()

	resp := deskapi.RealtimeResponse{
		State:         string(rt.State()),
		Identity:      rt.Identity(),
		Subscriptions: make([]deskapi.SubscriptionView, 0, len(subs)),
	}
	for _, s := range subs {
		resp.Subscriptions = append(resp.Subscriptions, deskapi.SubscriptionView{
			ID:          s.ID.String(),
			Destination: s.Destination,
			Active:      s.Active,
		})
	}
	return resp
}
