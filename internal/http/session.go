package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/talhabektas/smartdesk-sub000/pkg/deskapi"
	"github.com/talhabektas/smartdesk-sub000/pkg/httpx"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
	"github.com/talhabektas/smartdesk-sub000/pkg/slogx"
)

// SessionHandler exposes the token lifecycle.
type SessionHandler struct {
	Session *session.Session
}

// HandleGet handles GET /v1/session
//
//	@Summary		Current Session
//	@Description	Reports whether credentials are stored, the cached profile and the access token expiry.
//	@Tags			Session
//	@Produce		json
//	@Security		ControlToken
//	@Success		200	{object}	deskapi.SessionResponse	"session state"
//	@Failure		401	{object}	deskapi.ErrorResponse	"error, error_description"
//	@Failure		500	{object}	deskapi.ErrorResponse	"error, error_description"
//	@Router			/v1/session [get].
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.view(ctx)
	if err != nil {
		writeSessionError(w, slogx.FromContext(ctx), err)
		return
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleLogin handles POST /v1/session/login
//
//	@Summary		Log In
//	@Description	Exchanges email and password for a token pair at the backend and stores it.
//	@Description	A configured TOTP secret adds the current one time code to the request.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Security		ControlToken
//	@Param			request	body		deskapi.LoginRequest	true	"Backend credentials"
//	@Success		200		{object}	deskapi.SessionResponse	"session state after login"
//	@Failure		400		{object}	deskapi.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	deskapi.ErrorResponse	"error, error_description"
//	@Failure		429		{object}	deskapi.ErrorResponse	"rate limited"
//	@Failure		502		{object}	deskapi.ErrorResponse	"error, error_description"
//	@Router			/v1/session/login [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req deskapi.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		deskapi.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		deskapi.ErrInvalidRequest.WithDescription("email and password are required").WriteError(w)
		return
	}

	if _, err := h.Session.Login(ctx, req.Email, req.Password); err != nil {
		writeSessionError(w, log, err)
		return
	}
	log.Info("session established", "email", req.Email)

	resp, err := h.view(ctx)
	if err != nil {
		writeSessionError(w, log, err)
		return
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleRefresh handles POST /v1/session/refresh
//
//	@Summary		Refresh Tokens
//	@Description	Rotates the token pair now. Concurrent refreshes share one backend call.
//	@Description	A failed refresh clears the session.
//	@Tags			Session
//	@Produce		json
//	@Security		ControlToken
//	@Success		200	{object}	deskapi.SessionResponse	"session state after refresh"
//	@Failure		401	{object}	deskapi.ErrorResponse	"error, error_description"
//	@Router			/v1/session/refresh [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if token, err := h.Session.Tokens.RefreshToken(ctx); err != nil {
		writeSessionError(w, log, err)
		return
	} else if token == "" {
		deskapi.ErrNotLoggedIn.WriteError(w)
		return
	}

	if _, err := h.Session.Tokens.Refresh(ctx); err != nil {
		writeSessionError(w, log, err)
		return
	}

	resp, err := h.view(ctx)
	if err != nil {
		writeSessionError(w, log, err)
		return
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleLogout handles POST /v1/session/logout
//
//	@Summary		Log Out
//	@Description	Closes the realtime connection, tells the backend and clears the stored credentials.
//	@Description	The backend call is best effort.
//	@Tags			Session
//	@Security		ControlToken
//	@Success		204	"logged out"
//	@Failure		500	{object}	deskapi.ErrorResponse	"error, error_description"
//	@Router			/v1/session/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Session.Logout(ctx); err != nil {
		writeSessionError(w, slogx.FromContext(ctx), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) view(ctx context.Context) (*deskapi.SessionResponse, error) {
	return sessionView(ctx, h.Session)
}

// sessionView reads the stored session without triggering a refresh.
func sessionView(ctx context.Context, s *session.Session) (*deskapi.SessionResponse, error) {
	token, err := s.Tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return &deskapi.SessionResponse{}, nil
	}

	resp := &deskapi.SessionResponse{
		LoggedIn:      true,
		AccessExpired: s.Tokens.IsExpired(token),
		ExpiringSoon:  s.Tokens.IsExpiringSoon(token),
	}

	user, err := s.Tokens.User(ctx)
	if err != nil {
		return nil, err
	}
	if user != nil {
		resp.User = &deskapi.UserView{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName(),
			Role:        user.Role,
			CompanyID:   user.CompanyID,
		}
	}

	// Opaque access tokens carry no claims, that is fine here.
	if claims, err := s.Tokens.Claims(ctx); err == nil {
		resp.Subject = claims.Subject
		resp.Role = claims.PrimaryRole()
		if exp, ok := claims.Expiry(); ok {
			resp.AccessExpiresAt = &exp
		}
	}
	return resp, nil
}
