package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/talhabektas/smartdesk-sub000/pkg/deskapi"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

// writeSessionError maps a session layer error onto the control API error
// envelope.
func writeSessionError(w http.ResponseWriter, log *slog.Logger, err error) {
	apiErr := classify(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Debug("request rejected", "error", err, "code", apiErr.Code)
	}
	apiErr.WriteError(w)
}

func classify(err error) *deskapi.APIError {
	var (
		reqErr *session.RequestError
		urlErr *url.Error
	)

	switch {
	case errors.Is(err, session.ErrInvalidArgument):
		return deskapi.ErrInvalidRequest.WithDescription(err.Error())
	case errors.Is(err, session.ErrNoAccessToken):
		return deskapi.ErrNotLoggedIn
	case session.IsAuthTerminal(err):
		return deskapi.ErrSessionExpired
	case errors.Is(err, session.ErrNotConnected):
		return deskapi.ErrNotConnected
	case errors.As(err, &reqErr):
		if reqErr.StatusCode == http.StatusUnauthorized || reqErr.StatusCode == http.StatusBadRequest {
			return deskapi.ErrInvalidCredentials.WithDescription(reqErr.Error())
		}
		return deskapi.ErrUpstream.WithDescription(reqErr.Error())
	case errors.Is(err, session.ErrMalformedAuth), errors.As(err, &urlErr):
		return deskapi.ErrUpstream.WithDescription(err.Error())
	}
	return deskapi.ErrServerError
}
