package deskapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/talhabektas/smartdesk-sub000/pkg/httpx"
)

const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeNotLoggedIn        = "not_logged_in"
	ErrorCodeSessionExpired     = "session_expired"
	ErrorCodeNotConnected       = "not_connected"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeUpstreamError      = "upstream_error"
	ErrorCodeServerError        = "server_error"
)

// APIError is an error response of the control API. The server writes it
// and the client decodes it.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on Code so callers can compare against the predefined errors.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes e to w.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, e.Code, e.Description)
}

// WithDescription returns a copy of e with a different description.
func (e *APIError) WithDescription(desc string) *APIError {
	out := *e
	out.Description = desc
	return &out
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "missing or invalid control token",
	}

	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "the backend rejected the credentials",
	}

	ErrNotLoggedIn = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeNotLoggedIn,
		Description: "no session is stored",
	}

	ErrSessionExpired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeSessionExpired,
		Description: "the session could not be refreshed and was cleared",
	}

	ErrNotConnected = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeNotConnected,
		Description: "the realtime connection is not established",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}

	ErrUpstream = &APIError{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeUpstreamError,
		Description: "the helpdesk backend could not be reached",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal error",
	}
)

// parseErrorResponse turns a non-success response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error == "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        ErrorCodeServerError,
			Description: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        er.Error,
		Description: er.ErrorDescription,
	}
}
