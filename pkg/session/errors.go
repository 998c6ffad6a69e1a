package session

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoValidRefreshToken means a refresh was attempted without a usable
	// refresh token. Terminal for the session.
	ErrNoValidRefreshToken = errors.New("session: no valid refresh token")

	// ErrRefreshTransportFailure means the refresh endpoint could not be
	// reached or rejected the refresh token. Terminal for the session.
	ErrRefreshTransportFailure = errors.New("session: token refresh failed")

	// ErrRequestUnauthorized is returned for a request that was still
	// rejected with 401 after one refresh and replay.
	ErrRequestUnauthorized = errors.New("session: request unauthorized")

	ErrRequestForbidden = errors.New("session: forbidden")
	ErrNotFound         = errors.New("session: not found")
	ErrServerError      = errors.New("session: server error")
	ErrRequestFailed    = errors.New("session: request failed")

	// ErrConnectionUnavailable is reported once when the reconnect budget is
	// exhausted. Only an explicit Connect starts a new cycle.
	ErrConnectionUnavailable = errors.New("session: could not establish realtime connection")

	ErrNotConnected    = errors.New("session: realtime connection is not established")
	ErrNoAccessToken   = errors.New("session: no access token")
	ErrIncompletePair  = errors.New("session: access and refresh token must be set together")
	ErrMalformedAuth   = errors.New("session: malformed auth response")
	ErrClosed          = errors.New("session: closed")
	ErrMalformedFrame  = errors.New("session: malformed event frame")
	ErrInvalidArgument = errors.New("session: invalid argument")
)

// AuthErrorKind classifies authentication-terminal failures.
type AuthErrorKind string

const (
	NoValidRefreshToken     AuthErrorKind = "no_valid_refresh_token"
	RefreshTransportFailure AuthErrorKind = "refresh_transport_failure"
	RequestUnauthorized     AuthErrorKind = "request_unauthorized"
)

// AuthError is an authentication-terminal error. Every AuthError ends the
// session through TokenManager.ForceLogout.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind, so callers can use
// errors.Is(err, ErrRequestUnauthorized) without caring about the type.
func (e *AuthError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *AuthError) sentinel() error {
	switch e.Kind {
	case NoValidRefreshToken:
		return ErrNoValidRefreshToken
	case RefreshTransportFailure:
		return ErrRefreshTransportFailure
	default:
		return ErrRequestUnauthorized
	}
}

// IsAuthTerminal reports whether err must end the session.
func IsAuthTerminal(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// RequestErrorKind is the status classification of a failed REST call.
type RequestErrorKind string

const (
	KindForbidden   RequestErrorKind = "forbidden"
	KindNotFound    RequestErrorKind = "not_found"
	KindServerError RequestErrorKind = "server_error"
	KindClient      RequestErrorKind = "client_error"
)

// RequestError is a non-2xx response from the backend. The classification
// travels with the error so consumers can present it however they like.
type RequestError struct {
	StatusCode int
	Kind       RequestErrorKind
	Method     string
	Path       string

	// Code and Message come from the response body when the backend sent
	// one.
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *RequestError) Is(target error) bool {
	switch e.Kind {
	case KindForbidden:
		return target == ErrRequestForbidden
	case KindNotFound:
		return target == ErrNotFound
	case KindServerError:
		return target == ErrServerError
	}
	return target == ErrRequestFailed
}

func classifyStatus(code int) RequestErrorKind {
	switch {
	case code == http.StatusForbidden:
		return KindForbidden
	case code == http.StatusNotFound:
		return KindNotFound
	case code >= 500:
		return KindServerError
	default:
		return KindClient
	}
}
