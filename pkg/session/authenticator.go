package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/talhabektas/smartdesk-sub000/pkg/idx"
	"github.com/talhabektas/smartdesk-sub000/pkg/slogx"
)

const requestIDHeader = slogx.RequestIDHeader

// Authenticator is an http.RoundTripper that authenticates every outbound
// request with the current access token.
//
// Before sending it refreshes an expired token synchronously and an
// expiring one in the background. A 401 response triggers one refresh and
// one replay of the original request; a second 401, or a failed refresh,
// ends the session through TokenManager.ForceLogout.
type Authenticator struct {
	tokens *TokenManager
	base   http.RoundTripper
	log    *slog.Logger

	bg sync.WaitGroup
}

var _ http.RoundTripper = (*Authenticator)(nil)

// NewAuthenticator wraps base, or http.DefaultTransport when base is nil.
func NewAuthenticator(tokens *TokenManager, base http.RoundTripper, logger *slog.Logger) *Authenticator {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		tokens: tokens,
		base:   base,
		log:    logger.With("component", "authenticator"),
	}
}

func (a *Authenticator) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	reqID := req.Header.Get(requestIDHeader)
	if reqID == "" {
		reqID = idx.New().String()
	}
	log := slogx.FromContextOr(ctx, a.log).With("req_id", reqID, "method", req.Method, "path", req.URL.Path)

	token := a.tokenFor(ctx, log)

	first, err := prepare(req, getBody, token, reqID)
	if err != nil {
		return nil, err
	}
	resp, err := a.base.RoundTrip(first)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		log.Debug("outbound request", "status", resp.StatusCode, "retried", false)
		return resp, nil
	}
	discard(resp)

	pair, err := a.tokens.Refresh(ctx)
	if err != nil {
		log.Warn("refresh after 401 failed", "err", err)
		a.tokens.ForceLogout(ctx, err)
		return nil, &AuthError{Kind: RequestUnauthorized, Err: err}
	}

	retry, err := prepare(req, getBody, pair.AccessToken, reqID)
	if err != nil {
		return nil, err
	}
	resp, err = a.base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	log.Debug("outbound request", "status", resp.StatusCode, "retried", true)

	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)
		authErr := &AuthError{Kind: RequestUnauthorized, Err: fmt.Errorf("%s %s rejected after refresh", req.Method, req.URL.Path)}
		a.tokens.ForceLogout(ctx, authErr)
		return nil, authErr
	}
	return resp, nil
}

// tokenFor picks the token to attach. "" means send unauthenticated.
func (a *Authenticator) tokenFor(ctx context.Context, log *slog.Logger) string {
	token, err := a.tokens.AccessToken(ctx)
	if err != nil {
		log.Warn("reading access token", "err", err)
		return ""
	}
	if token == "" {
		return ""
	}

	if a.tokens.IsExpired(token) {
		pair, err := a.tokens.Refresh(ctx)
		if err != nil {
			log.Info("refresh before send failed, sending unauthenticated", "err", err)
			return ""
		}
		return pair.AccessToken
	}

	if a.tokens.IsExpiringSoon(token) {
		a.refreshInBackground(ctx, log)
	}
	return token
}

func (a *Authenticator) refreshInBackground(ctx context.Context, log *slog.Logger) {
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		if _, err := a.tokens.Refresh(context.WithoutCancel(ctx)); err != nil {
			log.Warn("background refresh failed", "err", err)
		}
	}()
}

// Wait blocks until background refreshes started so far have finished.
func (a *Authenticator) Wait() { a.bg.Wait() }

// replayableBody returns a function producing a fresh copy of the request
// body, buffering it when the request cannot rewind itself.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		req.Body.Close()
		return req.GetBody, nil
	}

	buf, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}, nil
}

func prepare(req *http.Request, getBody func() (io.ReadCloser, error), token, reqID string) (*http.Request, error) {
	out := req.Clone(req.Context())
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		out.Body = body
		out.GetBody = getBody
	}

	out.Header.Set(requestIDHeader, reqID)
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	return out, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
