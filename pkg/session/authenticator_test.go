package session_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

// recordingServer answers with the status chosen per bearer token and
// records what it saw.
type recordingServer struct {
	mu      sync.Mutex
	bearers []string
	bodies  []string
	reqIDs  []string
	status  func(bearer string) int
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	s.bearers = append(s.bearers, bearer)
	s.bodies = append(s.bodies, string(body))
	s.reqIDs = append(s.reqIDs, r.Header.Get("X-Request-ID"))
	s.mu.Unlock()

	w.WriteHeader(s.status(bearer))
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (s *recordingServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bearers...)
}

func newAuthedClient(h *harness) (*http.Client, *session.Authenticator) {
	authn := session.NewAuthenticator(h.tokens, nil, nil)
	return &http.Client{Transport: authn}, authn
}

func TestAuthenticatorAttachesBearer(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	access, _ := h.login(t, time.Hour)

	rs := &recordingServer{status: func(string) int { return http.StatusOK }}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, _ := newAuthedClient(h)
	resp, err := client.Get(srv.URL + "/api/tickets")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, []string{access}, rs.seen())
	require.NotEmpty(t, rs.reqIDs[0])
	require.Zero(t, h.refresher.calls.Load())
}

func TestAuthenticatorSendsUnauthenticatedWithoutToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rs := &recordingServer{status: func(string) int { return http.StatusOK }}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, _ := newAuthedClient(h)
	resp, err := client.Get(srv.URL + "/public/faq")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, []string{""}, rs.seen())
}

func TestAuthenticatorRetriesOnceAfter401(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	stale, _ := h.login(t, time.Hour)

	rs := &recordingServer{status: func(bearer string) int {
		if bearer == stale {
			return http.StatusUnauthorized
		}
		return http.StatusOK
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, _ := newAuthedClient(h)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/tickets", strings.NewReader(`{"title":"printer on fire"}`))
	require.NoError(t, err)
	// Hide the rewindable body so the authenticator has to buffer it.
	req.GetBody = nil
	req.Body = io.NopCloser(req.Body)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.EqualValues(t, 1, h.refresher.calls.Load())
	seen := rs.seen()
	require.Len(t, seen, 2)
	require.Equal(t, stale, seen[0])

	fresh, err := h.tokens.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, fresh, seen[1])

	require.Equal(t, rs.bodies[0], rs.bodies[1])
	require.Equal(t, `{"title":"printer on fire"}`, rs.bodies[1])
	require.Equal(t, rs.reqIDs[0], rs.reqIDs[1])
}

func TestAuthenticatorSecond401ForcesLogout(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login(t, time.Hour)

	rs := &recordingServer{status: func(string) int { return http.StatusUnauthorized }}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, _ := newAuthedClient(h)
	_, err := client.Get(srv.URL + "/api/tickets")
	require.ErrorIs(t, err, session.ErrRequestUnauthorized)

	require.Len(t, rs.seen(), 2)
	require.EqualValues(t, 1, h.refresher.calls.Load())
	require.EqualValues(t, 1, h.boundary.redirects.Load())

	rec, _ := h.store.Load(context.Background())
	require.False(t, rec.HasTokens())
}

func TestAuthenticatorRefreshFailureAfter401(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.refresher.err = errBackend
	h.login(t, time.Hour)

	rs := &recordingServer{status: func(string) int { return http.StatusUnauthorized }}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, _ := newAuthedClient(h)
	_, err := client.Get(srv.URL + "/api/tickets")
	require.ErrorIs(t, err, session.ErrRequestUnauthorized)
	require.ErrorIs(t, err, session.ErrRefreshTransportFailure)

	require.Len(t, rs.seen(), 1)
	require.EqualValues(t, 1, h.boundary.redirects.Load())
}

func TestAuthenticatorRefreshesExpiredTokenBeforeSending(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	stale, _ := h.login(t, time.Minute)
	h.clock.Advance(2 * time.Minute)

	rs := &recordingServer{status: func(string) int { return http.StatusOK }}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, _ := newAuthedClient(h)
	resp, err := client.Get(srv.URL + "/api/tickets")
	require.NoError(t, err)
	resp.Body.Close()

	seen := rs.seen()
	require.Len(t, seen, 1)
	require.NotEqual(t, stale, seen[0])
	require.EqualValues(t, 1, h.refresher.calls.Load())
}

func TestAuthenticatorRefreshesExpiringTokenInBackground(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	current, _ := h.login(t, 2*time.Minute)

	rs := &recordingServer{status: func(string) int { return http.StatusOK }}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, authn := newAuthedClient(h)
	resp, err := client.Get(srv.URL + "/api/tickets")
	require.NoError(t, err)
	resp.Body.Close()
	authn.Wait()

	require.Equal(t, []string{current}, rs.seen())
	require.EqualValues(t, 1, h.refresher.calls.Load())

	next, err := h.tokens.AccessToken(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, current, next)
}

func TestAuthenticatorBackgroundFailureDoesNotInterrupt(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.refresher.err = errBackend
	current, _ := h.login(t, 2*time.Minute)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+current {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, authn := newAuthedClient(h)
	resp, err := client.Get(srv.URL + "/api/tickets")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	authn.Wait()
	require.Zero(t, h.boundary.redirects.Load())

	// Only the next request observes the ended session.
	_, err = client.Get(srv.URL + "/api/tickets")
	require.ErrorIs(t, err, session.ErrRequestUnauthorized)
	require.EqualValues(t, 1, h.boundary.redirects.Load())
}
