package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
	"github.com/talhabektas/smartdesk-sub000/pkg/jwtx"
	"github.com/talhabektas/smartdesk-sub000/pkg/jwtx/jwtxtest"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
	"github.com/talhabektas/smartdesk-sub000/pkg/session/sessiontest"
)

const totpSecret = "JBSWY3DPEHPK3PXP"

// fakeBackend is a tiny helpdesk backend: login, refresh, logout and one
// protected resource.
type fakeBackend struct {
	t     *testing.T
	clock *clock.FakeClock

	mu       sync.Mutex
	access   map[string]bool
	refresh  map[string]bool
	issued   []session.TokenPair
	seen     []string
	otpCodes []string
	logouts  int
}

func newFakeBackend(t *testing.T, clk *clock.FakeClock) (*fakeBackend, *httptest.Server) {
	b := &fakeBackend{t: t, clock: clk, access: map[string]bool{}, refresh: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.login)
	mux.HandleFunc("POST /auth/refresh", b.refreshTokens)
	mux.HandleFunc("POST /auth/logout", b.logout)
	mux.HandleFunc("GET /api/tickets", b.tickets)
	mux.HandleFunc("GET /api/admin", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"ACCESS_DENIED","message":"admins only"}`))
	})
	mux.HandleFunc("GET /api/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

// issue mints a pair whose access token lives for ttl. Token subjects are
// unique per pair so the backend can tell them apart.
func (b *fakeBackend) issue(ttl time.Duration) session.TokenPair {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := int32(len(b.issued) + 1)
	now := b.clock.Now()
	pair := session.TokenPair{
		AccessToken:  jwtxtest.Token(b.t, "42-tok"+itoa(n), now.Add(ttl)),
		RefreshToken: jwtxtest.Token(b.t, "42-ref"+itoa(n), now.Add(24*time.Hour)),
	}
	b.issued = append(b.issued, pair)
	b.access[pair.AccessToken] = true
	b.refresh[pair.RefreshToken] = true
	return pair
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		OTPCode  string `json:"otpCode"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Password != "hunter2" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	b.mu.Lock()
	b.otpCodes = append(b.otpCodes, req.OTPCode)
	b.mu.Unlock()

	pair := b.issue(10 * time.Second)
	// Snake case on purpose.
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    10,
		"user":          map[string]any{"id": 42, "email": req.Email, "first_name": "Ada", "role": "AGENT"},
	})
}

func (b *fakeBackend) refreshTokens(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	ok := b.refresh[req.RefreshToken]
	delete(b.refresh, req.RefreshToken)
	b.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	pair := b.issue(15 * time.Minute)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    900,
	})
}

func (b *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.logouts++
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *fakeBackend) tickets(w http.ResponseWriter, r *http.Request) {
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	b.mu.Lock()
	b.seen = append(b.seen, bearer)
	ok := b.access[bearer]
	b.mu.Unlock()

	if !ok || jwtx.IsExpired(bearer, b.clock.Now()) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "title": "printer on fire"}})
}

func newTestSession(t *testing.T, apiURL string, clk *clock.FakeClock, tr session.Transport) (*session.Session, *fakeBoundary) {
	t.Helper()
	b := &fakeBoundary{}
	s, err := session.New(session.Config{
		APIBaseURL: apiURL,
		Transport:  tr,
		Clock:      clk,
		Boundary:   b,
		TOTPSecret: totpSecret,
	})
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s, b
}

func TestLoginThenRefreshOnExpiry(t *testing.T) {
	t.Parallel()
	clk := clock.Fake(epoch)
	backend, srv := newFakeBackend(t, clk)
	s, _ := newTestSession(t, srv.URL, clk, &sessiontest.Transport{})
	ctx := context.Background()

	user, err := s.Login(ctx, "ada@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "42", user.ID)
	require.Equal(t, "Ada", user.FirstName)

	tok1 := backend.issued[0].AccessToken
	got, err := s.Tokens.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, tok1, got)

	clk.Advance(10 * time.Second)

	var tickets []map[string]any
	require.NoError(t, s.API.GetJSON(ctx, "/api/tickets", &tickets))
	require.Len(t, tickets, 1)

	backend.mu.Lock()
	require.Len(t, backend.issued, 2)
	tok2 := backend.issued[1].AccessToken
	require.Equal(t, []string{tok2}, backend.seen)
	backend.mu.Unlock()

	got, err = s.Tokens.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, tok2, got)

	cached, err := s.Tokens.User(ctx)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", cached.Email)
}

func TestLoginSendsOneTimeCode(t *testing.T) {
	t.Parallel()
	clk := clock.Fake(epoch)
	backend, srv := newFakeBackend(t, clk)
	s, _ := newTestSession(t, srv.URL, clk, &sessiontest.Transport{})

	_, err := s.Login(context.Background(), "ada@example.com", "hunter2")
	require.NoError(t, err)

	want, err := totp.GenerateCode(totpSecret, clk.Now())
	require.NoError(t, err)
	require.Equal(t, []string{want}, backend.otpCodes)
}

func TestLoginRejected(t *testing.T) {
	t.Parallel()
	clk := clock.Fake(epoch)
	_, srv := newFakeBackend(t, clk)
	s, b := newTestSession(t, srv.URL, clk, &sessiontest.Transport{})
	ctx := context.Background()

	_, err := s.Login(ctx, "ada@example.com", "wrong")
	reqErr, ok := session.AsRequestError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	require.Zero(t, b.redirects.Load())

	_, err = s.Login(ctx, "", "")
	require.ErrorIs(t, err, session.ErrInvalidArgument)
}

// profileFailStore accepts tokens but refuses to store a profile.
type profileFailStore struct {
	*session.MemoryStore
}

var errDiskFull = errors.New("disk full")

func (profileFailStore) SaveUser(context.Context, *session.UserProfile) error { return errDiskFull }

func TestLoginRollsBackTokensWhenProfileWriteFails(t *testing.T) {
	t.Parallel()
	clk := clock.Fake(epoch)
	_, srv := newFakeBackend(t, clk)
	st := profileFailStore{session.NewMemoryStore(clk)}
	s, err := session.New(session.Config{
		APIBaseURL: srv.URL,
		Store:      st,
		Transport:  &sessiontest.Transport{},
		Clock:      clk,
		Boundary:   &fakeBoundary{},
		TOTPSecret: totpSecret,
	})
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	ctx := context.Background()

	_, err = s.Login(ctx, "ada@example.com", "hunter2")
	require.ErrorIs(t, err, errDiskFull)

	rec, err := st.Load(ctx)
	require.NoError(t, err)
	require.False(t, rec.HasTokens())

	token, err := s.Tokens.AccessToken(ctx)
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestLogoutClearsEvenWhenBackendFails(t *testing.T) {
	t.Parallel()
	clk := clock.Fake(epoch)
	backend, srv := newFakeBackend(t, clk)
	s, _ := newTestSession(t, srv.URL, clk, &sessiontest.Transport{})
	ctx := context.Background()

	_, err := s.Login(ctx, "ada@example.com", "hunter2")
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx))
	require.Equal(t, 1, backend.logouts)

	tok, err := s.Tokens.AccessToken(ctx)
	require.NoError(t, err)
	require.Empty(t, tok)

	t.Run("backend down", func(t *testing.T) {
		_, err := s.Login(ctx, "ada@example.com", "hunter2")
		require.NoError(t, err)
		srv.Close()

		require.NoError(t, s.Logout(ctx))
		tok, _ := s.Tokens.AccessToken(ctx)
		require.Empty(t, tok)
	})
}

func TestAPIClientClassifiesFailures(t *testing.T) {
	t.Parallel()
	clk := clock.Fake(epoch)
	_, srv := newFakeBackend(t, clk)

	var mu sync.Mutex
	var reported []*session.RequestError
	s, err := session.New(session.Config{
		APIBaseURL: srv.URL,
		Transport:  &sessiontest.Transport{},
		Clock:      clk,
		Reporter: session.ErrorReporterFunc(func(_ context.Context, err *session.RequestError) {
			mu.Lock()
			defer mu.Unlock()
			reported = append(reported, err)
		}),
	})
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	ctx := context.Background()

	_, err = s.Login(ctx, "ada@example.com", "hunter2")
	require.NoError(t, err)

	err = s.API.GetJSON(ctx, "/api/admin", nil)
	require.ErrorIs(t, err, session.ErrRequestForbidden)
	reqErr, ok := session.AsRequestError(err)
	require.True(t, ok)
	require.Equal(t, "ACCESS_DENIED", reqErr.Code)
	require.Equal(t, "admins only", reqErr.Message)

	require.ErrorIs(t, s.API.GetJSON(ctx, "/api/missing", nil), session.ErrNotFound)
	require.ErrorIs(t, s.API.GetJSON(ctx, "/api/broken", nil), session.ErrServerError)

	mu.Lock()
	require.Len(t, reported, 3)
	mu.Unlock()

	// Forbidden never ends the session.
	tok, _ := s.Tokens.AccessToken(ctx)
	require.NotEmpty(t, tok)
}

func TestSessionConnectUsesProfileIdentity(t *testing.T) {
	t.Parallel()
	clk := clock.Fake(epoch)
	_, srv := newFakeBackend(t, clk)
	tr := &sessiontest.Transport{}
	s, _ := newTestSession(t, srv.URL, clk, tr)
	ctx := context.Background()

	require.ErrorIs(t, s.Connect(ctx), session.ErrNoAccessToken)
	require.Zero(t, tr.DialCount())

	_, err := s.Login(ctx, "ada@example.com", "hunter2")
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))

	require.Equal(t, "42", tr.LastDial().Identity)
	require.True(t, s.Realtime.IsConnected())
	require.Contains(t, tr.Conn(-1).Subscribed(), "/topic/user/42/notifications")

	require.NoError(t, s.Logout(ctx))
	require.Equal(t, session.StateDisconnected, s.Realtime.State())
	require.True(t, tr.Conn(-1).IsClosed())
}
