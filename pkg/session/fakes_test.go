package session_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
	"github.com/talhabektas/smartdesk-sub000/pkg/jwtx/jwtxtest"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

var (
	epoch      = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	errBackend = errors.New("backend unavailable")
)

// fakeBoundary records redirects to the login boundary.
type fakeBoundary struct {
	atLogin   atomic.Bool
	redirects atomic.Int32
	lastCause atomic.Value
}

func (b *fakeBoundary) AtLogin() bool { return b.atLogin.Load() }

func (b *fakeBoundary) RedirectToLogin(cause error) {
	b.redirects.Add(1)
	if cause != nil {
		b.lastCause.Store(cause)
	}
	b.atLogin.Store(true)
}

// countingRefresher returns pairs minted from a counter.
type countingRefresher struct {
	t     testing.TB
	clock *clock.FakeClock
	ttl   time.Duration
	calls atomic.Int32
	err   error
	gate  chan struct{}
}

func (r *countingRefresher) Refresh(ctx context.Context, _ string) (session.TokenPair, error) {
	n := r.calls.Add(1)
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return session.TokenPair{}, ctx.Err()
		}
	}
	if r.err != nil {
		return session.TokenPair{}, r.err
	}
	exp := r.clock.Now().Add(r.ttl)
	return session.TokenPair{
		AccessToken:  jwtxtest.Token(r.t, "access-"+itoa(n), exp),
		RefreshToken: jwtxtest.Token(r.t, "refresh-"+itoa(n), exp.Add(24*time.Hour)),
	}, nil
}

func itoa(n int32) string {
	const digits = "0123456789"
	if n < 10 {
		return digits[n : n+1]
	}
	return itoa(n/10) + digits[n%10:n%10+1]
}

type harness struct {
	clock     *clock.FakeClock
	store     *session.MemoryStore
	refresher *countingRefresher
	boundary  *fakeBoundary
	tokens    *session.TokenManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.Fake(epoch)
	store := session.NewMemoryStore(clk)
	ref := &countingRefresher{t: t, clock: clk, ttl: 15 * time.Minute}
	b := &fakeBoundary{}
	tm := session.NewTokenManager(session.TokenManagerConfig{
		Store:     store,
		Refresher: ref,
		Boundary:  b,
		Clock:     clk,
	})
	t.Cleanup(tm.Shutdown)
	return &harness{clock: clk, store: store, refresher: ref, boundary: b, tokens: tm}
}

// login seeds the store with a pair whose access token lives for ttl.
func (h *harness) login(t *testing.T, ttl time.Duration) (string, string) {
	t.Helper()
	access := jwtxtest.Token(t, "42", h.clock.Now().Add(ttl))
	refresh := jwtxtest.Token(t, "42", h.clock.Now().Add(7*24*time.Hour))
	require.NoError(t, h.tokens.SetTokens(context.Background(), access, refresh))
	return access, refresh
}
