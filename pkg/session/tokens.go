package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
	"github.com/talhabektas/smartdesk-sub000/pkg/cryptox"
	"github.com/talhabektas/smartdesk-sub000/pkg/jwtx"
)

const (
	DefaultRefreshWindow  = 5 * time.Minute
	DefaultRefreshTimeout = 15 * time.Second

	refreshKey = "refresh"
)

// Refresher exchanges a refresh token for a new token pair. AuthClient is
// the production implementation.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (TokenPair, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return f(ctx, refreshToken)
}

// LoginBoundary is the unauthenticated entry point a forced logout sends the
// user back to.
type LoginBoundary interface {
	// AtLogin reports whether the user is already at the login boundary.
	AtLogin() bool
	RedirectToLogin(cause error)
}

// TokenSource is the part of TokenManager the connection manager needs.
type TokenSource interface {
	ValidAccessToken(ctx context.Context) (string, error)
	ForceLogout(ctx context.Context, cause error)
}

// TokenManagerConfig configures a TokenManager. Only Refresher is required.
// A nil Store means an in-memory one, and zero durations take the defaults.
type TokenManagerConfig struct {
	Store     CredentialStore
	Refresher Refresher
	Boundary  LoginBoundary
	Clock     clock.Clock
	Logger    *slog.Logger

	// RefreshWindow is how long before expiry a token counts as expiring
	// soon. Defaults to five minutes.
	RefreshWindow time.Duration

	// RefreshTimeout bounds a single refresh round trip. Defaults to 15s.
	RefreshTimeout time.Duration

	// OpaqueRefreshTokens accepts refresh tokens that are not JWTs. Without
	// it an undecodable refresh token is treated as expired.
	OpaqueRefreshTokens bool
}

// TokenManager owns token expiry evaluation, refresh and rotation. It keeps
// no authoritative copy of any token: every accessor re-reads the store.
type TokenManager struct {
	store     CredentialStore
	refresher Refresher
	clock     clock.Clock
	log       *slog.Logger
	window    time.Duration
	timeout   time.Duration
	opaque    bool

	flight singleflight.Group

	// writeMu serialises store writes with the epoch check in refresh.
	writeMu sync.Mutex
	epoch   atomic.Uint64

	boundaryMu sync.RWMutex
	boundary   LoginBoundary
	loggingOut atomic.Bool

	cacheMu sync.Mutex
	cache   claimsCache

	waiters atomic.Int64
	closed  atomic.Bool
}

// claimsCache holds the decoded claims of one access token. It is only valid
// while the store revision it was computed at is still current.
type claimsCache struct {
	revision int64
	token    string
	claims   *jwtx.Claims
}

var _ TokenSource = (*TokenManager)(nil)

// NewTokenManager returns a manager over cfg.Store. Call Init to restore a
// persisted session.
func NewTokenManager(cfg TokenManagerConfig) *TokenManager {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = DefaultRefreshWindow
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore(cfg.Clock)
	}

	return &TokenManager{
		store:     cfg.Store,
		refresher: cfg.Refresher,
		clock:     cfg.Clock,
		log:       cfg.Logger.With("component", "tokens"),
		window:    cfg.RefreshWindow,
		timeout:   cfg.RefreshTimeout,
		opaque:    cfg.OpaqueRefreshTokens,
		boundary:  cfg.Boundary,
	}
}

// Init loads the persisted record and drops it when the refresh token can no
// longer be used, so a stale session is not resurrected at startup.
func (m *TokenManager) Init(ctx context.Context) error {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if !rec.HasTokens() {
		m.log.Info("no persisted session")
		return nil
	}
	if m.refreshTokenExpired(rec.RefreshToken) {
		m.log.Info("persisted session expired, clearing")
		return m.ClearTokens(ctx)
	}

	m.log.Info("restored persisted session",
		"access_fp", cryptox.Fingerprint(rec.AccessToken),
		"access_expired", m.IsExpired(rec.AccessToken),
		"revision", rec.Revision,
	)
	return nil
}

// Shutdown releases the refresh slot. Refresh fails with ErrClosed
// afterwards.
func (m *TokenManager) Shutdown() {
	m.closed.Store(true)
	m.flight.Forget(refreshKey)
}

// SetLoginBoundary replaces the boundary used by ForceLogout.
func (m *TokenManager) SetLoginBoundary(b LoginBoundary) {
	m.boundaryMu.Lock()
	defer m.boundaryMu.Unlock()
	m.boundary = b
}

// AccessToken returns the stored access token or "".
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

// RefreshToken returns the stored refresh token or "".
func (m *TokenManager) RefreshToken(ctx context.Context) (string, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return rec.RefreshToken, nil
}

// User returns the cached user profile, or nil.
func (m *TokenManager) User(ctx context.Context) (*UserProfile, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return rec.User, nil
}

// Claims decodes the current access token. The decoded claims are cached
// against the store revision, so a rotation is picked up on the next call.
func (m *TokenManager) Claims(ctx context.Context) (*jwtx.Claims, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rec.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if m.cache.claims != nil && m.cache.revision == rec.Revision && m.cache.token == rec.AccessToken {
		return m.cache.claims, nil
	}

	claims, err := jwtx.Decode(rec.AccessToken)
	if err != nil {
		m.cache = claimsCache{}
		return nil, err
	}
	m.cache = claimsCache{revision: rec.Revision, token: rec.AccessToken, claims: claims}
	return claims, nil
}

// IsExpired reports whether token is expired now. Undecodable tokens are
// expired.
func (m *TokenManager) IsExpired(token string) bool {
	return jwtx.IsExpired(token, m.clock.Now())
}

// IsExpiringSoon reports whether token expires within the refresh window.
func (m *TokenManager) IsExpiringSoon(token string) bool {
	return jwtx.ExpiresWithin(token, m.clock.Now(), m.window)
}

// SetTokens persists both tokens at once.
func (m *TokenManager) SetTokens(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return ErrIncompletePair
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.store.SaveTokens(ctx, accessToken, refreshToken); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	m.loggingOut.Store(false)
	return nil
}

// SetUser replaces the cached user profile.
func (m *TokenManager) SetUser(ctx context.Context, user *UserProfile) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// ClearTokens removes both tokens and the cached user and releases the
// refresh slot. A refresh still in flight will not persist its result.
func (m *TokenManager) ClearTokens(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.clearLocked(ctx)
}

func (m *TokenManager) clearLocked(ctx context.Context) error {
	m.epoch.Add(1)
	m.flight.Forget(refreshKey)

	m.cacheMu.Lock()
	m.cache = claimsCache{}
	m.cacheMu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// Refresh rotates the token pair. Concurrent callers share one network call
// and observe the same result. The call runs detached from the caller's
// context, bounded by RefreshTimeout; a caller whose context ends stops
// waiting without failing the others.
//
// Any failure clears the credentials and is returned as an *AuthError.
func (m *TokenManager) Refresh(ctx context.Context) (TokenPair, error) {
	if m.closed.Load() {
		return TokenPair{}, ErrClosed
	}

	m.waiters.Add(1)
	defer m.waiters.Add(-1)

	ch := m.flight.DoChan(refreshKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return m.refresh(rctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return TokenPair{}, res.Err
		}
		return res.Val.(TokenPair), nil
	case <-ctx.Done():
		return TokenPair{}, ctx.Err()
	}
}

func (m *TokenManager) refresh(ctx context.Context) (TokenPair, error) {
	epoch := m.epoch.Load()

	rec, err := m.store.Load(ctx)
	if err != nil {
		return TokenPair{}, &AuthError{Kind: RefreshTransportFailure, Err: err}
	}
	if rec.RefreshToken == "" || m.refreshTokenExpired(rec.RefreshToken) {
		m.clearAfterFailure(ctx, epoch)
		return TokenPair{}, &AuthError{Kind: NoValidRefreshToken}
	}
	if m.refresher == nil {
		return TokenPair{}, &AuthError{Kind: RefreshTransportFailure, Err: errors.New("no refresher configured")}
	}

	start := m.clock.Now()
	pair, err := m.refresher.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		m.log.Warn("token refresh failed", "err", err)
		m.clearAfterFailure(ctx, epoch)
		return TokenPair{}, &AuthError{Kind: RefreshTransportFailure, Err: err}
	}
	if pair.RefreshToken == "" {
		// The backend does not rotate refresh tokens.
		pair.RefreshToken = rec.RefreshToken
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.epoch.Load() != epoch {
		return TokenPair{}, &AuthError{Kind: NoValidRefreshToken, Err: errors.New("session cleared during refresh")}
	}
	if err := m.store.SaveTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return TokenPair{}, &AuthError{Kind: RefreshTransportFailure, Err: fmt.Errorf("save tokens: %w", err)}
	}
	m.loggingOut.Store(false)

	m.log.Info("token refreshed",
		"access_fp", cryptox.Fingerprint(pair.AccessToken),
		"duration_ms", m.clock.Now().Sub(start).Milliseconds(),
	)
	return pair, nil
}

// clearAfterFailure clears the store unless someone else already did.
func (m *TokenManager) clearAfterFailure(ctx context.Context, epoch uint64) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.epoch.Load() != epoch {
		return
	}
	if err := m.clearLocked(ctx); err != nil {
		m.log.Error("clearing credentials after refresh failure", "err", err)
	}
}

func (m *TokenManager) refreshTokenExpired(token string) bool {
	claims, err := jwtx.Decode(token)
	if err != nil {
		return !m.opaque
	}
	return claims.ExpiredAt(m.clock.Now())
}

// ValidAccessToken returns a usable access token, refreshing first when the
// stored one is expired.
func (m *TokenManager) ValidAccessToken(ctx context.Context) (string, error) {
	token, err := m.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoAccessToken
	}
	if !m.IsExpired(token) {
		return token, nil
	}

	pair, err := m.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

// ForceLogout is the single exit for authentication-terminal failures. It
// clears the credentials and sends the user to the login boundary, once per
// session and never while already there.
func (m *TokenManager) ForceLogout(ctx context.Context, cause error) {
	if err := m.ClearTokens(ctx); err != nil {
		m.log.Error("force logout: clear credentials", "err", err)
	}

	if !m.loggingOut.CompareAndSwap(false, true) {
		return
	}

	m.boundaryMu.RLock()
	b := m.boundary
	m.boundaryMu.RUnlock()

	if b == nil {
		m.log.Warn("session ended", "cause", cause)
		return
	}
	if b.AtLogin() {
		m.log.Debug("session ended while at login boundary", "cause", cause)
		return
	}

	m.log.Warn("session ended, redirecting to login", "cause", cause)
	b.RedirectToLogin(cause)
}
