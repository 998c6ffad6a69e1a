package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
)

// Config wires a complete Session.
type Config struct {
	APIBaseURL string
	Store      CredentialStore
	Transport  Transport

	// BaseTransport is the RoundTripper under the authenticator.
	BaseTransport http.RoundTripper
	HTTPTimeout   time.Duration

	RefreshWindow       time.Duration
	RefreshTimeout      time.Duration
	OpaqueRefreshTokens bool
	TOTPSecret          string

	ReconnectBase        time.Duration
	MaxReconnectAttempts int
	TypingInterval       time.Duration
	Destinations         Destinations

	Boundary      LoginBoundary
	Reporter      ErrorReporter
	OnUnavailable func(error)

	Clock  clock.Clock
	Logger *slog.Logger
}

// Session is the assembled session layer.
type Session struct {
	Tokens   *TokenManager
	Auth     *AuthClient
	API      *APIClient
	Events   *Dispatcher
	Realtime *ConnectionManager

	authenticator *Authenticator
	log           *slog.Logger
}

func New(cfg Config) (*Session, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("%w: api base url is required", ErrInvalidArgument)
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("%w: realtime transport is required", ErrInvalidArgument)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore(cfg.Clock)
	}

	base := cfg.BaseTransport
	if base == nil {
		base = http.DefaultTransport
	}

	auth := NewAuthClient(AuthClientConfig{
		BaseURL:    cfg.APIBaseURL,
		HTTPClient: &http.Client{Transport: base, Timeout: cfg.HTTPTimeout},
		TOTPSecret: cfg.TOTPSecret,
		Clock:      cfg.Clock,
		Logger:     cfg.Logger,
	})

	tokens := NewTokenManager(TokenManagerConfig{
		Store:               cfg.Store,
		Refresher:           auth,
		Boundary:            cfg.Boundary,
		Clock:               cfg.Clock,
		Logger:              cfg.Logger,
		RefreshWindow:       cfg.RefreshWindow,
		RefreshTimeout:      cfg.RefreshTimeout,
		OpaqueRefreshTokens: cfg.OpaqueRefreshTokens,
	})

	authn := NewAuthenticator(tokens, base, cfg.Logger)
	events := NewDispatcher(cfg.Logger)

	return &Session{
		Tokens: tokens,
		Auth:   auth,
		API: NewAPIClient(APIClientConfig{
			BaseURL:       cfg.APIBaseURL,
			Authenticator: authn,
			Timeout:       cfg.HTTPTimeout,
			Reporter:      cfg.Reporter,
			Logger:        cfg.Logger,
		}),
		Events: events,
		Realtime: NewConnectionManager(ConnectionConfig{
			Transport:      cfg.Transport,
			Tokens:         tokens,
			Dispatcher:     events,
			Clock:          cfg.Clock,
			Logger:         cfg.Logger,
			BaseInterval:   cfg.ReconnectBase,
			MaxAttempts:    cfg.MaxReconnectAttempts,
			TypingInterval: cfg.TypingInterval,
			Destinations:   cfg.Destinations,
			OnUnavailable:  cfg.OnUnavailable,
		}),
		authenticator: authn,
		log:           cfg.Logger,
	}, nil
}

// Init restores the persisted session.
func (s *Session) Init(ctx context.Context) error {
	return s.Tokens.Init(ctx)
}

// Login authenticates and persists the resulting tokens and profile. When
// the profile cannot be stored the tokens are cleared again, so a failed
// Login never leaves a live session behind.
func (s *Session) Login(ctx context.Context, email, password string) (*UserProfile, error) {
	res, err := s.Auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.Tokens.SetTokens(ctx, res.Tokens.AccessToken, res.Tokens.RefreshToken); err != nil {
		return nil, err
	}
	if err := s.Tokens.SetUser(ctx, res.User); err != nil {
		if cerr := s.Tokens.ClearTokens(ctx); cerr != nil {
			s.log.Error("login: clearing tokens after profile write failed", "err", cerr)
		}
		return nil, fmt.Errorf("store user profile: %w", err)
	}
	return res.User, nil
}

// Logout drops the realtime connection, tells the backend and clears local
// credentials. Only a local clearing failure is returned.
func (s *Session) Logout(ctx context.Context) error {
	s.Realtime.Disconnect()

	if token, err := s.Tokens.AccessToken(ctx); err == nil && token != "" {
		if err := s.Auth.Logout(ctx, token); err != nil {
			s.log.Info("remote logout failed, clearing locally", "err", err)
		}
	}
	return s.Tokens.ClearTokens(ctx)
}

// Identity returns the realtime identity of the signed-in user: the cached
// profile id, falling back to the token subject.
func (s *Session) Identity(ctx context.Context) (string, error) {
	user, err := s.Tokens.User(ctx)
	if err != nil {
		return "", err
	}
	if user != nil && user.ID != "" {
		return user.ID, nil
	}
	claims, err := s.Tokens.Claims(ctx)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("session: token has no subject")
	}
	return claims.Subject, nil
}

// Connect opens the realtime connection for the signed-in user.
func (s *Session) Connect(ctx context.Context) error {
	identity, err := s.Identity(ctx)
	if err != nil {
		return fmt.Errorf("realtime connect: %w", err)
	}
	return s.Realtime.Connect(ctx, identity)
}

// Shutdown stops background work. The credential store is left to its
// owner.
func (s *Session) Shutdown() {
	s.Realtime.Shutdown()
	s.authenticator.Wait()
	s.Tokens.Shutdown()
}
