package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
	"github.com/talhabektas/smartdesk-sub000/pkg/idx"
)

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh"
	logoutPath  = "/auth/logout"
)

type AuthClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client

	// TOTPSecret, when set, adds a current one-time code to every login.
	TOTPSecret string

	Clock  clock.Clock
	Logger *slog.Logger
}

// AuthClient talks to the unauthenticated auth endpoints. It deliberately
// uses a plain HTTP client: login and refresh must never go through the
// 401 retry path.
type AuthClient struct {
	baseURL    string
	http       *http.Client
	totpSecret string
	clock      clock.Clock
	log        *slog.Logger
}

var _ Refresher = (*AuthClient)(nil)

func NewAuthClient(cfg AuthClientConfig) *AuthClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AuthClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       cfg.HTTPClient,
		totpSecret: cfg.TOTPSecret,
		clock:      cfg.Clock,
		log:        cfg.Logger.With("component", "auth_client"),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OTPCode  string `json:"otpCode,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for a token pair and the user profile.
func (c *AuthClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidArgument)
	}

	req := loginRequest{Email: email, Password: password}
	if c.totpSecret != "" {
		code, err := totp.GenerateCode(c.totpSecret, c.clock.Now())
		if err != nil {
			return nil, fmt.Errorf("generate otp code: %w", err)
		}
		req.OTPCode = code
	}

	body, err := c.postJSON(ctx, loginPath, req, "")
	if err != nil {
		return nil, err
	}

	pair, user, err := normalizeTokenResponse(body)
	if err != nil {
		return nil, err
	}
	if pair.RefreshToken == "" {
		return nil, fmt.Errorf("%w: missing refresh token", ErrMalformedAuth)
	}

	c.log.Info("logged in", "email", email)
	return &LoginResult{Tokens: pair, User: user}, nil
}

// Refresh implements Refresher against POST /auth/refresh.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	body, err := c.postJSON(ctx, refreshPath, refreshRequest{RefreshToken: refreshToken}, "")
	if err != nil {
		return TokenPair{}, err
	}
	pair, _, err := normalizeTokenResponse(body)
	return pair, err
}

// Logout tells the backend the session is over. Best effort: callers clear
// local state regardless of the outcome.
func (c *AuthClient) Logout(ctx context.Context, accessToken string) error {
	_, err := c.postJSON(ctx, logoutPath, struct{}{}, accessToken)
	return err
}

func (c *AuthClient) postJSON(ctx context.Context, path string, in any, bearer string) ([]byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, idx.New().String())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseErrorResponse(req, resp, body)
	}
	return body, nil
}
