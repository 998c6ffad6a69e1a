package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/talhabektas/smartdesk-sub000/internal/domain"
	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
	"github.com/talhabektas/smartdesk-sub000/pkg/cryptox"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

// CredentialStoreAdapter adapts Store to session.CredentialStore. When a
// sealer is configured the token and profile columns are encrypted at rest.
type CredentialStoreAdapter struct {
	store  Store
	sealer *cryptox.Sealer
	clock  clock.Clock
}

var _ session.CredentialStore = (*CredentialStoreAdapter)(nil)

// NewCredentialStoreAdapter wraps s. A nil sealer stores plaintext and a
// nil clock means the real clock.
func NewCredentialStoreAdapter(s Store, sealer *cryptox.Sealer, c clock.Clock) *CredentialStoreAdapter {
	if c == nil {
		c = clock.Real()
	}
	return &CredentialStoreAdapter{store: s, sealer: sealer, clock: c}
}

// Load returns the persisted record. A partial token pair comes back as
// absent.
func (a *CredentialStoreAdapter) Load(ctx context.Context) (session.Record, error) {
	row, err := a.store.Credentials().GetCredentials(ctx)
	if errors.Is(err, ErrNotFound) {
		return session.Record{}, nil
	}
	if err != nil {
		return session.Record{}, err
	}
	return a.toRecord(row)
}

func (a *CredentialStoreAdapter) SaveTokens(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return session.ErrIncompletePair
	}
	access, err := a.seal(accessToken)
	if err != nil {
		return err
	}
	refresh, err := a.seal(refreshToken)
	if err != nil {
		return err
	}
	return a.store.Credentials().SaveTokens(ctx, access, refresh, a.clock.Now())
}

func (a *CredentialStoreAdapter) SaveUser(ctx context.Context, user *session.UserProfile) error {
	var profile string
	if user != nil {
		raw, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("encode user profile: %w", err)
		}
		if profile, err = a.seal(string(raw)); err != nil {
			return err
		}
	}
	return a.store.Credentials().SaveUserProfile(ctx, profile, a.clock.Now())
}

func (a *CredentialStoreAdapter) Clear(ctx context.Context) error {
	return a.store.Credentials().ClearCredentials(ctx, a.clock.Now())
}

func (a *CredentialStoreAdapter) Close() error { return a.store.Close() }

func (a *CredentialStoreAdapter) toRecord(row domain.Credentials) (session.Record, error) {
	rec := session.Record{Revision: row.Revision, UpdatedAt: row.UpdatedAt}

	if row.HasTokens() {
		var err error
		if rec.AccessToken, err = a.open(row.AccessToken); err != nil {
			return session.Record{}, fmt.Errorf("open access token: %w", err)
		}
		if rec.RefreshToken, err = a.open(row.RefreshToken); err != nil {
			return session.Record{}, fmt.Errorf("open refresh token: %w", err)
		}
	}

	if row.UserProfile != "" {
		raw, err := a.open(row.UserProfile)
		if err != nil {
			return session.Record{}, fmt.Errorf("open user profile: %w", err)
		}
		var user session.UserProfile
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return session.Record{}, fmt.Errorf("decode user profile: %w", err)
		}
		rec.User = &user
	}
	return rec.Normalized(), nil
}

func (a *CredentialStoreAdapter) seal(v string) (string, error) {
	if a.sealer == nil {
		return v, nil
	}
	return a.sealer.SealString(v)
}

func (a *CredentialStoreAdapter) open(v string) (string, error) {
	if a.sealer == nil {
		return v, nil
	}
	return a.sealer.OpenString(v)
}
