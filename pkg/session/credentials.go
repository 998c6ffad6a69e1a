package session

import (
	"context"
	"sync"
	"time"

	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
)

// CredentialStore persists the credential record. Implementations must
// write both tokens in one step and bump Record.Revision on every write.
// Load must never return a partial token pair.
type CredentialStore interface {
	Load(ctx context.Context) (Record, error)
	SaveTokens(ctx context.Context, accessToken, refreshToken string) error
	SaveUser(ctx context.Context, user *UserProfile) error
	Clear(ctx context.Context) error
	Close() error
}

// MemoryStore is a process-local CredentialStore, used for ephemeral
// sessions and tests.
type MemoryStore struct {
	clock clock.Clock

	mu  sync.RWMutex
	rec Record
}

var _ CredentialStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. A nil clock means the real clock.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.Real()
	}
	return &MemoryStore{clock: c}
}

func (s *MemoryStore) Load(_ context.Context) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.rec
	if rec.User != nil {
		u := *rec.User
		rec.User = &u
	}
	return rec.Normalized(), nil
}

func (s *MemoryStore) SaveTokens(_ context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return ErrIncompletePair
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.AccessToken = accessToken
	s.rec.RefreshToken = refreshToken
	s.touchLocked()
	return nil
}

func (s *MemoryStore) SaveUser(_ context.Context, user *UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.rec.User = nil
	} else {
		u := *user
		s.rec.User = &u
	}
	s.touchLocked()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.AccessToken = ""
	s.rec.RefreshToken = ""
	s.rec.User = nil
	s.touchLocked()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) touchLocked() {
	s.rec.Revision++
	s.rec.UpdatedAt = s.clock.Now().UTC().Truncate(time.Millisecond)
}
