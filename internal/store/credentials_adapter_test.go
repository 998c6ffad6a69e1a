package store_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/talhabektas/smartdesk-sub000/internal/store"
	"github.com/talhabektas/smartdesk-sub000/internal/store/drivers/sqlite"
	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
	"github.com/talhabektas/smartdesk-sub000/pkg/cryptox"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(sqlite.DSN(path))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	return s
}

func newSealer(t *testing.T, material string) *cryptox.Sealer {
	t.Helper()
	s, err := cryptox.NewSealer([]byte(material), []byte("deskd"))
	require.NoError(t, err)
	return s
}

func TestAdapterRoundTripSealed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "deskd.db")
	fake := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	db := openStore(t, path)
	creds := store.NewCredentialStoreAdapter(db, newSealer(t, "master"), fake)

	rec, err := creds.Load(ctx)
	require.NoError(t, err)
	require.False(t, rec.HasTokens())

	require.NoError(t, creds.SaveTokens(ctx, "access-1", "refresh-1"))
	require.NoError(t, creds.SaveUser(ctx, &session.UserProfile{ID: "7", Email: "ada@example.com", FirstName: "Ada"}))

	// Raw columns must not carry the plaintext.
	row, err := db.Credentials().GetCredentials(ctx)
	require.NoError(t, err)
	require.NotContains(t, row.AccessToken, "access-1")
	require.False(t, strings.Contains(row.UserProfile, "ada@example.com"))

	rec, err = creds.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "access-1", rec.AccessToken)
	require.Equal(t, "refresh-1", rec.RefreshToken)
	require.Equal(t, "Ada", rec.User.DisplayName())
	require.EqualValues(t, 2, rec.Revision)
	require.NoError(t, creds.Close())

	// Survives a restart with the same key.
	reopened := store.NewCredentialStoreAdapter(openStore(t, path), newSealer(t, "master"), fake)
	t.Cleanup(func() { _ = reopened.Close() })
	rec, err = reopened.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", rec.RefreshToken)
}

func TestAdapterWrongKeyFailsLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "deskd.db")

	writer := store.NewCredentialStoreAdapter(openStore(t, path), newSealer(t, "k1"), nil)
	require.NoError(t, writer.SaveTokens(ctx, "a", "r"))
	require.NoError(t, writer.Close())

	reader := store.NewCredentialStoreAdapter(openStore(t, path), newSealer(t, "k2"), nil)
	t.Cleanup(func() { _ = reader.Close() })
	_, err := reader.Load(ctx)
	require.ErrorIs(t, err, cryptox.ErrDecryptionFailed)

	// Clearing still works so the user can sign in again.
	require.NoError(t, reader.Clear(ctx))
	rec, err := reader.Load(ctx)
	require.NoError(t, err)
	require.False(t, rec.HasTokens())
}

func TestAdapterPlaintextAndClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	creds := store.NewCredentialStoreAdapter(openStore(t, filepath.Join(t.TempDir(), "deskd.db")), nil, nil)
	t.Cleanup(func() { _ = creds.Close() })

	require.ErrorIs(t, creds.SaveTokens(ctx, "a", ""), session.ErrIncompletePair)

	require.NoError(t, creds.SaveTokens(ctx, "a", "r"))
	require.NoError(t, creds.SaveUser(ctx, nil))
	require.NoError(t, creds.Clear(ctx))

	rec, err := creds.Load(ctx)
	require.NoError(t, err)
	require.False(t, rec.HasTokens())
	require.Nil(t, rec.User)
	require.EqualValues(t, 3, rec.Revision)
}

func TestAdapterDrivesTokenManager(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	creds := store.NewCredentialStoreAdapter(openStore(t, filepath.Join(t.TempDir(), "deskd.db")), newSealer(t, "m"), nil)
	t.Cleanup(func() { _ = creds.Close() })

	tokens := session.NewTokenManager(session.TokenManagerConfig{Store: creds, OpaqueRefreshTokens: true})
	require.NoError(t, tokens.SetTokens(ctx, "a", "r"))

	access, err := tokens.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", access)

	require.NoError(t, tokens.ClearTokens(ctx))
	access, err = tokens.AccessToken(ctx)
	require.NoError(t, err)
	require.Empty(t, access)
}
