package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talhabektas/smartdesk-sub000/pkg/jwtx/jwtxtest"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
	"github.com/talhabektas/smartdesk-sub000/pkg/slogx"
)

func testConfig(t *testing.T) Config {
	cfg := defaultConfig()
	dir := t.TempDir()
	cfg.APIBaseURL = "http://127.0.0.1:1"
	cfg.DatabaseFile = filepath.Join(dir, "deskd.db")
	cfg.MasterKeyPath = filepath.Join(dir, "deskd.key")
	return cfg
}

func TestOpenPersistsSealedSession(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	c, err := Open(ctx, cfg, slogx.Discard())
	require.NoError(t, err)

	access := jwtxtest.Token(t, "42", time.Now().Add(time.Hour))
	refresh := jwtxtest.Token(t, "42", time.Now().Add(24*time.Hour))
	require.NoError(t, c.Session.Tokens.SetTokens(ctx, access, refresh))
	require.NoError(t, c.Session.Tokens.SetUser(ctx, &session.UserProfile{ID: "42", Email: "ada@example.com"}))
	require.NoError(t, c.Close())

	// The key file was generated on first use.
	_, err = os.Stat(cfg.MasterKeyPath)
	require.NoError(t, err)

	// Tokens are not stored in the clear, neither in the database nor its WAL.
	files, err := filepath.Glob(cfg.DatabaseFile + "*")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		raw, err := os.ReadFile(f)
		require.NoError(t, err)
		require.NotContains(t, string(raw), access, f)
	}

	c, err = Open(ctx, cfg, slogx.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	got, err := c.Session.Tokens.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, access, got)

	id, err := c.Session.Identity(ctx)
	require.NoError(t, err)
	require.Equal(t, "42", id)
}

func TestOpenMemoryDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseFile = MemoryDatabase

	c, err := Open(context.Background(), cfg, slogx.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.Nil(t, c.DB)

	// No realtime endpoint configured.
	require.NoError(t, c.Session.Tokens.SetTokens(context.Background(),
		jwtxtest.Token(t, "42", time.Now().Add(time.Hour)),
		jwtxtest.Token(t, "42", time.Now().Add(24*time.Hour)),
	))
	err = c.Session.Connect(context.Background())
	require.ErrorIs(t, err, errRealtimeDisabled)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIBaseURL = ""
	_, err := Open(context.Background(), cfg, slogx.Discard())
	require.Error(t, err)
}
