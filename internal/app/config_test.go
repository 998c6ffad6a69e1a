package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deskd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DESKD_API_BASE_URL", "http://desk.local/api")

	cfg, err := LoadConfigFile("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "http://desk.local/api", cfg.APIBaseURL)
	require.Equal(t, 5*time.Minute, cfg.RefreshWindow)
	require.Equal(t, 3*time.Second, cfg.ReconnectBase)
	require.Equal(t, 5, cfg.ReconnectMaxAttempts)
	require.Equal(t, session.DefaultDestinations(), cfg.Destinations)
	require.True(t, cfg.ControlOnLoopback())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := writeFile(t, `
api_base_url = "http://file/api"
ws_url = "ws://file/ws"
reconnect_base = "500ms"
reconnect_max_attempts = 3
opaque_refresh_tokens = true
control_addr = "0.0.0.0:9000"

[destinations]
global = "/topic/everyone"
`)
	t.Setenv("DESKD_WS_URL", "ws://env/ws")
	t.Setenv("DESKD_REFRESH_WINDOW", "90") // bare seconds

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	require.Equal(t, "http://file/api", cfg.APIBaseURL)
	require.Equal(t, "ws://env/ws", cfg.WSURL, "env wins over file")
	require.Equal(t, 500*time.Millisecond, cfg.ReconnectBase)
	require.Equal(t, 3, cfg.ReconnectMaxAttempts)
	require.Equal(t, 90*time.Second, cfg.RefreshWindow)
	require.True(t, cfg.OpaqueRefreshTokens)
	require.False(t, cfg.ControlOnLoopback())

	require.Equal(t, "/topic/everyone", cfg.Destinations.Global)
	require.Equal(t, session.DefaultDestinations().UserTickets, cfg.Destinations.UserTickets)
}

func TestLoadConfigRejectsBadFile(t *testing.T) {
	_, err := LoadConfigFile(writeFile(t, `reconnect_base = "soon"`))
	require.ErrorContains(t, err, "reconnect_base")

	_, err = LoadConfigFile(writeFile(t, `not toml at all =`))
	require.Error(t, err)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.ErrorContains(t, cfg.Validate(), "DESKD_API_BASE_URL")

	cfg.APIBaseURL = "http://x"
	cfg.ReconnectMaxAttempts = 0
	require.ErrorContains(t, cfg.Validate(), "reconnect")
}
