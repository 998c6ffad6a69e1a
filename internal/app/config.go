package app

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

// MemoryDatabase keeps credentials in memory only; nothing survives a restart.
const MemoryDatabase = ":memory:"

type Config struct {
	APIBaseURL    string // Required: helpdesk REST base URL
	WSURL         string // Required for realtime: ws:// or wss:// STOMP endpoint
	StompHost     string // Optional: STOMP virtual host (default: /)
	StompLogin    string // Optional: broker login sent next to the bearer token
	StompPasscode string // Optional
	TOTPSecret    string // Optional: base32 secret, adds a one time code to logins

	DatabaseFile  string // Optional: sqlite file, or ":memory:" (default: ./deskd.db)
	MasterKey     string // Optional: key material sealing stored tokens
	MasterKeyPath string // Optional: key file, generated when missing (default: ./deskd.key)

	ControlAddr  string // Control API listen address (default: 127.0.0.1:7070)
	ControlToken string // Optional: bearer token for /v1 routes

	RefreshWindow        time.Duration // Refresh this long before expiry (default: 5m)
	RefreshTimeout       time.Duration // Bound on one refresh call (default: 15s)
	HTTPTimeout          time.Duration // Backend request timeout (default: 30s)
	OpaqueRefreshTokens  bool          // Refresh tokens are not JWTs, skip their expiry check
	ReconnectBase        time.Duration // Linear backoff base (default: 3s)
	ReconnectMaxAttempts int           // Reconnect budget (default: 5)
	Destinations         session.Destinations

	InboxCapacity         int           // Notifications kept (default: 100)
	NotificationRetention time.Duration // Stored notifications older than this are removed (default: 7 days)
	HousekeepingInterval  time.Duration // Housekeeping interval (default: 1h)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

// fileConfig mirrors Config for the TOML overlay. Durations are strings
// ("90s", "5m") so files stay readable.
type fileConfig struct {
	APIBaseURL    string `toml:"api_base_url"`
	WSURL         string `toml:"ws_url"`
	StompHost     string `toml:"stomp_host"`
	StompLogin    string `toml:"stomp_login"`
	StompPasscode string `toml:"stomp_passcode"`
	TOTPSecret    string `toml:"totp_secret"`

	DatabaseFile  string `toml:"database_file"`
	MasterKeyPath string `toml:"master_key_path"`

	ControlAddr  string `toml:"control_addr"`
	ControlToken string `toml:"control_token"`

	RefreshWindow        string `toml:"refresh_window"`
	RefreshTimeout       string `toml:"refresh_timeout"`
	HTTPTimeout          string `toml:"http_timeout"`
	OpaqueRefreshTokens  *bool  `toml:"opaque_refresh_tokens"`
	ReconnectBase        string `toml:"reconnect_base"`
	ReconnectMaxAttempts int    `toml:"reconnect_max_attempts"`

	Destinations session.Destinations `toml:"destinations"`

	InboxCapacity         int    `toml:"inbox_capacity"`
	NotificationRetention string `toml:"notification_retention"`
	HousekeepingInterval  string `toml:"housekeeping_interval"`

	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

func defaultConfig() Config {
	return Config{
		DatabaseFile:          "deskd.db",
		MasterKeyPath:         "deskd.key",
		ControlAddr:           "127.0.0.1:7070",
		RefreshWindow:         session.DefaultRefreshWindow,
		RefreshTimeout:        session.DefaultRefreshTimeout,
		HTTPTimeout:           30 * time.Second,
		ReconnectBase:         session.DefaultReconnectBase,
		ReconnectMaxAttempts:  session.DefaultMaxReconnectAttempts,
		Destinations:          session.DefaultDestinations(),
		InboxCapacity:         100,
		NotificationRetention: 7 * 24 * time.Hour,
		HousekeepingInterval:  1 * time.Hour,
		Env:                   "dev",
		LogLevel:              "info",
		LogFormat:             "json",
		ShutdownGracePeriod:   10 * time.Second,
	}
}

// LoadConfig reads the file named by DESKD_CONFIG, if any, and then the
// environment. Environment variables win over the file.
func LoadConfig() (Config, error) {
	return LoadConfigFile(os.Getenv("DESKD_CONFIG"))
}

// LoadConfigFile is LoadConfig with an explicit file. An empty path skips
// the file.
func LoadConfigFile(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := toml.Unmarshal(raw, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if err := cfg.overlay(fc); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) overlay(fc fileConfig) error {
	setString(&c.APIBaseURL, fc.APIBaseURL)
	setString(&c.WSURL, fc.WSURL)
	setString(&c.StompHost, fc.StompHost)
	setString(&c.StompLogin, fc.StompLogin)
	setString(&c.StompPasscode, fc.StompPasscode)
	setString(&c.TOTPSecret, fc.TOTPSecret)
	setString(&c.DatabaseFile, fc.DatabaseFile)
	setString(&c.MasterKeyPath, fc.MasterKeyPath)
	setString(&c.ControlAddr, fc.ControlAddr)
	setString(&c.ControlToken, fc.ControlToken)
	setString(&c.Env, fc.Env)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)

	if fc.OpaqueRefreshTokens != nil {
		c.OpaqueRefreshTokens = *fc.OpaqueRefreshTokens
	}
	if fc.ReconnectMaxAttempts > 0 {
		c.ReconnectMaxAttempts = fc.ReconnectMaxAttempts
	}
	if fc.InboxCapacity > 0 {
		c.InboxCapacity = fc.InboxCapacity
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"refresh_window", fc.RefreshWindow, &c.RefreshWindow},
		{"refresh_timeout", fc.RefreshTimeout, &c.RefreshTimeout},
		{"http_timeout", fc.HTTPTimeout, &c.HTTPTimeout},
		{"reconnect_base", fc.ReconnectBase, &c.ReconnectBase},
		{"notification_retention", fc.NotificationRetention, &c.NotificationRetention},
		{"housekeeping_interval", fc.HousekeepingInterval, &c.HousekeepingInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	dest := fc.Destinations
	setString(&c.Destinations.Global, dest.Global)
	setString(&c.Destinations.UserNotifications, dest.UserNotifications)
	setString(&c.Destinations.UserTickets, dest.UserTickets)
	setString(&c.Destinations.ChatSend, dest.ChatSend)
	setString(&c.Destinations.ChatTyping, dest.ChatTyping)
	return nil
}

func (c *Config) applyEnv() {
	c.APIBaseURL = getEnvOrDefault("DESKD_API_BASE_URL", c.APIBaseURL)
	c.WSURL = getEnvOrDefault("DESKD_WS_URL", c.WSURL)
	c.StompHost = getEnvOrDefault("DESKD_STOMP_HOST", c.StompHost)
	c.StompLogin = getEnvOrDefault("DESKD_STOMP_LOGIN", c.StompLogin)
	c.StompPasscode = getEnvOrDefault("DESKD_STOMP_PASSCODE", c.StompPasscode)
	c.TOTPSecret = getEnvOrDefault("DESKD_TOTP_SECRET", c.TOTPSecret)

	c.DatabaseFile = getEnvOrDefault("DESKD_DATABASE_FILE", c.DatabaseFile)
	c.MasterKey = os.Getenv("DESKD_MASTER_KEY") // env only, never from a file
	c.MasterKeyPath = getEnvOrDefault("DESKD_MASTER_KEY_PATH", c.MasterKeyPath)

	c.ControlAddr = getEnvOrDefault("DESKD_CONTROL_ADDR", c.ControlAddr)
	c.ControlToken = getEnvOrDefault("DESKD_CONTROL_TOKEN", c.ControlToken)

	c.RefreshWindow = getEnvDurationOrDefault("DESKD_REFRESH_WINDOW", c.RefreshWindow)
	c.RefreshTimeout = getEnvDurationOrDefault("DESKD_REFRESH_TIMEOUT", c.RefreshTimeout)
	c.HTTPTimeout = getEnvDurationOrDefault("DESKD_HTTP_TIMEOUT", c.HTTPTimeout)
	c.OpaqueRefreshTokens = getEnvBoolOrDefault("DESKD_OPAQUE_REFRESH_TOKENS", c.OpaqueRefreshTokens)
	c.ReconnectBase = getEnvDurationOrDefault("DESKD_RECONNECT_BASE", c.ReconnectBase)
	c.ReconnectMaxAttempts = getEnvIntOrDefault("DESKD_RECONNECT_MAX_ATTEMPTS", c.ReconnectMaxAttempts)

	c.Destinations.Global = getEnvOrDefault("DESKD_TOPIC_GLOBAL", c.Destinations.Global)
	c.Destinations.UserNotifications = getEnvOrDefault("DESKD_TOPIC_USER_NOTIFICATIONS", c.Destinations.UserNotifications)
	c.Destinations.UserTickets = getEnvOrDefault("DESKD_TOPIC_USER_TICKETS", c.Destinations.UserTickets)
	c.Destinations.ChatSend = getEnvOrDefault("DESKD_TOPIC_CHAT_SEND", c.Destinations.ChatSend)
	c.Destinations.ChatTyping = getEnvOrDefault("DESKD_TOPIC_CHAT_TYPING", c.Destinations.ChatTyping)

	c.InboxCapacity = getEnvIntOrDefault("DESKD_INBOX_CAPACITY", c.InboxCapacity)
	c.NotificationRetention = getEnvDurationOrDefault("DESKD_NOTIFICATION_RETENTION", c.NotificationRetention)
	c.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", c.HousekeepingInterval)

	c.Env = getEnvOrDefault("ENV", c.Env)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
	c.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", c.ShutdownGracePeriod)
}

// Validate checks what every command needs. The realtime URL is only
// checked by the commands that connect.
func (c Config) Validate() error {
	var errs []error
	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("DESKD_API_BASE_URL is required"))
	}
	if c.ReconnectMaxAttempts < 1 {
		errs = append(errs, errors.New("reconnect max attempts must be at least 1"))
	}
	if c.InboxCapacity < 1 {
		errs = append(errs, errors.New("inbox capacity must be at least 1"))
	}
	return errors.Join(errs...)
}

// ControlOnLoopback reports whether the control API only listens locally.
func (c Config) ControlOnLoopback() bool {
	host, _, err := net.SplitHostPort(c.ControlAddr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
