package realtime_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/talhabektas/smartdesk-sub000/pkg/jwtx/jwtxtest"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
	"github.com/talhabektas/smartdesk-sub000/pkg/slogx"
)

/*
 * End-to-end tests of the STOMP transport against RabbitMQ with the
 * web-stomp plugin. They need Docker and only run with DESKD_E2E=1.
 */

const (
	brokerImage = "rabbitmq:3.13-alpine"
	brokerUser  = "desk"
	brokerPass  = "desk-secret"
)

// RabbitMQ rejects further slashes in /topic names, so the templates use dots.
var brokerDestinations = session.Destinations{
	Global:            "/topic/global",
	UserNotifications: "/topic/user.{identity}.notifications",
	UserTickets:       "/topic/user.{identity}.tickets",
	ChatSend:          "/topic/chat.{ticketId}",
	ChatTyping:        "/topic/chat.{ticketId}.typing",
}

func TestMain(m *testing.M) {
	if os.Getenv("DESKD_E2E") != "1" {
		fmt.Fprintln(os.Stdout, "skipping realtime e2e tests, set DESKD_E2E=1 to run them")
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// setupBroker starts RabbitMQ with web-stomp and returns its ws:// URL.
func setupBroker(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        brokerImage,
		ExposedPorts: []string{"15674/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": brokerUser,
			"RABBITMQ_DEFAULT_PASS": brokerPass,
		},
		Files: []testcontainers.ContainerFile{
			{
				Reader:            strings.NewReader("[rabbitmq_web_stomp].\n"),
				ContainerFilePath: "/etc/rabbitmq/enabled_plugins",
				FileMode:          0o644,
			},
		},
		WaitingFor: wait.ForListeningPort("15674/tcp").WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "15674")
	require.NoError(t, err)

	return fmt.Sprintf("ws://%s:%s/ws", host, port.Port())
}

// newSession returns a session logged in as identity "42" against wsURL.
func newSession(t *testing.T, wsURL string) *session.Session {
	t.Helper()

	tr, err := session.NewStompTransport(session.StompConfig{
		URL:      wsURL,
		Login:    brokerUser,
		Passcode: brokerPass,
		Logger:   slogx.Discard(),
	})
	require.NoError(t, err)

	s, err := session.New(session.Config{
		// The REST side is not exercised here.
		APIBaseURL:    "http://127.0.0.1:1",
		Transport:     tr,
		Destinations:  brokerDestinations,
		ReconnectBase: 200 * time.Millisecond,
		Logger:        slogx.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	ctx := context.Background()
	require.NoError(t, s.Tokens.SetTokens(ctx,
		jwtxtest.Token(t, "42", time.Now().Add(time.Hour)),
		jwtxtest.Token(t, "42", time.Now().Add(24*time.Hour)),
	))
	return s
}
