package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/talhabektas/smartdesk-sub000/internal/app"
	"github.com/talhabektas/smartdesk-sub000/pkg/deskapi"
)

var (
	statusRemote bool
	statusAddr   string
	statusToken  string
)

func init() {
	statusCmd.Flags().BoolVar(&statusRemote, "remote", false, "ask the running daemon instead of reading the store")
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "daemon control API base URL (default: from config)")
	statusCmd.Flags().StringVar(&statusToken, "token", "", "control token (default: $DESKD_CONTROL_TOKEN)")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session and, with --remote, the daemon state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if statusRemote {
			return remoteStatus(ctx, cfg)
		}
		return localStatus(ctx, cfg)
	},
}

func localStatus(ctx context.Context, cfg app.Config) error {
	c, err := app.Open(ctx, cfg, app.NewLogger(cliLogConfig(cfg)))
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Println("Configuration:")
	printField("Backend", cfg.APIBaseURL)
	printField("Realtime", valueOrDefault(cfg.WSURL, "(disabled)"))
	printField("Database", cfg.DatabaseFile)
	fmt.Println()

	fmt.Println("Session:")
	tokens := c.Session.Tokens
	access, err := tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	if access == "" {
		printField("State", color.YellowString("logged out"))
		return nil
	}

	state := color.GreenString("valid")
	switch {
	case tokens.IsExpired(access):
		state = color.RedString("expired (refreshed on next use)")
	case tokens.IsExpiringSoon(access):
		state = color.YellowString("expiring soon")
	}
	printField("State", state)

	if user, err := tokens.User(ctx); err == nil && user != nil {
		printField("User", fmt.Sprintf("%s <%s>", user.DisplayName(), user.Email))
		printField("Role", valueOrDefault(user.Role, "-"))
	}
	if claims, err := tokens.Claims(ctx); err == nil {
		if exp, ok := claims.Expiry(); ok {
			printField("Expires", exp.Local().Format(time.RFC3339))
		}
	}
	return nil
}

func remoteStatus(ctx context.Context, cfg app.Config) error {
	addr := statusAddr
	if addr == "" {
		addr = "http://" + cfg.ControlAddr
	}
	token := statusToken
	if token == "" {
		token = os.Getenv("DESKD_CONTROL_TOKEN")
	}
	client := deskapi.NewClient(addr, token)

	health, err := client.Readyz(ctx)
	if err != nil {
		fmt.Print("  Daemon:       ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	printField("Daemon", fmt.Sprintf("%s %s, up %s", health.Status, health.Version, health.Uptime))

	sess, err := client.Session(ctx)
	if err != nil {
		return err
	}
	if !sess.LoggedIn {
		printField("Session", color.YellowString("logged out"))
	} else if sess.User != nil {
		printField("Session", fmt.Sprintf("%s <%s>", sess.User.DisplayName, sess.User.Email))
	} else {
		printField("Session", valueOrDefault(sess.Subject, "logged in"))
	}

	rt, err := client.Realtime(ctx)
	if err != nil {
		return err
	}
	printField("Realtime", rt.State)
	for _, s := range rt.Subscriptions {
		printField("  sub", fmt.Sprintf("%s %s (active=%t)", s.ID, s.Destination, s.Active))
	}

	inbox, err := client.Notifications(ctx)
	if err != nil {
		return err
	}
	printField("Unread", fmt.Sprintf("%d", inbox.Unread))
	return nil
}
