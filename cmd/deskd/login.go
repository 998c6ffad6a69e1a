package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/talhabektas/smartdesk-sub000/internal/app"
)

var (
	loginEmail         string
	loginPasswordStdin bool
)

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email (prompted when empty)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Long:  "Exchanges email and password for a token pair and stores it where the daemon will pick it up.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		email, password, err := readCredentials()
		if err != nil {
			return err
		}

		ctx := context.Background()
		c, err := app.Open(ctx, cfg, app.NewLogger(cliLogConfig(cfg)))
		if err != nil {
			return err
		}
		defer c.Close()

		user, err := c.Session.Login(ctx, email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		color.Green("Logged in as %s\n", user.DisplayName())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		c, err := app.Open(ctx, cfg, app.NewLogger(cliLogConfig(cfg)))
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Session.Logout(ctx); err != nil {
			return err
		}
		color.Green("Logged out\n")
		return nil
	},
}

// cliLogConfig keeps one-shot commands quiet unless asked otherwise.
func cliLogConfig(cfg app.Config) app.Config {
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}
	if os.Getenv("LOG_FORMAT") == "" {
		cfg.LogFormat = "text"
	}
	return cfg
}

func readCredentials() (string, string, error) {
	stdin := bufio.NewReader(os.Stdin)

	email := strings.TrimSpace(loginEmail)
	if email == "" {
		fmt.Fprint(os.Stderr, "Email: ")
		line, err := stdin.ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("reading email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	var password string
	switch {
	case loginPasswordStdin:
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	default:
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", "", errors.New("no terminal available for the password prompt (use --password-stdin)")
		}
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", "", fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	}

	if email == "" || password == "" {
		return "", "", errors.New("email and password are required")
	}
	return email, password, nil
}
