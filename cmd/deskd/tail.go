package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/talhabektas/smartdesk-sub000/internal/app"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

var tailTopics []string

func init() {
	tailCmd.Flags().StringSliceVarP(&tailTopics, "topic", "t", nil, "extra destinations to subscribe to")
	rootCmd.AddCommand(tailCmd)
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Connect and print realtime events until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.WSURL == "" {
			return errors.New("DESKD_WS_URL is required for tail")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := app.Open(ctx, cfg, app.NewLogger(cliLogConfig(cfg)))
		if err != nil {
			return err
		}
		defer c.Close()

		sess := c.Session
		sess.Events.AddEventListener(session.AnyEvent, printEvent)
		sess.Realtime.OnStateChange(func(from, to session.State) {
			color.New(color.Faint).Fprintf(os.Stderr, "# %s -> %s\n", from, to)
		})

		for _, dest := range tailTopics {
			_, err := sess.Realtime.Subscribe(dest, func(m session.Message) {
				if err := sess.Events.DispatchFrame(m.Destination, m.Body); err != nil {
					color.Red("malformed frame on %s: %v\n", m.Destination, err)
				}
			})
			if err != nil {
				return err
			}
		}

		if err := sess.Connect(ctx); err != nil && sess.Realtime.State() != session.StateReconnecting {
			return err
		}

		<-ctx.Done()
		return nil
	},
}

func printEvent(ev session.Event) {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var typ *color.Color
	switch ev.Type {
	case session.EventNotification:
		typ = color.New(color.FgYellow, color.Bold)
	case session.EventTicketUpdate:
		typ = color.New(color.FgCyan)
	case session.EventChatMessage:
		typ = color.New(color.FgGreen)
	default:
		typ = color.New(color.FgWhite)
	}

	fmt.Printf("%s ", ts.Local().Format("15:04:05"))
	typ.Printf("%-14s", ev.Type)
	fmt.Printf(" %s %s\n", color.New(color.Faint).Sprint(ev.Destination), string(ev.Data))
}
