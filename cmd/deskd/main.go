// Command deskd keeps a helpdesk session alive: it stores and refreshes the
// backend credentials, holds the realtime connection and serves a local
// control API.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/talhabektas/smartdesk-sub000/internal/app"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "deskd",
	Short:         "Helpdesk session daemon",
	Long:          "deskd owns the helpdesk credentials, refreshes them before they expire and keeps the realtime connection open.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       app.BuildVersion,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "TOML config file (default: $DESKD_CONFIG)")
}

// loadConfig resolves the config file flag against DESKD_CONFIG.
func loadConfig() (app.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("DESKD_CONFIG")
	}
	return app.LoadConfigFile(path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func printField(label, value string) {
	color.New(color.FgCyan).Printf("  %-14s", label+":")
	fmt.Println(value)
}
