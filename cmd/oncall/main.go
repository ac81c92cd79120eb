package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/audss/oncall/cmd/oncall/commands"
	"github.com/audss/oncall/logger"
)

var rootCmd = &cobra.Command{
	Use:   "oncall",
	Short: "On-call number synchronization for the SBC pair",
	Long: `oncall - Roster and schedule driven on-call number synchronization.

Keeps the forwarding number on both session border controllers in step
with the on-call roster: immediate pushes, scheduled handovers, and a
small HTTP API for the web frontend.

Examples:
  oncall serve                      # Start API server and dispatcher
  oncall status                     # Show current number on each SBC
  oncall update --mobile 61400111222  # Push a number immediately
  oncall db migrate                 # Apply database migrations`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs instead of console output")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: nearest oncall.toml)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.UpdateCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
