package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DbCmd groups database maintenance commands.
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the oncall database",
	Long: `Database maintenance operations.

Examples:
  oncall db migrate      # Apply pending schema migrations
  oncall db stats        # Show roster and schedule counts`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show roster and schedule statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// openDatabase migrates as part of opening
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Println("Database is up to date")
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	var people int
	if err := database.QueryRow(`SELECT COUNT(*) FROM oncall_users`).Scan(&people); err != nil {
		return fmt.Errorf("failed to count people: %w", err)
	}

	fmt.Printf("Database Path: %s\n", cfg.GetDatabasePath())
	fmt.Printf("People:        %d\n", people)

	rows, err := database.Query(`SELECT status, COUNT(*) FROM oncall_schedules GROUP BY status ORDER BY status`)
	if err != nil {
		return fmt.Errorf("failed to count schedules: %w", err)
	}
	defer rows.Close()

	fmt.Println("Schedules:")
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return fmt.Errorf("failed to scan schedule count: %w", err)
		}
		fmt.Printf("  %-12s %d\n", status, count)
	}
	return rows.Err()
}
