package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/audss/oncall/logger"
	"github.com/audss/oncall/sbc"
)

// StatusCmd queries each gateway host for its current on-call number.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current on-call number on each SBC",
	Long: `Query both session border controllers live and print the on-call
number each one currently has configured.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	updater := buildUpdater(cfg, logger.Logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	spinner, _ := pterm.DefaultSpinner.Start("Querying SBC hosts...")
	outcomes := updater.CurrentStatus(ctx)
	spinner.Stop()

	rows := pterm.TableData{{"Host", "Status", "Number", "Message"}}
	for _, o := range outcomes {
		status := pterm.Green(string(o.Status))
		if !o.OK() {
			status = pterm.Red(string(o.Status))
		}
		rows = append(rows, []string{o.Host, status, o.Number, o.Message})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	if !sbc.AllSuccessful(outcomes) {
		pterm.Warning.Println("One or more hosts could not be queried")
	}
	return nil
}
