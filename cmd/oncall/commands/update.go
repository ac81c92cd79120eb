package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/audss/oncall/errors"
	"github.com/audss/oncall/logger"
	"github.com/audss/oncall/sbc"
)

var updateMobileFlag string

// UpdateCmd pushes an on-call number to all hosts immediately.
var UpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Push an on-call number to both SBCs now",
	Long: `Set the on-call forwarding number on both session border controllers
immediately, bypassing the schedule. Each host is updated independently;
a failure on one does not roll back the other.`,
	RunE: runUpdate,
}

func init() {
	UpdateCmd.Flags().StringVar(&updateMobileFlag, "mobile", "", "Mobile number to set (required)")
	UpdateCmd.MarkFlagRequired("mobile")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	updater := buildUpdater(cfg, logger.Logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	spinner, _ := pterm.DefaultSpinner.Start("Updating on-call number on all hosts...")
	outcomes := updater.ApplyNumber(ctx, updateMobileFlag)
	spinner.Stop()

	for _, o := range outcomes {
		if o.OK() {
			pterm.Success.Printf("%s: %s\n", o.Host, o.Message)
		} else {
			pterm.Error.Printf("%s: %s\n", o.Host, o.Message)
		}
	}

	if !sbc.AllSuccessful(outcomes) {
		return errors.Newf("update failed on: %v", sbc.FailedHosts(outcomes))
	}
	return nil
}
