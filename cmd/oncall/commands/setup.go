package commands

import (
	"database/sql"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/audss/oncall/config"
	"github.com/audss/oncall/db"
	"github.com/audss/oncall/errors"
	"github.com/audss/oncall/logger"
	"github.com/audss/oncall/sbc"
)

// loadConfig resolves the --config flag and loads configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to load configuration")
	}
	return cfg, path, nil
}

// openDatabase opens and migrates the SQLite database.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(cfg.GetDatabasePath(), logger.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.Migrate(conn, logger.Logger); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return conn, nil
}

// buildGateways creates one client per configured target.
func buildGateways(cfg *config.Config, log *zap.SugaredLogger) []sbc.Gateway {
	targets := cfg.SBC.EffectiveTargets()
	gateways := make([]sbc.Gateway, 0, len(targets))
	for _, target := range targets {
		gateways = append(gateways, sbc.NewClient(sbc.ClientConfig{
			Target: target,
			Credentials: sbc.Credentials{
				Username: cfg.SBC.Username,
				Password: cfg.SBC.Password,
			},
			Timeout:           cfg.SBC.Timeout(),
			VerifyTLS:         cfg.SBC.VerifyTLS,
			RequestsPerMinute: cfg.SBC.RequestsPerMinute,
		}, log))
	}
	return gateways
}

// buildUpdater creates the fan-out updater over all configured targets.
func buildUpdater(cfg *config.Config, log *zap.SugaredLogger) *sbc.Updater {
	return sbc.NewUpdater(buildGateways(cfg, log), log)
}
