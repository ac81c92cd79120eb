package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/audss/oncall/config"
	"github.com/audss/oncall/logger"
	"github.com/audss/oncall/notify"
	"github.com/audss/oncall/oncall"
	"github.com/audss/oncall/roster"
	"github.com/audss/oncall/schedule"
	"github.com/audss/oncall/server"
)

// ServeCmd starts the API server and the schedule dispatcher.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and schedule dispatcher",
	Long: `Start the HTTP API, the WebSocket event stream, and the background
dispatcher that applies due schedules to the SBC pair.

The server watches its config file; SBC credentials and targets take
effect on save without a restart.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Logger

	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	people := roster.NewStore(database)
	jobs := schedule.NewStore(database)
	updater := buildUpdater(cfg, log)
	mailer := notify.NewMailer(cfg.SMTP, log)
	svc := oncall.NewService(people, jobs, updater, mailer, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := schedule.NewDispatcherWithContext(ctx, jobs, people, updater, nil,
		schedule.DispatcherConfig{Interval: cfg.Dispatcher.Interval()}, logger.Named("dispatch"))

	srv := server.New(svc, dispatcher, server.Options{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.GetServerAllowedOrigins(),
	}, logger.Named("http"))
	dispatcher.SetBroadcaster(srv.Hub())

	// Hot reload: credential or target edits swap the gateway clients
	// without touching in-flight operations.
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath)
		if err != nil {
			log.Warnw("Config watcher unavailable", "path", configPath, "error", err)
		} else {
			watcher.OnReload(func(newCfg *config.Config) error {
				updater.SetGateways(buildGateways(newCfg, log))
				log.Infow("Gateway clients reloaded",
					"targets", len(newCfg.SBC.EffectiveTargets()))
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	dispatcher.Start()
	defer dispatcher.Stop()

	return srv.Start(ctx)
}
