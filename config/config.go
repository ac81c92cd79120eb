package config

import (
	"time"

	"github.com/audss/oncall/notify"
	"github.com/audss/oncall/sbc"
)

// Config represents the full service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	SBC        SBCConfig        `mapstructure:"sbc"`
	SMTP       notify.Config    `mapstructure:"smtp"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// DispatcherConfig configures the schedule dispatch loop.
type DispatcherConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"` // How often to check for due schedules (default: 30)
}

// SBCConfig configures access to the gateway hosts. Username and
// password come from the environment in production; the target list is
// fixed per deployment.
type SBCConfig struct {
	Username          string       `mapstructure:"username"`
	Password          string       `mapstructure:"password"`
	TimeoutSeconds    int          `mapstructure:"timeout_seconds"`
	VerifyTLS         bool         `mapstructure:"verify_tls"`
	RequestsPerMinute int          `mapstructure:"requests_per_minute"`
	Targets           []sbc.Target `mapstructure:"targets"`
}

// Interval returns the dispatcher interval as a duration.
func (c DispatcherConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout returns the per-call gateway timeout as a duration.
func (c SBCConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EffectiveTargets returns the configured targets, falling back to the
// built-in production pair when none are configured.
func (c SBCConfig) EffectiveTargets() []sbc.Target {
	if len(c.Targets) > 0 {
		return c.Targets
	}
	return sbc.DefaultTargets()
}

// GetDatabasePath returns the configured database path.
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "oncall.db" // Fallback default
	}
	return c.Database.Path
}

// GetServerAllowedOrigins returns the allowed CORS origins.
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return []string{
			"http://localhost",
			"https://localhost",
			"http://127.0.0.1",
			"https://127.0.0.1",
		}
	}
	return c.Server.AllowedOrigins
}
