package config

import (
	"github.com/spf13/viper"
)

// DefaultServerPort is the API listen port when none is configured.
const DefaultServerPort = 8620

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "oncall.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})

	// Dispatcher defaults
	v.SetDefault("dispatcher.interval_seconds", 30)

	// SBC defaults. Verification is off because the appliances present
	// self-signed management certificates.
	v.SetDefault("sbc.timeout_seconds", 10)
	v.SetDefault("sbc.verify_tls", false)
	v.SetDefault("sbc.requests_per_minute", 30)

	// SMTP defaults; an empty host disables notifications
	v.SetDefault("smtp.port", 25)
	v.SetDefault("smtp.from", "oncall-noreply@example.org")
	v.SetDefault("smtp.domain", "example.org")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Gateway management credentials never live in the config file
	v.BindEnv("sbc.username", "ONCALL_SBC_USERNAME")
	v.BindEnv("sbc.password", "ONCALL_SBC_PASSWORD")

	// Database path
	v.BindEnv("database.path", "ONCALL_DATABASE_PATH")

	// SMTP relay
	v.BindEnv("smtp.host", "ONCALL_SMTP_HOST")
}
