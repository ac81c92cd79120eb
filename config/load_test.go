package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "oncall.db", cfg.GetDatabasePath())
	assert.Equal(t, 30*time.Second, cfg.Dispatcher.Interval())
	assert.Equal(t, 10*time.Second, cfg.SBC.Timeout())
	assert.False(t, cfg.SBC.VerifyTLS)

	// Built-in production pair when no targets are configured
	targets := cfg.SBC.EffectiveTargets()
	require.Len(t, targets, 2)
	assert.Equal(t, "pernetgw01", targets[0].Name)
	assert.Equal(t, "parnetgw01", targets[1].Name)
}

func TestLoadFromFileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 9000

[database]
path = "/var/lib/oncall/oncall.db"

[dispatcher]
interval_seconds = 5

[sbc]
timeout_seconds = 3
requests_per_minute = 10

[[sbc.targets]]
name = "labgw01"
host = "labgw01.lab.example.org"
resource = "transformationtable/5/transformationentry/9"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/var/lib/oncall/oncall.db", cfg.GetDatabasePath())
	assert.Equal(t, 5*time.Second, cfg.Dispatcher.Interval())
	assert.Equal(t, 3*time.Second, cfg.SBC.Timeout())
	assert.Equal(t, 10, cfg.SBC.RequestsPerMinute)

	targets := cfg.SBC.EffectiveTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, "labgw01", targets[0].Name)
	assert.Equal(t, "transformationtable/5/transformationentry/9", targets[0].Resource)
}

func TestCredentialsFromEnvironment(t *testing.T) {
	t.Setenv("ONCALL_SBC_USERNAME", "restadmin")
	t.Setenv("ONCALL_SBC_PASSWORD", "hunter2")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, "restadmin", cfg.SBC.Username)
	assert.Equal(t, "hunter2", cfg.SBC.Password)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}
