package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/audss/oncall/errors"
)

// ConfigFileName is the project-local configuration file.
const ConfigFileName = "oncall.toml"

// LoadFromFile loads configuration from a specific file path. An empty
// path loads defaults and environment variables only. Callers resolve
// the path (flag or FindConfigFile) themselves because they also hand
// it to the config watcher.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("ONCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return &config, nil
}

// FindConfigFile searches for oncall.toml by walking up the directory
// tree from the working directory. Returns empty string if none found.
func FindConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root, stop searching
			break
		}
		dir = parent
	}

	return ""
}
