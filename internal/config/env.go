package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds overrides read from NBACK_* environment variables.
type EnvConfig struct {
	ConfigPath string `env:"NBACK_CONFIG"`
	DBPath     string `env:"NBACK_DB"`
	LogPath    string `env:"NBACK_LOG"`
	LogLevel   string `env:"NBACK_LOG_LEVEL" envDefault:"info"`
	SpeechCmd  string `env:"NBACK_SPEECH_CMD"`
}

// LoadEnv parses NBACK_* variables and fills unset paths with XDG defaults.
func LoadEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = DefaultConfigPath()
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	if cfg.LogPath == "" {
		cfg.LogPath = DefaultLogPath()
	}
	return cfg, nil
}
