// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/nback/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Game GameConfig `toml:"game"`
}

// GameConfig maps game-related settings.
type GameConfig struct {
	Mode         *string `toml:"mode"`
	N            *int    `toml:"n"`
	DelayMs      *int    `toml:"delay-ms"`
	Events       *int    `toml:"events"`
	MatchPercent *int    `toml:"match-pct"`
	Speak        *bool   `toml:"speak"`
	SpeechCmd    *string `toml:"speech-cmd"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// Apply overlays the values set in the file onto cfg.
func (g GameConfig) Apply(cfg model.SessionConfig) (model.SessionConfig, error) {
	if g.Mode != nil {
		mode, err := model.ParseGameMode(*g.Mode)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		cfg.Mode = mode
	}
	if g.N != nil {
		cfg.N = *g.N
	}
	if g.DelayMs != nil {
		cfg.EventDelay = time.Duration(*g.DelayMs) * time.Millisecond
	}
	if g.Events != nil {
		cfg.Events = *g.Events
	}
	if g.MatchPercent != nil {
		cfg.MatchPercent = *g.MatchPercent
	}
	return cfg, nil
}
