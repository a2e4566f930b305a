package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"markestedt/keyblocker/settings"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Settings SettingsConfig `toml:"settings"`
	History  HistoryConfig  `toml:"history"`
	Chime    ChimeConfig    `toml:"chime"`
	Tray     TrayConfig     `toml:"tray"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type SettingsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type HistoryConfig struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

type ChimeConfig struct {
	Enabled bool    `toml:"enabled"`
	Volume  float64 `toml:"volume"`
}

type TrayConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Settings: SettingsConfig{
			Dir:   "",
			Watch: true,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Chime: ChimeConfig{
			Enabled: false,
			Volume:  0.2,
		},
		Tray: TrayConfig{
			Enabled: true,
		},
	}
}

// ConfigDir returns the application directory, creating it if needed
func ConfigDir() (string, error) {
	dir, err := settings.DefaultDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the default TOML file
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads the configuration from path.
// If the file doesn't exist, it creates it with default values
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		cfg := defaultConfig()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg := defaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("Unknown config key", "key", key.String(), "path", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must not be negative, got %d", c.History.RetentionDays)
	}
	if c.Chime.Volume < 0 || c.Chime.Volume > 1 {
		return fmt.Errorf("chime.volume must be between 0 and 1, got %g", c.Chime.Volume)
	}
	return nil
}

// SettingsDir returns the directory holding settings.conf
func (c *Config) SettingsDir() (string, error) {
	if c.Settings.Dir != "" {
		return c.Settings.Dir, nil
	}
	return settings.DefaultDir()
}

// save writes the configuration to the TOML file
func save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// ParseLevel maps a level name to a slog level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "all":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", name)
	}
}
