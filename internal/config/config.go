// Package config loads user settings for the qiyicube CLI.
//
// Settings live in a YAML file at:
//   - Linux: $XDG_CONFIG_HOME/qiyicube/config.yaml or $HOME/.config/qiyicube/config.yaml
//   - macOS: $HOME/.config/qiyicube/config.yaml
//   - Windows: %LOCALAPPDATA%\qiyicube\config.yaml
//
// Files ending in .toml are read and written as TOML instead.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "qiyicube"
	configFile = "config.yaml"
	dbFile     = "qiyicube.db"

	// DefaultScanTimeout is used when scan_timeout is empty.
	DefaultScanTimeout = 20 * time.Second
)

// Config holds user settings. CLI flags override these values.
type Config struct {
	Address              string `yaml:"address,omitempty" toml:"address,omitempty"`
	DBPath               string `yaml:"db_path,omitempty" toml:"db_path,omitempty"`
	LogLevel             string `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	VerifyCRC            bool   `yaml:"verify_crc" toml:"verify_crc"`
	ScanTimeout          string `yaml:"scan_timeout,omitempty" toml:"scan_timeout,omitempty"`
	RequestSyncOnConnect bool   `yaml:"request_sync_on_connect" toml:"request_sync_on_connect"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		ScanTimeout: DefaultScanTimeout.String(),
	}
}

// Dir returns the OS-appropriate configuration directory.
func Dir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, appName), nil
		}
		profile := os.Getenv("USERPROFILE")
		if profile == "" {
			return "", errors.New("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(profile, "AppData", "Local", appName), nil
	case "darwin":
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// DefaultPath returns the path of the default config file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// DefaultDBPath returns the path of the session database next to the config.
func DefaultDBPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dbFile), nil
}

// Load reads the file at path. A missing file yields Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path atomically, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	} else {
		data, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		buf.WriteString("# qiyicube configuration\n\n")
		buf.Write(data)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// Validate checks field formats.
func (c *Config) Validate() error {
	if _, err := c.ScanTimeoutDuration(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// ScanTimeoutDuration parses scan_timeout, falling back to DefaultScanTimeout.
func (c *Config) ScanTimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(c.ScanTimeout) == "" {
		return DefaultScanTimeout, nil
	}
	d, err := time.ParseDuration(c.ScanTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid scan_timeout %q: %w", c.ScanTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("scan_timeout must be positive, got %s", d)
	}
	return d, nil
}

// ResolveDBPath returns db_path, or the default database path when unset.
func (c *Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	return DefaultDBPath()
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
