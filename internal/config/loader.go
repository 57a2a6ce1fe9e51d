package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".flowdeck"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("FLOWDECK_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// StatePath returns the path of a file inside the config directory.
func StatePath(name string) (string, error) {
	cfgPath, err := ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(cfgPath), name), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("FLOWDECK_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load reads the config file (if present) and applies FLOWDECK_* environment
// overrides. A missing file is not an error; defaults apply.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	envconfig.Process("FLOWDECK_GATEWAY", &cfg.Gateway)
	envconfig.Process("FLOWDECK_GRAPH", &cfg.Graph)
	envconfig.Process("FLOWDECK_AUTH", &cfg.Auth)
	envconfig.Process("FLOWDECK_STREAM", &cfg.Stream)
	envconfig.Process("FLOWDECK_NOTIFY", &cfg.Notify)
	envconfig.Process("FLOWDECK_MIRROR", &cfg.Mirror)

	cfg.Normalize()
	return cfg, nil
}

// Default returns a config with built-in defaults applied.
func Default() *Config {
	return &Config{
		Auth:   AuthConfig{Username: "admin"},
		Stream: StreamConfig{Speed: "normal"},
		Graph:  GraphConfig{Database: "neo4j"},
	}
}

// Save writes the config to disk, creating the config directory if needed.
func Save(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg.Normalize()
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// Normalize strips trailing slashes from every stored URL.
func (c *Config) Normalize() {
	c.Gateway.BaseURL = trimURL(c.Gateway.BaseURL)
	c.Gateway.WebhookURL = trimURL(c.Gateway.WebhookURL)
	c.Graph.BaseURL = trimURL(c.Graph.BaseURL)
	c.Notify.SlackWebhookURL = trimURL(c.Notify.SlackWebhookURL)
}

func trimURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
