package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"logq/internal/workspace"
)

// UserConfig is the YAML file holding named profiles.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile is one named set of defaults. Empty fields defer to built-ins.
type Profile struct {
	Tenant             string                `yaml:"tenant,omitempty"`
	ClientID           string                `yaml:"client-id,omitempty"`
	Authority          string                `yaml:"authority,omitempty"`
	Endpoint           string                `yaml:"endpoint,omitempty"`
	ManagementEndpoint string                `yaml:"management-endpoint,omitempty"`
	Token              string                `yaml:"token,omitempty"`
	Workspaces         []workspace.Workspace `yaml:"workspaces,omitempty"`
	Discover           *bool                 `yaml:"discover,omitempty"`
	Timespan           string                `yaml:"timespan,omitempty"`
	DBPath             string                `yaml:"db-path,omitempty"`
	ExportDir          string                `yaml:"export-dir,omitempty"`
	HistoryLimit       *int                  `yaml:"history-limit,omitempty"`
	LogFile            string                `yaml:"log-file,omitempty"`
	LogLevel           string                `yaml:"log-level,omitempty"`
	Timeout            string                `yaml:"timeout,omitempty"`
	GlamourStyle       string                `yaml:"glamour-style,omitempty"`
}

// ActiveProfile returns the override profile, else the current one.
func (c *UserConfig) ActiveProfile(override string) Profile {
	name := c.CurrentProfile
	if override != "" {
		name = override
	}
	if p, ok := c.Profiles[name]; ok {
		return p
	}
	return Profile{}
}

// UserConfigPath is $LOGQ_CONFIG or ~/.config/logq/config.yaml.
func UserConfigPath() (string, error) {
	if v := os.Getenv("LOGQ_CONFIG"); v != "" {
		return filepath.Clean(v), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "logq", "config.yaml"), nil
}

// LoadUserConfig reads the profile file. A missing file is an empty config.
func LoadUserConfig(path string) (*UserConfig, error) {
	cfg := &UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return cfg, nil
}

func SaveUserConfig(path string, cfg *UserConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
