package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserConfig is ~/.secagent/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile is one named set of CLI defaults.
type Profile struct {
	Host      string `yaml:"host,omitempty"`
	Output    string `yaml:"output,omitempty"`
	OutputDir string `yaml:"output-dir,omitempty"`
}

// ActiveProfile returns override, or the current profile when override is
// empty. A missing current profile yields an empty Profile; a missing
// override is an error.
func (c *UserConfig) ActiveProfile(override string) (Profile, error) {
	if override == "" {
		return c.Profiles[c.CurrentProfile], nil
	}
	p, ok := c.Profiles[override]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found", override)
	}
	return p, nil
}

// ConfigPath returns ~/.secagent/config.yaml.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".secagent", "config.yaml")
}

// LoadUserConfig reads the user config. A missing file yields an empty
// config.
func LoadUserConfig() (*UserConfig, error) {
	cfg := &UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}}
	path := ConfigPath()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is under the user's home
	if err != nil {
		if os.IsNotExist(err) {
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
