// Package settings manages persistent user settings for the fabricplan CLI.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/fabricplan/pkg/spec"
)

// EnvPrefix is the prefix of environment overrides, e.g. FABRICPLAN_LOG_LEVEL.
const EnvPrefix = "FABRICPLAN"

// Settings holds persistent user preferences
type Settings struct {
	// CatalogDir overrides the default switch profile directory
	CatalogDir string `mapstructure:"catalog_dir" yaml:"catalog_dir,omitempty"`

	// BuiltinProfiles seeds the catalog with the stock profiles
	BuiltinProfiles bool `mapstructure:"builtin_profiles" yaml:"builtin_profiles"`

	LogLevel   string `mapstructure:"log_level" yaml:"log_level,omitempty"`
	LogFormat  string `mapstructure:"log_format" yaml:"log_format,omitempty"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr,omitempty"`
}

var defaults = map[string]interface{}{
	"catalog_dir":      "",
	"builtin_profiles": true,
	"log_level":        "warn",
	"log_format":       "text",
	"listen_addr":      ":8080",
}

// Keys returns the setting names in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fabricplan_settings.yaml"
	}
	return filepath.Join(home, ".fabricplan", "settings.yaml")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path. A missing file yields the
// defaults. FABRICPLAN_* environment variables override both.
func LoadFrom(path string) (*Settings, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading settings %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Set assigns a setting by name.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "catalog_dir":
		s.CatalogDir = value
	case "builtin_profiles":
		switch strings.ToLower(value) {
		case "true", "yes", "1":
			s.BuiltinProfiles = true
		case "false", "no", "0":
			s.BuiltinProfiles = false
		default:
			return fmt.Errorf("builtin_profiles: expected true or false, got %q", value)
		}
	case "log_level":
		s.LogLevel = value
	case "log_format":
		if value != "text" && value != "json" {
			return fmt.Errorf("log_format: expected text or json, got %q", value)
		}
		s.LogFormat = value
	case "listen_addr":
		s.ListenAddr = value
	default:
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return nil
}

// Get returns a setting's value as text.
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case "catalog_dir":
		return s.CatalogDir, nil
	case "builtin_profiles":
		return fmt.Sprintf("%t", s.BuiltinProfiles), nil
	case "log_level":
		return s.LogLevel, nil
	case "log_format":
		return s.LogFormat, nil
	case "listen_addr":
		return s.ListenAddr, nil
	}
	return "", fmt.Errorf("unknown setting %q", key)
}

// GetCatalogDir returns the profile directory (with fallback)
func (s *Settings) GetCatalogDir() string {
	if s.CatalogDir != "" {
		return s.CatalogDir
	}
	return spec.CatalogDir
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{
		BuiltinProfiles: defaults["builtin_profiles"].(bool),
		LogLevel:        defaults["log_level"].(string),
		LogFormat:       defaults["log_format"].(string),
		ListenAddr:      defaults["listen_addr"].(string),
	}
}
