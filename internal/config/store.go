package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "CMCTL"

// Store resolves configuration values from defaults, an optional YAML file
// and CMCTL_* environment variables, in increasing precedence.
type Store struct {
	v    *viper.Viper
	path string
}

// NewStore reads path when it is set. A missing file is not an error.
func NewStore(path string) (*Store, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("remote.address", def.Remote.Address)
	v.SetDefault("remote.dial_timeout", def.Remote.DialTimeout)
	v.SetDefault("product", def.Product)
	v.SetDefault("poller.period", def.Poller.Period)
	v.SetDefault("poller.initial_delay", def.Poller.InitialDelay)
	v.SetDefault("picker.mode", def.Picker.Mode)
	v.SetDefault("hooks.shell", def.Hooks.Shell)
	v.SetDefault("vehicle_params.source", def.VehicleParams.Source)
	v.SetDefault("vehicle_params.activate", "")
	v.SetDefault("vehicle_params.start", "")
	v.SetDefault("vehicle_params.stop", "")
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("data_dir", def.DataDir)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return &Store{v: v, path: path}, nil
}

// Get looks up key within section. An empty section addresses top-level keys.
func (s *Store) Get(section, key string) string {
	if section == "" {
		return s.v.GetString(key)
	}
	return s.v.GetString(section + "." + key)
}

// Set overrides a value for the lifetime of the store.
func (s *Store) Set(section, key, value string) {
	if section == "" {
		s.v.Set(key, value)
		return
	}
	s.v.Set(section+"."+key, value)
}

func (s *Store) Keys() []string {
	return s.v.AllKeys()
}

// Config decodes the effective configuration and validates it.
func (s *Store) Config() (*Config, error) {
	cfg := DefaultConfig()
	if err := s.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.restoreWorkspace(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// restoreWorkspace re-reads the workspace map from the file because viper
// lowercases map keys and workspace variables are case-sensitive.
func (s *Store) restoreWorkspace(cfg *Config) error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var raw struct {
		Workspace map[string]string `yaml:"workspace"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("read config %s: %w", s.path, err)
	}
	if raw.Workspace != nil {
		cfg.Workspace = raw.Workspace
	}
	return nil
}
