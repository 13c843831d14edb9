package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/san-kum/cmctl/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddress      = "localhost:16660"
	DefaultDialTimeout  = 2 * time.Second
	DefaultPeriod       = 100 * time.Millisecond
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultPickerMode   = PickerLine
	DefaultShell        = "sh"
	DefaultParamSource  = SourceRemote
	DefaultLogLevel     = "info"
	DefaultDataDir      = ".cmctl"
)

const (
	PickerLine = "line"
	PickerTUI  = "tui"
	PickerNone = "none"

	SourceRemote = "remote"
	SourceStatic = "static"
)

type Config struct {
	Remote        RemoteConfig        `yaml:"remote" mapstructure:"remote"`
	Product       string              `yaml:"product" mapstructure:"product"`
	Poller        PollerConfig        `yaml:"poller" mapstructure:"poller"`
	Picker        PickerConfig        `yaml:"picker" mapstructure:"picker"`
	Hooks         HooksConfig         `yaml:"hooks" mapstructure:"hooks"`
	VehicleParams VehicleParamsConfig `yaml:"vehicle_params" mapstructure:"vehicle_params"`
	Models        []models.Decl       `yaml:"models" mapstructure:"models"`
	Workspace     map[string]string   `yaml:"workspace" mapstructure:"workspace"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	DataDir       string              `yaml:"data_dir" mapstructure:"data_dir"`
}

type RemoteConfig struct {
	Address     string        `yaml:"address" mapstructure:"address"`
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
}

type PollerConfig struct {
	Period       time.Duration `yaml:"period" mapstructure:"period"`
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
}

type PickerConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"`
}

type HooksConfig struct {
	Shell string `yaml:"shell" mapstructure:"shell"`
}

// VehicleParamsConfig selects where activation hooks come from. The hook
// fields are only read when Source is "static".
type VehicleParamsConfig struct {
	Source   string `yaml:"source" mapstructure:"source"`
	Activate string `yaml:"activate,omitempty" mapstructure:"activate"`
	Start    string `yaml:"start,omitempty" mapstructure:"start"`
	Stop     string `yaml:"stop,omitempty" mapstructure:"stop"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			Address:     DefaultAddress,
			DialTimeout: DefaultDialTimeout,
		},
		Product: models.ProductCarMaker,
		Poller: PollerConfig{
			Period:       DefaultPeriod,
			InitialDelay: DefaultInitialDelay,
		},
		Picker:        PickerConfig{Mode: DefaultPickerMode},
		Hooks:         HooksConfig{Shell: DefaultShell},
		VehicleParams: VehicleParamsConfig{Source: DefaultParamSource},
		Log:           LogConfig{Level: DefaultLogLevel},
		DataDir:       DefaultDataDir,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Remote.Address == "" {
		return fmt.Errorf("remote.address is empty")
	}
	if c.Poller.Period <= 0 {
		return fmt.Errorf("poller.period must be positive, got %s", c.Poller.Period)
	}
	if c.Poller.InitialDelay < 0 {
		return fmt.Errorf("poller.initial_delay must not be negative, got %s", c.Poller.InitialDelay)
	}
	if !slices.Contains(models.Products(), c.Product) {
		return fmt.Errorf("unknown product: %s", c.Product)
	}
	switch c.Picker.Mode {
	case PickerLine, PickerTUI, PickerNone:
	default:
		return fmt.Errorf("unknown picker mode: %s", c.Picker.Mode)
	}
	switch c.VehicleParams.Source {
	case SourceRemote, SourceStatic:
	default:
		return fmt.Errorf("unknown vehicle_params source: %s", c.VehicleParams.Source)
	}
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("model without a name")
		}
		if seen[m.Name] {
			return fmt.Errorf("model declared twice: %s", m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}
