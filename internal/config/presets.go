package config

import (
	"sort"
	"time"

	"github.com/san-kum/cmctl/internal/models"
)

func preset(product string, edit func(*Config)) *Config {
	cfg := DefaultConfig()
	cfg.Product = product
	edit(cfg)
	return cfg
}

var Presets = map[string]map[string]*Config{
	models.ProductCarMaker: {
		"desktop": preset(models.ProductCarMaker, func(c *Config) {
			c.Picker.Mode = PickerTUI
		}),
		"headless": preset(models.ProductCarMaker, func(c *Config) {
			c.Picker.Mode = PickerNone
			c.VehicleParams.Source = SourceStatic
		}),
		"cluster": preset(models.ProductCarMaker, func(c *Config) {
			c.Picker.Mode = PickerNone
			c.Remote.DialTimeout = 10 * time.Second
			c.Poller.Period = 500 * time.Millisecond
			c.Poller.InitialDelay = 2 * time.Second
		}),
	},
	models.ProductTruckMaker: {
		"desktop": preset(models.ProductTruckMaker, func(c *Config) {
			c.Picker.Mode = PickerTUI
		}),
		"headless": preset(models.ProductTruckMaker, func(c *Config) {
			c.Picker.Mode = PickerNone
			c.VehicleParams.Source = SourceStatic
		}),
	},
	models.ProductMotorcycleMaker: {
		"desktop": preset(models.ProductMotorcycleMaker, func(c *Config) {
			c.Picker.Mode = PickerTUI
		}),
		"headless": preset(models.ProductMotorcycleMaker, func(c *Config) {
			c.Picker.Mode = PickerNone
			c.VehicleParams.Source = SourceStatic
		}),
	},
}

func GetPreset(product, preset string) *Config {
	productPresets, ok := Presets[product]
	if !ok {
		return nil
	}
	cfg, ok := productPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(product string) []string {
	productPresets, ok := Presets[product]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(productPresets))
	for name := range productPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
