// Package params provides the vehicle-parameter hooks used during model
// activation.
package params

import (
	"context"
	"fmt"
	"strings"

	"github.com/san-kum/cmctl/internal/channel"
	"gopkg.in/yaml.v3"
)

// Bundle holds the hook scripts attached to the current vehicle
// parameters. An empty field means no hook.
type Bundle struct {
	ActivateHook string `yaml:"activate"`
	StartHook    string `yaml:"start"`
	StopHook     string `yaml:"stop"`
}

func (b Bundle) Empty() bool {
	return b.ActivateHook == "" && b.StartHook == "" && b.StopHook == ""
}

// Remote asks the GUI process for the parameter hooks. The reply value is a
// YAML mapping with optional activate, start and stop keys.
type Remote struct {
	Sender  channel.Sender
	Timeout channel.Timeout
}

func (r Remote) VehicleParams(ctx context.Context) (Bundle, error) {
	timeout := r.Timeout
	if timeout == channel.NoWait {
		timeout = channel.WaitForever
	}

	res := r.Sender.Send(ctx, channel.VehicleParams{}, timeout)
	if err := res.Err(); err != nil {
		return Bundle{}, fmt.Errorf("vehicle parameters: %w", err)
	}
	return Decode(res.Value)
}

// Decode parses the textual form returned by the vehicleparams command.
func Decode(value string) (Bundle, error) {
	var b Bundle
	if strings.TrimSpace(value) == "" {
		return b, nil
	}
	if err := yaml.Unmarshal([]byte(value), &b); err != nil {
		return Bundle{}, fmt.Errorf("vehicle parameters: %w", err)
	}
	return b, nil
}

// Static serves a fixed bundle, typically read from the config file.
type Static Bundle

func (s Static) VehicleParams(context.Context) (Bundle, error) {
	return Bundle(s), nil
}
