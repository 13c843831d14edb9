package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cmctl/internal/activation"
	"github.com/san-kum/cmctl/internal/channel"
	"github.com/san-kum/cmctl/internal/config"
	"github.com/san-kum/cmctl/internal/hook"
	"github.com/san-kum/cmctl/internal/liveness"
	"github.com/san-kum/cmctl/internal/logging"
	"github.com/san-kum/cmctl/internal/models"
	"github.com/san-kum/cmctl/internal/params"
	"github.com/san-kum/cmctl/internal/picker"
	"github.com/san-kum/cmctl/internal/session"
	"github.com/san-kum/cmctl/internal/workspace"
)

// app is everything a command needs to talk to one GUI process.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	sess   *session.Session
}

// newStore opens the config file and applies command-line overrides.
func newStore() (*config.Store, error) {
	store, err := config.NewStore(configFile)
	if err != nil {
		return nil, err
	}
	if address != "" {
		store.Set("remote", "address", address)
	}
	if logLevel != "" {
		store.Set("log", "level", logLevel)
	}
	if dataDir != "" {
		store.Set("", "data_dir", dataDir)
	}
	if product != "" {
		store.Set("", "product", product)
	}
	if pickerMode != "" {
		store.Set("picker", "mode", pickerMode)
	}
	return store, nil
}

func loadConfig() (*config.Config, error) {
	store, err := newStore()
	if err != nil {
		return nil, err
	}
	return store.Config()
}

func setup() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	tr := channel.NewTCP(cfg.Remote.Address, cfg.Remote.DialTimeout)
	sess := session.New(tr, liveness.Config{
		Period:       cfg.Poller.Period,
		InitialDelay: cfg.Poller.InitialDelay,
	}, logger)

	logger.Debug("session opened", "addr", cfg.Remote.Address, "product", cfg.Product)
	return &app{cfg: cfg, logger: logger, sess: sess}, nil
}

func (a *app) close() {
	if err := a.sess.Close(); err != nil {
		a.logger.Warn("close session", "err", err)
	}
}

// machine wires the startup state machine to this session.
func (a *app) machine() *activation.Machine {
	ws := workspace.New(a.sess.Client)
	shell := hook.Shell{
		Path:   a.cfg.Hooks.Shell,
		Env:    ws.Env,
		Logger: a.logger,
	}

	return activation.New(activation.Deps{
		Sender:    a.sess.Client,
		Params:    a.params(),
		Picker:    a.picker(),
		Workspace: ws,
		Hooks:     shell,
		Models:    models.NewHost(a.cfg.Models, shell, a.logger),
		Reporter:  a.sess.Reporter,
		Product:   a.cfg.Product,
		Vars:      a.cfg.Workspace,
		Logger:    a.logger,
	})
}

func (a *app) params() activation.ParamProvider {
	if a.cfg.VehicleParams.Source == config.SourceStatic {
		return params.Static{
			ActivateHook: a.cfg.VehicleParams.Activate,
			StartHook:    a.cfg.VehicleParams.Start,
			StopHook:     a.cfg.VehicleParams.Stop,
		}
	}
	return params.Remote{Sender: a.sess.Client, Timeout: channel.WaitForever}
}

func (a *app) picker() activation.Picker {
	switch a.cfg.Picker.Mode {
	case config.PickerTUI:
		return picker.TUI{In: os.Stdin, Out: os.Stderr}
	case config.PickerNone:
		return picker.None{}
	case config.PickerLine:
		return picker.Line{In: os.Stdin, Out: os.Stderr, MaxDistance: picker.DefaultMaxDistance}
	default:
		panic(fmt.Sprintf("unvalidated picker mode %q", a.cfg.Picker.Mode))
	}
}
