// Package models tracks the simulation models declared to the host and which
// of them are loaded and running.
package models

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cmctl/internal/logging"
)

var (
	ErrUnknownModel = errors.New("models: unknown model")
	ErrLocked       = errors.New("models: model is locked")
	ErrNotLoaded    = errors.New("models: model not loaded")
)

// Decl declares a model. Locked models are visible but never offered for
// activation.
type Decl struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Locked bool   `yaml:"locked" mapstructure:"locked"`
	Loaded bool   `yaml:"loaded" mapstructure:"loaded"`
}

// Runner executes stop hooks.
type Runner interface {
	Run(ctx context.Context, script string) error
}

type entry struct {
	decl     Decl
	stopHook string
}

// Host is an in-process registry of declared models. At most one model runs
// at a time.
type Host struct {
	runner Runner
	log    *log.Logger

	mu      sync.Mutex
	models  map[string]*entry
	order   []string
	running string
}

func NewHost(decls []Decl, runner Runner, logger *log.Logger) *Host {
	h := &Host{
		runner: runner,
		log:    logging.OrDiscard(logger),
		models: make(map[string]*entry),
	}
	for _, d := range decls {
		h.declareLocked(d)
	}
	for _, p := range Products() {
		if name := Fallback(p); h.models[name] == nil {
			h.declareLocked(Decl{Name: name, Locked: true})
		}
	}
	return h
}

func (h *Host) declareLocked(d Decl) {
	if _, ok := h.models[d.Name]; !ok {
		h.order = append(h.order, d.Name)
	}
	h.models[d.Name] = &entry{decl: d}
}

// LoadedModels lists loaded, unlocked models in declaration order.
func (h *Host) LoadedModels(context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var names []string
	for _, name := range h.order {
		e := h.models[name]
		if e.decl.Loaded && !e.decl.Locked {
			names = append(names, name)
		}
	}
	return names, nil
}

// Load marks a model loaded. Placeholder models load even though they are
// locked.
func (h *Host) Load(_ context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, err := h.getLocked(name)
	if err != nil {
		return err
	}
	if e.decl.Locked && !IsFallback(name) {
		return fmt.Errorf("%w: %s", ErrLocked, name)
	}
	e.decl.Loaded = true
	h.log.Debug("model loaded", "model", name)
	return nil
}

// Unload closes a model, stopping it first when it is running.
func (h *Host) Unload(ctx context.Context, name string) error {
	h.mu.Lock()
	e, err := h.getLocked(name)
	if err == nil && !e.decl.Loaded {
		err = fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}
	running := h.running == name
	h.mu.Unlock()
	if err != nil {
		return err
	}

	if running {
		if err := h.Stop(ctx); err != nil {
			h.log.Warn("stop hook failed during unload", "model", name, "err", err)
		}
	}

	h.mu.Lock()
	e.decl.Loaded = false
	h.mu.Unlock()
	h.log.Debug("model unloaded", "model", name)
	return nil
}

// Start runs a loaded model, stopping whichever model ran before.
func (h *Host) Start(ctx context.Context, name string) error {
	h.mu.Lock()
	e, err := h.getLocked(name)
	if err == nil && !e.decl.Loaded {
		err = fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}
	prev := h.running
	h.mu.Unlock()
	if err != nil {
		return err
	}

	if prev != "" && prev != name {
		if err := h.Stop(ctx); err != nil {
			h.log.Warn("stop hook failed", "model", prev, "err", err)
		}
	}

	h.mu.Lock()
	h.running = name
	h.mu.Unlock()
	h.log.Info("model started", "model", name)
	return nil
}

// RegisterStopHook binds script to run when the model stops. An empty
// script removes the hook.
func (h *Host) RegisterStopHook(_ context.Context, name, script string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, err := h.getLocked(name)
	if err != nil {
		return err
	}
	e.stopHook = script
	return nil
}

// Stop ends the running model and runs its stop hook.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	name := h.running
	h.running = ""
	var script string
	if e, ok := h.models[name]; ok {
		script = e.stopHook
	}
	h.mu.Unlock()

	if name == "" {
		return nil
	}
	h.log.Info("model stopped", "model", name)
	if script == "" || h.runner == nil {
		return nil
	}
	return h.runner.Run(ctx, script)
}

func (h *Host) Running() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// List returns every declared model in declaration order.
func (h *Host) List() []Decl {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Decl, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, h.models[name].decl)
	}
	return out
}

func (h *Host) getLocked(name string) (*entry, error) {
	e, ok := h.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return e, nil
}
