// Package activation decides which simulation model starts, runs its hooks
// and falls back to a placeholder model when anything goes wrong.
package activation

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cmctl/internal/channel"
	"github.com/san-kum/cmctl/internal/logging"
	"github.com/san-kum/cmctl/internal/models"
	"github.com/san-kum/cmctl/internal/params"
	"github.com/san-kum/cmctl/internal/report"
)

type ParamProvider interface {
	VehicleParams(ctx context.Context) (params.Bundle, error)
}

// Picker chooses one of several candidates. An empty name means the user
// declined to choose.
type Picker interface {
	Pick(ctx context.Context, candidates []string) (string, error)
}

type WorkspaceSetter interface {
	Apply(ctx context.Context, set string, vars map[string]string) error
}

type HookRunner interface {
	Run(ctx context.Context, script string) error
}

type ModelHost interface {
	LoadedModels(ctx context.Context) ([]string, error)
	Load(ctx context.Context, name string) error
	Unload(ctx context.Context, name string) error
	Start(ctx context.Context, name string) error
	RegisterStopHook(ctx context.Context, name, script string) error
}

// Descriptor is a resolved model together with its hooks.
type Descriptor struct {
	Name string
	params.Bundle
}

// Outcome describes one startup attempt.
type Outcome struct {
	// ActivatedModel is the model that was started, the placeholder on fallback.
	ActivatedModel string
	Target         Descriptor
	Failed         bool
	LastError      string
	Fallback       bool
	Path           []State
}

type Deps struct {
	Sender    channel.Sender
	Params    ParamProvider
	Picker    Picker
	Workspace WorkspaceSetter
	Hooks     HookRunner
	Models    ModelHost
	Reporter  *report.Reporter
	Product   string
	Vars      map[string]string
	Logger    *log.Logger
}

type Machine struct {
	deps Deps
	log  *log.Logger
	mu   sync.Mutex
}

func New(deps Deps) *Machine {
	if deps.Reporter == nil {
		deps.Reporter = &report.Reporter{}
	}
	if deps.Product == "" {
		deps.Product = models.ProductCarMaker
	}
	return &Machine{deps: deps, log: logging.OrDiscard(deps.Logger)}
}

func (m *Machine) Reporter() *report.Reporter { return m.deps.Reporter }

// Run performs one startup attempt from INIT to DONE. Exactly one model,
// the target or the placeholder, is started. Concurrent calls run one
// after the other.
func (m *Machine) Run(ctx context.Context) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := &attempt{Deps: m.deps, log: m.log, ctx: ctx, state: StateInit}
	a.out.Path = []State{StateInit}

	a.initialize()
	a.enter(StateResolveActive)
	a.resolveActive()
	a.enter(StateRunActivateHook)
	a.runActivateHook()
	a.enter(StateResolveTarget)
	a.resolveTarget()
	a.enter(StateRunStartHook)
	a.runStartHook()

	if !a.out.Failed {
		a.enter(StateLoadTarget)
		if err := a.loadTarget(); err != nil {
			a.fail(err)
		}
	}
	if a.out.Failed {
		a.enter(StateLoadFallback)
		a.loadFallback()
	}
	a.enter(StateDone)

	m.log.Info("startup finished", "model", a.out.ActivatedModel, "fallback", a.out.Fallback, "err", a.out.LastError)
	return a.out
}

type attempt struct {
	Deps
	log   *log.Logger
	ctx   context.Context
	state State
	out   Outcome

	remembered string
	candidate  string
	bundle     params.Bundle
}

func (a *attempt) enter(next State) {
	if !a.state.CanTransition(next) {
		panic(fmt.Sprintf("activation: disallowed transition %s -> %s", a.state, next))
	}
	a.log.Debug("transition", "from", a.state, "state", next)
	a.state = next
	a.out.Path = append(a.out.Path, next)
}

func (a *attempt) fail(err error) {
	msg := failureMessage(err)
	a.log.Warn("startup attempt failed", "state", a.state, "err", err)
	a.Reporter.Record(msg)
	a.out.Failed = true
	a.out.LastError = msg
}

func (a *attempt) send(cmd channel.Command) channel.Result {
	if a.Sender == nil {
		return channel.Result{Value: "connection failed", Status: channel.StatusConnectionFailed}
	}
	return a.Sender.Send(a.ctx, cmd, channel.WaitForever)
}

// initialize resets the remote's active model to whatever it last had
// active, so a placeholder activated by an earlier attempt does not stick.
func (a *attempt) initialize() {
	res := a.send(channel.ActivateLastActive{})
	if !res.OK() {
		a.log.Warn("cannot restore last active model", "status", res.Status, "value", res.Value)
		return
	}
	a.remembered = res.Value
	a.log.Debug("remembered model", "model", a.remembered)
}

func (a *attempt) resolveActive() {
	if a.Params == nil {
		return
	}
	b, err := a.Params.VehicleParams(a.ctx)
	if err != nil {
		a.fail(err)
		return
	}
	a.bundle = b
}

func (a *attempt) runActivateHook() {
	script := Normalize(a.bundle.ActivateHook)
	if a.out.Failed || script == "" {
		return
	}
	if err := a.runHook("activate", script); err != nil {
		a.fail(err)
		return
	}

	res := a.send(channel.QueryActiveModel{})
	if !res.OK() {
		a.log.Warn("cannot query active model", "status", res.Status, "value", res.Value)
		return
	}
	if res.Value != "" && res.Value != a.remembered {
		a.candidate = res.Value
		a.log.Debug("activate hook selected model", "model", a.candidate)
	}
}

func (a *attempt) resolveTarget() {
	if a.out.Failed {
		return
	}
	if a.candidate != "" {
		a.setTarget(a.candidate)
		return
	}

	loaded, err := a.Models.LoadedModels(a.ctx)
	if err != nil {
		a.fail(err)
		return
	}
	if a.remembered != "" && slices.Contains(loaded, a.remembered) {
		a.setTarget(a.remembered)
		return
	}

	switch len(loaded) {
	case 0:
		a.fail(&SelectionError{Kind: ErrNoModelLoaded})
	case 1:
		a.setTarget(loaded[0])
	default:
		a.pick(loaded)
	}
}

func (a *attempt) pick(loaded []string) {
	if a.Picker == nil {
		a.fail(&SelectionError{Kind: ErrNoModelSelected, Candidates: loaded})
		return
	}
	choice, err := a.Picker.Pick(a.ctx, loaded)
	switch {
	case err != nil:
		a.fail(fmt.Errorf("model picker: %w", err))
	case choice == "":
		a.fail(&SelectionError{Kind: ErrNoModelSelected, Candidates: loaded})
	case !slices.Contains(loaded, choice):
		a.fail(&SelectionError{Kind: ErrInvalidSelection, Candidates: loaded})
	default:
		a.setTarget(choice)
	}
}

func (a *attempt) setTarget(name string) {
	a.out.Target = Descriptor{Name: name, Bundle: a.bundle}
	a.log.Debug("target resolved", "model", name)
}

func (a *attempt) runStartHook() {
	script := Normalize(a.bundle.StartHook)
	if a.out.Failed || script == "" {
		return
	}
	if err := a.runHook("start", script); err != nil {
		a.fail(err)
	}
}

func (a *attempt) runHook(name, script string) error {
	if a.Hooks == nil {
		return &HookError{Hook: name, Script: script, Err: fmt.Errorf("no hook runner configured")}
	}
	if err := a.Hooks.Run(a.ctx, script); err != nil {
		return &HookError{Hook: name, Script: script, Err: err}
	}
	return nil
}

func (a *attempt) loadTarget() error {
	target := a.out.Target.Name
	fallback := models.Fallback(a.Product)

	if err := a.Models.Unload(a.ctx, fallback); err != nil {
		a.log.Debug("placeholder not unloaded", "model", fallback, "err", err)
	}
	if err := a.Models.Load(a.ctx, target); err != nil {
		return fmt.Errorf("load %s: %w", target, err)
	}
	if err := a.Models.RegisterStopHook(a.ctx, target, Normalize(a.bundle.StopHook)); err != nil {
		return fmt.Errorf("stop hook for %s: %w", target, err)
	}
	if a.Workspace != nil {
		if err := a.Workspace.Apply(a.ctx, target, a.Vars); err != nil {
			return err
		}
	}
	if res := a.send(channel.ActivateModel{Model: target}); !res.OK() {
		a.log.Warn("remote did not record active model", "model", target, "status", res.Status, "value", res.Value)
	}
	if err := a.Models.Start(a.ctx, target); err != nil {
		return fmt.Errorf("start %s: %w", target, err)
	}
	a.out.ActivatedModel = target
	return nil
}

func (a *attempt) loadFallback() {
	fallback := models.Fallback(a.Product)
	a.out.Fallback = true

	if err := a.Models.Load(a.ctx, fallback); err != nil {
		a.log.Error("cannot load placeholder model", "model", fallback, "err", err)
	}
	if err := a.Models.Start(a.ctx, fallback); err != nil {
		a.log.Error("cannot start placeholder model", "model", fallback, "err", err)
	}
	a.out.ActivatedModel = fallback

	sink := report.Sink{Reporter: a.Reporter, Sender: a.Sender, Logger: a.log}
	if msg := sink.Flush(a.ctx); msg != "" {
		a.out.LastError = msg
	}
}
