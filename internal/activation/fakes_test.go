package activation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/cmctl/internal/channel"
	"github.com/san-kum/cmctl/internal/params"
)

// fakeRemote mimics the GUI interpreter's active-model bookkeeping.
type fakeRemote struct {
	mu          sync.Mutex
	active      string
	last        string
	sent        []string
	timeouts    []channel.Timeout
	unreachable bool
}

func (r *fakeRemote) Send(_ context.Context, cmd channel.Command, timeout channel.Timeout) channel.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, channel.Format(cmd))
	r.timeouts = append(r.timeouts, timeout)
	if r.unreachable {
		return channel.Result{Value: "connection failed", Status: channel.StatusConnectionFailed}
	}

	switch c := cmd.(type) {
	case channel.ActivateLastActive:
		r.active = r.last
		return channel.Result{Value: r.active}
	case channel.QueryActiveModel:
		return channel.Result{Value: r.active}
	case channel.ActivateModel:
		r.active, r.last = c.Model, c.Model
		return channel.Result{Value: c.Model}
	}
	return channel.Result{}
}

func (r *fakeRemote) setActive(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active, r.last = name, name
}

func (r *fakeRemote) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func (r *fakeRemote) timeoutOf(line string) (channel.Timeout, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.sent {
		if s == line {
			return r.timeouts[i], true
		}
	}
	return 0, false
}

type fakeParams struct {
	bundle params.Bundle
	err    error
}

func (p fakeParams) VehicleParams(context.Context) (params.Bundle, error) {
	return p.bundle, p.err
}

type fakePicker struct {
	choice string
	err    error
	calls  [][]string
}

func (p *fakePicker) Pick(_ context.Context, candidates []string) (string, error) {
	p.calls = append(p.calls, candidates)
	return p.choice, p.err
}

// fakeHooks runs scripted behavior per normalized script.
type fakeHooks struct {
	mu      sync.Mutex
	scripts []string
	actions map[string]func() error
}

func (h *fakeHooks) Run(_ context.Context, script string) error {
	h.mu.Lock()
	h.scripts = append(h.scripts, script)
	action := h.actions[script]
	h.mu.Unlock()
	if action == nil {
		return nil
	}
	return action()
}

func (h *fakeHooks) ran() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.scripts...)
}

type fakeWorkspace struct {
	applied map[string]map[string]string
	err     error
}

func (w *fakeWorkspace) Apply(_ context.Context, set string, vars map[string]string) error {
	if w.err != nil {
		return w.err
	}
	if w.applied == nil {
		w.applied = make(map[string]map[string]string)
	}
	w.applied[set] = vars
	return nil
}

// slowParams holds every caller for a while and tracks overlap.
type slowParams struct {
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (p *slowParams) VehicleParams(context.Context) (params.Bundle, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		seen := p.maxSeen.Load()
		if n <= seen || p.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return params.Bundle{}, nil
}

var errUndefined = errors.New("undefined variable 'vhcl'")
