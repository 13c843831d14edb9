// Package liveness keeps an "engine running" flag current by polling the GUI
// process in the background.
package liveness

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cmctl/internal/channel"
	"github.com/san-kum/cmctl/internal/logging"
)

const (
	DefaultPeriod       = 100 * time.Millisecond
	DefaultInitialDelay = 500 * time.Millisecond
)

// Flag is the process-wide engine-running signal.
type Flag struct {
	v atomic.Bool
}

func (f *Flag) Running() bool { return f.v.Load() }

func (f *Flag) set(running bool) { f.v.Store(running) }

type Config struct {
	Period       time.Duration
	InitialDelay time.Duration
}

func DefaultConfig() Config {
	return Config{Period: DefaultPeriod, InitialDelay: DefaultInitialDelay}
}

// Poller issues a lightweight status command on a fixed period. At most one
// instance runs at a time; a tick whose predecessor has not returned yet is
// dropped instead of queued.
type Poller struct {
	sender channel.Sender
	flag   *Flag
	cfg    Config
	log    *log.Logger

	mu  sync.Mutex
	run *instance
}

type instance struct {
	cancel   context.CancelFunc
	done     chan struct{}
	inFlight atomic.Bool
}

func New(sender channel.Sender, flag *Flag, cfg Config, logger *log.Logger) *Poller {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	return &Poller{
		sender: sender,
		flag:   flag,
		cfg:    cfg,
		log:    logging.OrDiscard(logger),
	}
}

// Start replaces any running instance with a fresh one.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	inst := &instance{cancel: cancel, done: make(chan struct{})}
	p.run = inst
	go p.loop(ctx, inst)
	p.log.Debug("poller started", "period", p.cfg.Period, "delay", p.cfg.InitialDelay)
}

// Stop cancels the running instance, if any.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run != nil
}

func (p *Poller) stopLocked() {
	if p.run == nil {
		return
	}
	p.run.cancel()
	<-p.run.done
	p.run = nil
	p.log.Debug("poller stopped")
}

func (p *Poller) loop(ctx context.Context, inst *instance) {
	defer close(inst.done)

	delay := time.NewTimer(p.cfg.InitialDelay)
	select {
	case <-ctx.Done():
		delay.Stop()
		return
	case <-delay.C:
	}

	ticker := time.NewTicker(p.cfg.Period)
	defer ticker.Stop()

	p.tick(ctx, inst)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, inst)
		}
	}
}

func (p *Poller) tick(ctx context.Context, inst *instance) {
	if !inst.inFlight.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer inst.inFlight.Store(false)
		res := p.sender.Send(ctx, channel.Running{}, channel.WaitForever)
		if ctx.Err() != nil {
			return
		}
		p.flag.set(res.OK() && truthy(res.Value))
	}()
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "running":
		return true
	default:
		return false
	}
}
