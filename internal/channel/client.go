package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/san-kum/cmctl/internal/logging"
)

// Timeout selects how long Send waits for the remote.
type Timeout = time.Duration

const (
	WaitForever Timeout = -1
	NoWait      Timeout = 0
)

// DefaultLateReplyLimit is how long an exchange may keep the channel after
// its caller stopped waiting, for bounded and fire-and-forget sends.
const DefaultLateReplyLimit = 5 * time.Second

// TimeoutFromMillis converts the integer convention used on consoles and
// config files (-1 block, 0 fire-and-forget, >0 bound) into a Timeout.
func TimeoutFromMillis(ms int) Timeout {
	if ms < 0 {
		return WaitForever
	}
	return time.Duration(ms) * time.Millisecond
}

// Client sends commands to the remote interpreter.
//
// The remote must never call back into this host while one of its calls is
// outstanding on the same channel: the blocking exchange would deadlock. The
// client cannot detect that; it is up to the remote's scripts.
type Client struct {
	tr        Transport
	log       *log.Logger
	mu        sync.Mutex
	closed    atomic.Bool
	pending   sync.WaitGroup
	lateLimit time.Duration
	nextID    func() string
}

func NewClient(tr Transport, logger *log.Logger) *Client {
	return &Client{
		tr:        tr,
		log:       logging.OrDiscard(logger),
		lateLimit: DefaultLateReplyLimit,
		nextID:    uuid.NewString,
	}
}

// Closed reports whether the session ended, either by Exit or Close.
func (c *Client) Closed() bool { return c.closed.Load() }

// Drain waits until every fire-and-forget send has been exchanged or given
// up, or until ctx is done.
func (c *Client) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Close() error {
	if c.closed.Swap(true) || c.tr == nil {
		return nil
	}
	return c.tr.Close()
}

func (c *Client) Send(ctx context.Context, cmd Command, timeout Timeout) Result {
	if c.closed.Load() || c.tr == nil {
		c.log.Debug("send on closed session", "cmd", cmd.Name())
		return connectionFailed()
	}

	req := Request{ID: c.nextID(), Name: cmd.Name(), Args: cmd.Args()}
	_, exiting := cmd.(Exit)
	if exiting {
		c.closed.Store(true)
	}

	if timeout == NoWait {
		ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lateLimit)
		c.pending.Add(1)
		go func() {
			defer c.pending.Done()
			defer cancel()
			c.exchange(ectx, req, exiting)
		}()
		return ok("")
	}

	ectx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		ectx, cancel = context.WithTimeout(ctx, timeout+c.lateLimit)
	}
	done := make(chan Result, 1)
	go func() {
		defer cancel()
		done <- c.exchange(ectx, req, exiting)
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case res := <-done:
		c.log.Debug("command finished", "cmd", req.Name, "status", res.Status)
		return res
	case <-expired:
		c.log.Warn("command timed out", "cmd", req.Name, "timeout", timeout)
		return timedOut()
	case <-ctx.Done():
		c.log.Warn("command abandoned", "cmd", req.Name, "err", ctx.Err())
		return timedOut()
	}
}

func (c *Client) exchange(ctx context.Context, req Request, exiting bool) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.tr.Exchange(ctx, req)
	if exiting {
		// the remote goes away without an orderly reply
		_ = c.tr.Close()
		return ok("")
	}
	if err != nil {
		c.log.Debug("transport failure", "cmd", req.Name, "err", err)
		return connectionFailed()
	}
	if !reply.OK {
		return remoteError(reply.Value)
	}
	return ok(reply.Value)
}
