// Package report holds the most recent startup failure until something
// downstream surfaces it.
package report

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cmctl/internal/channel"
	"github.com/san-kum/cmctl/internal/logging"
)

// Reporter is a single-slot message store. A later Record replaces an
// earlier one; Take empties the slot.
type Reporter struct {
	mu  sync.Mutex
	msg string
}

func (r *Reporter) Record(msg string) {
	r.mu.Lock()
	r.msg = msg
	r.mu.Unlock()
}

func (r *Reporter) Take() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := r.msg
	r.msg = ""
	return msg
}

func (r *Reporter) Peek() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msg
}

// Sink drains a Reporter into the log and the remote's start-failure slot.
type Sink struct {
	Reporter *Reporter
	Sender   channel.Sender
	Logger   *log.Logger
}

// Flush takes the pending message, if any, logs it and pushes it to the
// remote without waiting for an answer. It returns the message.
func (s Sink) Flush(ctx context.Context) string {
	if s.Reporter == nil {
		return ""
	}
	msg := s.Reporter.Take()
	if msg == "" {
		return ""
	}

	logging.OrDiscard(s.Logger).Error("startup failed", "err", msg)
	if s.Sender != nil {
		s.Sender.Send(ctx, channel.SetStartFcnFailure{Message: msg}, channel.NoWait)
	}
	return msg
}
