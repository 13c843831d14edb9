// Package session ties the command channel, the liveness poller and the
// failure reporter of one GUI connection together.
package session

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cmctl/internal/channel"
	"github.com/san-kum/cmctl/internal/liveness"
	"github.com/san-kum/cmctl/internal/logging"
	"github.com/san-kum/cmctl/internal/report"
)

// closeGrace bounds how long Close waits for fire-and-forget commands.
const closeGrace = 2 * time.Second

// Session is passed to everything that talks to the GUI process. It owns
// exactly one poller.
type Session struct {
	Client   *channel.Client
	Flag     *liveness.Flag
	Reporter *report.Reporter

	poller *liveness.Poller
	log    *log.Logger
}

func New(tr channel.Transport, pollCfg liveness.Config, logger *log.Logger) *Session {
	logger = logging.OrDiscard(logger)
	client := channel.NewClient(tr, logger)
	flag := &liveness.Flag{}
	return &Session{
		Client:   client,
		Flag:     flag,
		Reporter: &report.Reporter{},
		poller:   liveness.New(client, flag, pollCfg, logger),
		log:      logger,
	}
}

func (s *Session) Send(ctx context.Context, cmd channel.Command, timeout channel.Timeout) channel.Result {
	return s.Client.Send(ctx, cmd, timeout)
}

// StartPoller (re)starts liveness polling.
func (s *Session) StartPoller(ctx context.Context) { s.poller.Start(ctx) }

func (s *Session) StopPoller() { s.poller.Stop() }

func (s *Session) PollerActive() bool { return s.poller.Active() }

func (s *Session) EngineRunning() bool { return s.Flag.Running() }

// Sink flushes this session's reporter through its client.
func (s *Session) Sink() report.Sink {
	return report.Sink{Reporter: s.Reporter, Sender: s.Client, Logger: s.log}
}

// Close stops polling, gives pending fire-and-forget commands a moment to
// reach the remote and closes the channel.
func (s *Session) Close() error {
	s.poller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), closeGrace)
	defer cancel()
	if err := s.Client.Drain(ctx); err != nil {
		s.log.Warn("fire-and-forget commands still pending", "err", err)
	}
	return s.Client.Close()
}
