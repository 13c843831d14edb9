package session

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/san-kum/cmctl/internal/channel"
	"github.com/san-kum/cmctl/internal/liveness"
)

type engineTransport struct {
	mu      sync.Mutex
	running string
	delay   time.Duration
	closed  bool
	seen    []string
}

func (t *engineTransport) Exchange(_ context.Context, req channel.Request) (channel.Reply, error) {
	time.Sleep(t.delay)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = append(t.seen, req.Name)
	if req.Name == "running" {
		return channel.Reply{ID: req.ID, OK: true, Value: t.running}, nil
	}
	return channel.Reply{ID: req.ID, OK: true}, nil
}

func (t *engineTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *engineTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func fastPoll() liveness.Config {
	return liveness.Config{Period: 5 * time.Millisecond}
}

func TestPollerLifecycle(t *testing.T) {
	g := NewWithT(t)

	s := New(&engineTransport{running: "1"}, fastPoll(), nil)
	defer s.Close()

	g.Expect(s.PollerActive()).To(BeFalse())

	s.StartPoller(context.Background())
	s.StartPoller(context.Background())
	g.Expect(s.PollerActive()).To(BeTrue())
	g.Eventually(s.EngineRunning, time.Second).Should(BeTrue())

	s.StopPoller()
	s.StopPoller()
	g.Expect(s.PollerActive()).To(BeFalse())
}

func TestCloseStopsEverything(t *testing.T) {
	g := NewWithT(t)

	tr := &engineTransport{running: "0"}
	s := New(tr, fastPoll(), nil)
	s.StartPoller(context.Background())

	g.Expect(s.Close()).To(Succeed())
	g.Expect(s.PollerActive()).To(BeFalse())
	g.Expect(tr.isClosed()).To(BeTrue())
	g.Expect(s.Send(context.Background(), channel.Version{}, channel.WaitForever).Status).
		To(Equal(channel.StatusConnectionFailed))
}

func TestSinkUsesSessionReporter(t *testing.T) {
	g := NewWithT(t)

	tr := &engineTransport{}
	s := New(tr, fastPoll(), nil)
	defer s.Close()

	s.Reporter.Record("no model loaded")
	g.Expect(s.Sink().Flush(context.Background())).To(Equal("no model loaded"))
	g.Eventually(func() []string {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return append([]string(nil), tr.seen...)
	}, time.Second).Should(ContainElement("setstartfcnfailure"))
}

func TestCloseDeliversPendingFailureReport(t *testing.T) {
	tr := &engineTransport{delay: 30 * time.Millisecond}
	s := New(tr, fastPoll(), nil)

	s.Reporter.Record("no model selected")
	s.Sink().Flush(context.Background())
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if !slices.Contains(tr.seen, "setstartfcnfailure") {
		t.Errorf("commands before close = %v, want setstartfcnfailure", tr.seen)
	}
}
