package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultAddress is where the GUI process listens for host connections.
const DefaultAddress = "localhost:16660"

// TCP carries requests as JSON lines over a TCP connection. It dials lazily on
// the first exchange and again after a broken connection, so an unreachable
// remote shows up per call rather than at construction time.
type TCP struct {
	addr        string
	dialTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	rd   *bufio.Reader
}

func NewTCP(addr string, dialTimeout time.Duration) *TCP {
	if addr == "" {
		addr = DefaultAddress
	}
	return &TCP{addr: addr, dialTimeout: dialTimeout}
}

func (t *TCP) connect(ctx context.Context) (net.Conn, *bufio.Reader, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, t.rd, nil
	}
	d := net.Dialer{Timeout: t.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, nil, err
	}
	t.conn = conn
	t.rd = bufio.NewReader(conn)
	return t.conn, t.rd, nil
}

func (t *TCP) drop(conn net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == conn {
		_ = t.conn.Close()
		t.conn = nil
		t.rd = nil
	}
}

// Exchange writes req and reads replies until one carries req.ID. Replies with
// other ids belong to calls whose callers already gave up; they are dropped.
func (t *TCP) Exchange(ctx context.Context, req Request) (Reply, error) {
	conn, rd, err := t.connect(ctx)
	if err != nil {
		return Reply{}, err
	}

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		t.drop(conn)
		return Reply{}, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	line, err := json.Marshal(req)
	if err != nil {
		return Reply{}, fmt.Errorf("encode %s: %w", req.Name, err)
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		t.drop(conn)
		return Reply{}, err
	}

	for {
		raw, err := rd.ReadBytes('\n')
		if err != nil {
			t.drop(conn)
			return Reply{}, err
		}
		var reply Reply
		if err := json.Unmarshal(raw, &reply); err != nil {
			t.drop(conn)
			return Reply{}, fmt.Errorf("decode reply: %w", err)
		}
		if reply.ID == req.ID {
			return reply, nil
		}
	}
}

func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.rd = nil
	return err
}
