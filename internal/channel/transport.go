package channel

import "context"

// Request is one command as it travels over a transport.
type Request struct {
	ID   string   `json:"id"`
	Name string   `json:"cmd"`
	Args []string `json:"args,omitempty"`
}

// Reply is the remote interpreter's answer to a Request with the same ID.
// OK=false means the command ran and failed; Value then holds the error text.
type Reply struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Value string `json:"value"`
}

// Transport moves a request to the remote process and waits for its reply.
// Any returned error is treated as the remote being unreachable.
type Transport interface {
	Exchange(ctx context.Context, req Request) (Reply, error)
	Close() error
}

// Sender is the part of Client the rest of the system depends on.
type Sender interface {
	Send(ctx context.Context, cmd Command, timeout Timeout) Result
}
