package channel

import "errors"

var (
	ErrConnectionFailed = errors.New("channel: connection failed")
	ErrTimeout          = errors.New("channel: no response within timeout")

	ErrUnknownCommand = errors.New("channel: unknown command")
	ErrBadArgs        = errors.New("channel: wrong number of arguments")
)

// RemoteError reports that the remote interpreter ran the command and signaled failure.
type RemoteError struct {
	Text string
}

func (e *RemoteError) Error() string {
	return "remote: " + e.Text
}
