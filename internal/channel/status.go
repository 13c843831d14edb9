package channel

import "fmt"

type Status int

const (
	StatusOK Status = iota
	StatusRemoteError
	StatusConnectionFailed
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusRemoteError:
		return "REMOTE_ERROR"
	case StatusConnectionFailed:
		return "CONNECTION_FAILED"
	case StatusTimeout:
		return "TIMEOUT"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

const (
	timeoutValue          = "timeout"
	connectionFailedValue = "connection failed"
)

type Result struct {
	Value  string
	Status Status
}

func ok(value string) Result { return Result{Value: value, Status: StatusOK} }

func remoteError(text string) Result { return Result{Value: text, Status: StatusRemoteError} }

func timedOut() Result { return Result{Value: timeoutValue, Status: StatusTimeout} }

func connectionFailed() Result {
	return Result{Value: connectionFailedValue, Status: StatusConnectionFailed}
}

func (r Result) OK() bool { return r.Status == StatusOK }

// Err converts a non-OK result into the matching error, nil otherwise.
func (r Result) Err() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusRemoteError:
		return &RemoteError{Text: r.Value}
	case StatusTimeout:
		return ErrTimeout
	default:
		return ErrConnectionFailed
	}
}

func (r Result) String() string {
	return fmt.Sprintf("%s %q", r.Status, r.Value)
}
