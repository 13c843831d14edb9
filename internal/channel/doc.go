// Package channel implements the command/control link between the host and the
// simulation-engine GUI process.
//
// A [Client] sends one typed [Command] at a time and returns a [Result]:
//
//   - [WaitForever]: block until the remote interpreter answers
//   - [NoWait]: fire-and-forget, always ("", OK)
//   - any positive duration: bounded wait, ("timeout", TIMEOUT) on expiry
//
// Transport failures never panic or return errors; they surface as
// [StatusConnectionFailed]. Callers must inspect [Result.Status] on every call.
//
// # Thread Safety
//
// Client is safe for concurrent use. Exchanges are single-flight: a second
// caller waits until the outstanding exchange (including one whose caller has
// already timed out) completes on the wire.
package channel
