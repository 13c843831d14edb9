// Package hook runs user-configured hook scripts.
package hook

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cmctl/internal/logging"
)

const DefaultShell = "sh"

// waitDelay bounds how long a cancelled hook's children may hold its output open.
const waitDelay = time.Second

var ErrEmptyScript = errors.New("hook: empty script")

// Error is a failed hook run. Its text is what the script printed, or the
// process error when the script printed nothing.
type Error struct {
	Output string
	Err    error
}

func (e *Error) Error() string {
	if e.Output != "" {
		return e.Output
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Shell runs scripts with "<Path> -c". Env, when set, is called on every run
// and its entries are appended to the process environment.
type Shell struct {
	Path   string
	Dir    string
	Env    func() []string
	Logger *log.Logger
}

func (s Shell) Run(ctx context.Context, script string) error {
	if strings.TrimSpace(script) == "" {
		return ErrEmptyScript
	}
	path := s.Path
	if path == "" {
		path = DefaultShell
	}

	cmd := exec.CommandContext(ctx, path, "-c", script)
	cmd.Dir = s.Dir
	cmd.WaitDelay = waitDelay
	cmd.Env = os.Environ()
	if s.Env != nil {
		cmd.Env = append(cmd.Env, s.Env()...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger := logging.OrDiscard(s.Logger)
	logger.Debug("running hook", "script", script)
	if err := cmd.Run(); err != nil {
		herr := &Error{Output: strings.TrimSpace(out.String()), Err: err}
		logger.Debug("hook failed", "err", herr)
		return herr
	}
	return nil
}
