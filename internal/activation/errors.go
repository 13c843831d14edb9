package activation

import "errors"

// Selection failure kinds. Their text is what gets reported, so it carries
// no package prefix.
var (
	ErrNoModelLoaded    = errors.New("no model loaded")
	ErrNoModelSelected  = errors.New("no model selected")
	ErrInvalidSelection = errors.New("selected model is not loaded")
)

// HookError is a failed activate or start hook.
type HookError struct {
	Hook   string
	Script string
	Err    error
}

func (e *HookError) Error() string {
	return e.Hook + " hook: " + e.Err.Error()
}

func (e *HookError) Unwrap() error { return e.Err }

// SelectionError means no target model could be resolved.
type SelectionError struct {
	Kind       error
	Candidates []string
}

func (e *SelectionError) Error() string { return e.Kind.Error() }

func (e *SelectionError) Unwrap() error { return e.Kind }

// failureMessage is the text retained for a failed attempt. Hook failures
// keep the runner's text verbatim.
func failureMessage(err error) string {
	var he *HookError
	if errors.As(err, &he) {
		return he.Err.Error()
	}
	return err.Error()
}
