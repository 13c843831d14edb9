package activation

import "fmt"

type State int

const (
	StateInit State = iota
	StateResolveActive
	StateRunActivateHook
	StateResolveTarget
	StateRunStartHook
	StateLoadTarget
	StateLoadFallback
	StateDone
)

var stateNames = [...]string{
	StateInit:            "INIT",
	StateResolveActive:   "RESOLVE_ACTIVE",
	StateRunActivateHook: "RUN_ACTIVATE_HOOK",
	StateResolveTarget:   "RESOLVE_TARGET",
	StateRunStartHook:    "RUN_START_HOOK",
	StateLoadTarget:      "LOAD_TARGET",
	StateLoadFallback:    "LOAD_FALLBACK",
	StateDone:            "DONE",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CanTransition reports whether the machine may move from s to next.
// LOAD_TARGET may still divert to LOAD_FALLBACK when the target itself
// fails to load or start.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateInit:
		return next == StateResolveActive
	case StateResolveActive:
		return next == StateRunActivateHook
	case StateRunActivateHook:
		return next == StateResolveTarget
	case StateResolveTarget:
		return next == StateRunStartHook
	case StateRunStartHook:
		return next == StateLoadTarget || next == StateLoadFallback
	case StateLoadTarget:
		return next == StateDone || next == StateLoadFallback
	case StateLoadFallback:
		return next == StateDone
	default:
		return false
	}
}

func (s State) Terminal() bool { return s == StateDone }
