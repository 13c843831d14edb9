package channel

import (
	"fmt"
	"sort"
	"strings"
)

// Command is one of the fixed set of requests the remote interpreter understands.
// The wire encoding is the lowercase name followed by positional string arguments.
type Command interface {
	Name() string
	Args() []string
	command()
}

// LastActiveSentinel asks the remote to re-activate whatever model it last had active.
const LastActiveSentinel = "-"

type (
	Version       struct{}
	Running       struct{}
	GetProjectDir struct{}
	SetProjectDir struct{ Dir string }

	QueryActiveModel   struct{}
	ActivateModel      struct{ Model string }
	ActivateLastActive struct{}

	RunningModel struct{}
	SimState     struct{}
	EndStatus    struct{}

	GetEnv struct{ Var string }
	SetEnv struct{ Var, Value string }

	Exit               struct{}
	StopFcn            struct{}
	SetWorkspaceVars   struct{}
	SetStartFcnFailure struct{ Message string }
	VehicleParams      struct{}
	TimerPoll          struct{}
	EngRunning         struct{ Running bool }
)

func (Version) Name() string            { return "version" }
func (Running) Name() string            { return "running" }
func (GetProjectDir) Name() string      { return "getprojectdir" }
func (SetProjectDir) Name() string      { return "setprojectdir" }
func (QueryActiveModel) Name() string   { return "activemodel" }
func (ActivateModel) Name() string      { return "activemodel" }
func (ActivateLastActive) Name() string { return "activemodel" }
func (RunningModel) Name() string       { return "runningmodel" }
func (SimState) Name() string           { return "simstate" }
func (EndStatus) Name() string          { return "endstatus" }
func (GetEnv) Name() string             { return "getenv" }
func (SetEnv) Name() string             { return "setenv" }
func (Exit) Name() string               { return "exit" }
func (StopFcn) Name() string            { return "stopfcn" }
func (SetWorkspaceVars) Name() string   { return "setworkspacevars" }
func (SetStartFcnFailure) Name() string { return "setstartfcnfailure" }
func (VehicleParams) Name() string      { return "vehicleparams" }
func (TimerPoll) Name() string          { return "timerpoll" }
func (EngRunning) Name() string         { return "engrunning" }

func (Version) Args() []string            { return nil }
func (Running) Args() []string            { return nil }
func (GetProjectDir) Args() []string      { return nil }
func (c SetProjectDir) Args() []string    { return []string{c.Dir} }
func (QueryActiveModel) Args() []string   { return nil }
func (c ActivateModel) Args() []string    { return []string{c.Model} }
func (ActivateLastActive) Args() []string { return []string{LastActiveSentinel} }
func (RunningModel) Args() []string       { return nil }
func (SimState) Args() []string           { return nil }
func (EndStatus) Args() []string          { return nil }
func (c GetEnv) Args() []string           { return []string{c.Var} }
func (c SetEnv) Args() []string           { return []string{c.Var, c.Value} }
func (Exit) Args() []string               { return nil }
func (StopFcn) Args() []string            { return nil }
func (SetWorkspaceVars) Args() []string   { return nil }
func (c SetStartFcnFailure) Args() []string {
	return []string{c.Message}
}
func (VehicleParams) Args() []string { return nil }
func (TimerPoll) Args() []string     { return nil }
func (c EngRunning) Args() []string {
	if c.Running {
		return []string{"1"}
	}
	return []string{"0"}
}

func (Version) command()            {}
func (Running) command()            {}
func (GetProjectDir) command()      {}
func (SetProjectDir) command()      {}
func (QueryActiveModel) command()   {}
func (ActivateModel) command()      {}
func (ActivateLastActive) command() {}
func (RunningModel) command()       {}
func (SimState) command()           {}
func (EndStatus) command()          {}
func (GetEnv) command()             {}
func (SetEnv) command()             {}
func (Exit) command()               {}
func (StopFcn) command()            {}
func (SetWorkspaceVars) command()   {}
func (SetStartFcnFailure) command() {}
func (VehicleParams) command()      {}
func (TimerPoll) command()          {}
func (EngRunning) command()         {}

type parser func(args []string) (Command, error)

func fixed(c Command) parser {
	return func(args []string) (Command, error) {
		if len(args) != 0 {
			return nil, badArgs(c.Name(), 0, len(args))
		}
		return c, nil
	}
}

func badArgs(name string, want, got int) error {
	return fmt.Errorf("%w: %s takes %d, got %d", ErrBadArgs, name, want, got)
}

var parsers = map[string]parser{
	"version":          fixed(Version{}),
	"running":          fixed(Running{}),
	"getprojectdir":    fixed(GetProjectDir{}),
	"runningmodel":     fixed(RunningModel{}),
	"simstate":         fixed(SimState{}),
	"endstatus":        fixed(EndStatus{}),
	"exit":             fixed(Exit{}),
	"stopfcn":          fixed(StopFcn{}),
	"setworkspacevars": fixed(SetWorkspaceVars{}),
	"vehicleparams":    fixed(VehicleParams{}),
	"timerpoll":        fixed(TimerPoll{}),
	"setprojectdir": func(args []string) (Command, error) {
		if len(args) != 1 {
			return nil, badArgs("setprojectdir", 1, len(args))
		}
		return SetProjectDir{Dir: args[0]}, nil
	},
	"activemodel": func(args []string) (Command, error) {
		switch {
		case len(args) == 0:
			return QueryActiveModel{}, nil
		case len(args) > 1:
			return nil, badArgs("activemodel", 1, len(args))
		case args[0] == LastActiveSentinel:
			return ActivateLastActive{}, nil
		default:
			return ActivateModel{Model: args[0]}, nil
		}
	},
	"getenv": func(args []string) (Command, error) {
		if len(args) != 1 {
			return nil, badArgs("getenv", 1, len(args))
		}
		return GetEnv{Var: args[0]}, nil
	},
	"setenv": func(args []string) (Command, error) {
		if len(args) != 2 {
			return nil, badArgs("setenv", 2, len(args))
		}
		return SetEnv{Var: args[0], Value: args[1]}, nil
	},
	"setstartfcnfailure": func(args []string) (Command, error) {
		return SetStartFcnFailure{Message: strings.Join(args, " ")}, nil
	},
	"engrunning": func(args []string) (Command, error) {
		if len(args) != 1 {
			return nil, badArgs("engrunning", 1, len(args))
		}
		switch args[0] {
		case "0":
			return EngRunning{Running: false}, nil
		case "1":
			return EngRunning{Running: true}, nil
		}
		return nil, fmt.Errorf("%w: engrunning expects 0 or 1, got %q", ErrBadArgs, args[0])
	},
}

// ParseCommand maps a wire name and raw arguments onto a typed command.
func ParseCommand(name string, args []string) (Command, error) {
	p, ok := parsers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return p(args)
}

// CommandNames lists every wire name ParseCommand accepts.
func CommandNames() []string {
	names := make([]string, 0, len(parsers))
	for name := range parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format renders a command the way it appears on a Tcl-style console.
func Format(c Command) string {
	parts := append([]string{c.Name()}, c.Args()...)
	return strings.Join(parts, " ")
}
