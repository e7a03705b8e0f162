package trace

import "fmt"

// Level controls tracing verbosity.
type Level uint8

const (
	// LevelOff disables tracing.
	LevelOff Level = iota // no tracing
	// LevelRun covers kernel lifecycle and run-loop boundaries.
	LevelRun
	// LevelTask adds per-task lifecycle events.
	LevelTask
	// LevelDebug emits everything including per-wakeup detail.
	LevelDebug
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelRun:
		return "run"
	case LevelTask:
		return "task"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "off", "OFF":
		return LevelOff, nil
	case "run", "RUN":
		return LevelRun, nil
	case "task", "TASK":
		return LevelTask, nil
	case "debug", "DEBUG":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|run|task|debug)", s)
	}
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelOff:
		return false
	case LevelRun:
		return scope <= ScopeKernel
	case LevelTask:
		return scope <= ScopeTask
	case LevelDebug:
		return true
	}
	return false
}
