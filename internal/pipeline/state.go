package pipeline

// State is a step of the question-answering state machine
type State int

const (
	StateGenerating State = iota
	StateValidating
	StateExecuting
	StateRepairing
	StateSucceeded
	StateFailed
)

// MaxRepairs is the repair budget of a single run
const MaxRepairs = 1

func (s State) String() string {
	switch s {
	case StateGenerating:
		return "generating"
	case StateValidating:
		return "validating"
	case StateExecuting:
		return "executing"
	case StateRepairing:
		return "repairing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen from s
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
