package runtime

import "fmt"

// State is one position in the run state machine.
type State int

const (
	// StateIdle is the only initial state.
	StateIdle State = iota
	// StateFetchingSchema reads the schema snapshot.
	StateFetchingSchema
	// StateGeneratingSQL asks the collaborator for a candidate statement.
	StateGeneratingSQL
	// StateValidating runs the candidate through the safety validator.
	StateValidating
	// StateExecuting runs the validated statement.
	StateExecuting
	// StateSummarizing turns the result into a prose answer.
	StateSummarizing
	// StateDone is the successful terminal state.
	StateDone
	// StateFailed is the failing terminal state.
	StateFailed
)

// String returns the snake_case state name used in logs and events.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingSchema:
		return "fetching_schema"
	case StateGeneratingSQL:
		return "generating_sql"
	case StateValidating:
		return "validating"
	case StateExecuting:
		return "executing"
	case StateSummarizing:
		return "summarizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// transitions is the exhaustive set of legal moves. Every state maps to
// the complete list of states it may enter next; anything else is a
// programming error.
var transitions = map[State][]State{
	StateIdle:           {StateFetchingSchema, StateFailed},
	StateFetchingSchema: {StateGeneratingSQL, StateFailed},
	StateGeneratingSQL:  {StateValidating, StateFailed},
	// Validating may loop back exactly once for the self-correction.
	StateValidating:  {StateExecuting, StateGeneratingSQL, StateFailed},
	StateExecuting:   {StateSummarizing, StateFailed},
	StateSummarizing: {StateDone, StateFailed},
	StateDone:        {},
	StateFailed:      {},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
