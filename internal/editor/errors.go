package editor

import "fmt"

// ValidationError rejects a geometry commit that violates a structural
// invariant. The session stays in editing mode and history is untouched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid geometry: " + e.Reason
}

// StateConflictError rejects an operation requested while the draw-mode
// controller is in an incompatible state. No side effect has occurred.
type StateConflictError struct {
	Op   string
	Mode Mode
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s while in mode %q", e.Op, e.Mode)
}

// PersistenceError reports a backend rejection of a committed edit. The
// in-memory state has already been rolled back by a compensating undo.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed for %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown motor reference.
type NotFoundError struct {
	RefID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no motor with reference %q", e.RefID)
}
