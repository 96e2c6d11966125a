package board

import "fmt"

// AuthorizationError means the actor lacks the permission for the attempted
// mutation. It is never retried.
type AuthorizationError struct {
	ActorID   string
	ProjectID string
	Action    string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s is not allowed to %s in project %s", e.ActorID, e.Action, e.ProjectID)
}

// StaleStateError means the board changed between the client's drag and the
// mutation, e.g. a column or task was deleted mid-drag. Clients should
// refresh and let the user retry.
type StaleStateError struct {
	Reason string
	Err    error
}

func (e *StaleStateError) Error() string {
	if e.Err != nil {
		return "stale board state: " + e.Reason + ": " + e.Err.Error()
	}
	return "stale board state: " + e.Reason
}

func (e *StaleStateError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure. It is logged and surfaced, never
// auto-retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// notFoundError is implemented by storage errors that mean a row is missing.
type notFoundError interface {
	error
	NotFound()
}

// staleWriteError is implemented by storage errors that mean the write raced
// a concurrent structural change.
type staleWriteError interface {
	error
	StaleState()
}
