package ingest

import "fmt"

// StateError is returned when a lifecycle operation cannot proceed in the
// pipeline's current state.
type StateError struct {
	Op    string
	State SessionState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

// InvalidArgumentError is returned for configuration values that cannot be
// parsed or applied.
type InvalidArgumentError struct {
	message string
	wrapped error
}

func (e *InvalidArgumentError) Error() string {
	if e.wrapped == nil {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, e.wrapped.Error())
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.wrapped
}
