package types

import (
	"errors"
	"fmt"
)

// CustomError carries an HTTP status code and error type for the global
// Fiber error handler.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// ErrNotFound is returned when a row is missing or owned by another user.
// The two causes are deliberately indistinguishable to callers.
var ErrNotFound = errors.New("not found")

// ValidationError reports a field length/range/format violation. The
// operation was not attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StateConflictError reports a mutation attempted on an entity not in the
// required state, e.g. editing a non-active project or an achieved milestone.
type StateConflictError struct {
	Reason string
}

func (e *StateConflictError) Error() string {
	return e.Reason
}

// CapacityError reports a per-entity limit that has been reached.
type CapacityError struct {
	Resource string
	Limit    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s limit reached (%d)", e.Resource, e.Limit)
}
