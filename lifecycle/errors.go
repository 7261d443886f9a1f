package lifecycle

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the lifecycle controller. Controllers map these
// to HTTP status codes; nothing else should inspect error strings.
var (
	// ErrNoChange is returned when a status update would not modify any field.
	// Rejecting (rather than silently succeeding) keeps the behavior
	// deterministic and avoids empty audit log entries.
	ErrNoChange = errors.New("no fields changed")

	// ErrConflict is returned when a concurrent writer modified the order
	// between read and write. Callers should re-read and retry.
	ErrConflict = errors.New("order was modified concurrently")
)

// ValidationError indicates bad input from the caller
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError indicates a missing order, machine, or profile
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InvalidTransitionError indicates a state machine violation
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// PreconditionError indicates an unmet requirement for a transition, such as
// entering active processing without a machine assigned
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// GatewayError indicates a failure talking to the external commerce backend
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("commerce gateway returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("commerce gateway error: %s", e.Message)
}
