package command

import "errors"

// Domain-specific errors for command dispatch.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownHandler is returned when a binding names a handler that does not exist.
	ErrUnknownHandler = errors.New("command: unknown handler")

	// ErrNotResponder is returned when a component response is bound to a
	// component that cannot answer methods.
	ErrNotResponder = errors.New("command: component does not answer methods")

	// ErrInvalidBinding is returned for a component binding without a method
	// and for two bindings on the same routing key.
	ErrInvalidBinding = errors.New("command: invalid binding")

	// ErrInvalidPayload is returned by handlers for request bodies they cannot decode.
	ErrInvalidPayload = errors.New("command: invalid payload")
)
