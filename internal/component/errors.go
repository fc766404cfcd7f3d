package component

import "errors"

// Domain-specific errors for component operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownMethod is returned when a component has no response for a method.
	ErrUnknownMethod = errors.New("component: unknown method")

	// ErrDuplicateComponent is returned when two components share a name.
	ErrDuplicateComponent = errors.New("component: duplicate name")

	// ErrUnknownType is returned for a component type the registry cannot build.
	ErrUnknownType = errors.New("component: unknown type")

	// ErrNotFound is returned when a component does not exist in the registry.
	ErrNotFound = errors.New("component: not found")
)
