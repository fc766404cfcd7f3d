package provisioning

import "errors"

// Domain-specific errors for device provisioning.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidRequest is returned when a registration request is missing a field.
	ErrInvalidRequest = errors.New("provisioning: invalid request")

	// ErrRegistrationFailed is returned when the service answers with an error status.
	ErrRegistrationFailed = errors.New("provisioning: registration failed")

	// ErrNotAssigned is returned when registration finishes without a hub assignment.
	ErrNotAssigned = errors.New("provisioning: device not assigned")

	// ErrTimeout is returned when the service does not answer a request in time.
	ErrTimeout = errors.New("provisioning: request timed out")
)
