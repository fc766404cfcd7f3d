package lifecycle

import "errors"

// Domain-specific errors for the coordinator.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoSecurityType is returned when neither DPS nor a connection string is configured.
	ErrNoSecurityType = errors.New("lifecycle: no security type configured")

	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("lifecycle: coordinator already started")

	// ErrNotRunning is returned by HealthCheck outside the Running phase.
	ErrNotRunning = errors.New("lifecycle: agent not running")
)
