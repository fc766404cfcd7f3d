package hub

import "errors"

// Domain-specific errors for hub operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrClosed is returned by every operation after Shutdown.
	ErrClosed = errors.New("hub: connection shut down")

	// ErrConnectionFailed is returned when the hub session cannot be established.
	ErrConnectionFailed = errors.New("hub: connection failed")

	// ErrInvalidConnectionString is returned for malformed or incomplete connection strings.
	ErrInvalidConnectionString = errors.New("hub: invalid connection string")

	// ErrInvalidTopic is returned when an inbound topic does not follow the IoT Hub scheme.
	ErrInvalidTopic = errors.New("hub: unexpected topic")

	// ErrRejected is returned when the hub answers a reported properties patch with a non-2xx status.
	ErrRejected = errors.New("hub: request rejected")

	// ErrTimeout is returned when the hub does not answer a request in time.
	ErrTimeout = errors.New("hub: request timed out")
)
