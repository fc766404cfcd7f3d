package mqtt

import "errors"

// Errors returned by Client. Check them with errors.Is.
var (
	// ErrNotConnected means the session is down (never connected, lost and
	// not yet restored, or closed).
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps the broker's refusal or the connect timeout.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps a rejected, timed out or cancelled publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps a rejected or timed out subscription.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
