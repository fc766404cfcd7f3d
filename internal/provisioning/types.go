package provisioning

import "time"

// StatusAssigned is the only registration status that yields a usable hub.
const StatusAssigned = "assigned"

// Request describes one symmetric-key registration.
type Request struct {
	// Endpoint is the global provisioning host, e.g.
	// global.azure-devices-provisioning.net.
	Endpoint       string
	IDScope        string
	RegistrationID string

	// DeviceKey is the base64 symmetric key of the registration.
	DeviceKey string

	// ModelID is sent in the registration payload so the service can route
	// Plug and Play devices.
	ModelID string
}

// Result is the terminal state of a registration.
type Result struct {
	// Status is "assigned", "failed" or "disabled".
	Status      string
	AssignedHub string
	DeviceID    string
	OperationID string
}

// Assigned reports whether the device can connect to AssignedHub.
func (r Result) Assigned() bool {
	return r.Status == StatusAssigned && r.AssignedHub != "" && r.DeviceID != ""
}

// registrationBody is published to iotdps-register.
type registrationBody struct {
	RegistrationID string         `json:"registrationId"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// operationBody is the service's answer to register and status polls.
type operationBody struct {
	OperationID       string `json:"operationId"`
	Status            string `json:"status"`
	RegistrationState struct {
		AssignedHub  string `json:"assignedHub"`
		DeviceID     string `json:"deviceId"`
		Status       string `json:"status"`
		ErrorCode    int    `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	} `json:"registrationState"`
}

// response is one message on $dps/registrations/res/.
type response struct {
	status     int
	rid        string
	retryAfter time.Duration
	body       []byte
}

// Logger is the logging interface used by the provisioning client.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
