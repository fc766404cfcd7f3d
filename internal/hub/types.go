package hub

import (
	"context"
	"time"
)

// Credentials identify one device on one hub.
type Credentials struct {
	Host            string
	DeviceID        string
	SharedAccessKey string

	// ModelID is the IoT Plug and Play model advertised on connect.
	ModelID string
}

// MethodRequest is a direct method invocation addressed to the device.
type MethodRequest struct {
	// RequestID correlates the response; it must be echoed unchanged.
	RequestID string

	// Name is the method name as addressed by the cloud: "reboot" or
	// "dht11*kpiReport" for component commands.
	Name string

	// Payload is the raw JSON body. It may be empty.
	Payload []byte

	ReceivedAt time.Time
}

// MethodResponse answers exactly one MethodRequest.
type MethodResponse struct {
	RequestID string
	Status    int
	Payload   any
}

// Patch is a desired properties update from the cloud.
type Patch struct {
	// Version is the twin's $version for this patch.
	Version int64

	// Properties holds every top-level key except $version.
	Properties map[string]any
}

// Message is one telemetry message.
type Message struct {
	// Component tags the message for a Plug and Play component. Empty means
	// device level.
	Component string
	Values    map[string]any
	CreatedAt time.Time
}

// Connection is the device session shared by every agent task.
//
// Implementations are safe for concurrent use. After Shutdown every
// operation returns ErrClosed.
type Connection interface {
	SendMessage(ctx context.Context, msg Message) error

	// ReceiveMethodRequest blocks until a request routed to key arrives.
	// key is "component*method", "method", or "" for every method no other
	// receiver has claimed.
	ReceiveMethodRequest(ctx context.Context, key string) (MethodRequest, error)
	SendMethodResponse(ctx context.Context, resp MethodResponse) error

	ReceiveDesiredPatch(ctx context.Context) (Patch, error)
	PatchReportedProperties(ctx context.Context, props map[string]any) error

	Shutdown() error
}

// Logger is the logging interface used by the hub.
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
