package command

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/rpihome/internal/hub"
)

// receiveRetryDelay is the pause after a failed receive.
const receiveRetryDelay = time.Second

// Conn is the part of hub.Connection a dispatcher uses.
type Conn interface {
	ReceiveMethodRequest(ctx context.Context, key string) (hub.MethodRequest, error)
	SendMethodResponse(ctx context.Context, resp hub.MethodResponse) error
}

// Logger is the logging interface used by command dispatchers.
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

// DispatcherConfig configures one Dispatcher.
type DispatcherConfig struct {
	Filter Filter

	// Handler runs before the response is built. Nil means nothing to run.
	Handler Handler

	// Respond builds the response. Nil means GenericResponse.
	Respond ResponseBuilder

	Logger Logger
}

// Dispatcher answers the method requests selected by its filter, one at a
// time.
type Dispatcher struct {
	conn    Conn
	filter  Filter
	handler Handler
	respond ResponseBuilder
	logger  Logger

	retryDelay time.Duration

	handled atomic.Int64
	failed  atomic.Int64
}

// NewDispatcher returns a Dispatcher receiving from conn.
func NewDispatcher(conn Conn, cfg DispatcherConfig) *Dispatcher {
	respond := cfg.Respond
	if respond == nil {
		respond = GenericResponse
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Dispatcher{
		conn:       conn,
		filter:     cfg.Filter,
		handler:    cfg.Handler,
		respond:    respond,
		logger:     logger,
		retryDelay: receiveRetryDelay,
	}
}

// Filter returns the dispatcher's filter.
func (d *Dispatcher) Filter() Filter { return d.filter }

// Listen receives and answers requests until ctx is cancelled or the
// connection is shut down. Every received request gets exactly one
// response attempt.
func (d *Dispatcher) Listen(ctx context.Context) error {
	d.logger.Debug("command dispatcher started", "filter", d.filter.String())
	defer d.logger.Debug("command dispatcher stopped", "filter", d.filter.String())

	for {
		req, err := d.conn.ReceiveMethodRequest(ctx, d.filter.Key())
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, hub.ErrClosed):
				return err
			}

			d.logger.Warn("receiving command failed", "filter", d.filter.String(), "error", err)
			if !sleep(ctx, d.retryDelay) {
				return nil
			}
			continue
		}

		d.dispatch(ctx, req)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// dispatch runs the handler, builds the response and sends it.
func (d *Dispatcher) dispatch(ctx context.Context, req hub.MethodRequest) {
	d.handled.Add(1)
	d.logger.Info("command request received",
		"method", req.Name,
		"rid", req.RequestID,
		"payload", string(req.Payload),
	)

	status, payload, err := d.execute(ctx, req)
	if err != nil {
		d.failed.Add(1)
		d.logger.Error("command failed", "method", req.Name, "rid", req.RequestID, "error", err)
		status, payload = StatusFailed, resultPayload(false, err.Error())
	}

	resp := hub.MethodResponse{RequestID: req.RequestID, Status: status, Payload: payload}
	if err := d.conn.SendMethodResponse(ctx, resp); err != nil {
		d.failed.Add(1)
		d.logger.Error("responding to the "+d.commandName(req)+" command failed", "rid", req.RequestID, "error", err)
	}
}

func (d *Dispatcher) execute(ctx context.Context, req hub.MethodRequest) (int, any, error) {
	if d.handler != nil {
		if err := d.handler(ctx, req); err != nil {
			return 0, nil, err
		}
	} else {
		d.logger.Debug("no handler bound", "method", req.Name)
	}
	return d.respond(ctx, req, d.filter)
}

func (d *Dispatcher) commandName(req hub.MethodRequest) string {
	if m := d.filter.Method(); m != "" {
		return m
	}
	return req.Name
}

// DispatcherStats is a snapshot of dispatcher counters.
type DispatcherStats struct {
	Filter  string `json:"filter"`
	Handled int64  `json:"handled"`
	Failed  int64  `json:"failed"`
}

// Stats reports how many requests were received and how many failed in
// the handler or while sending the response.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Filter:  d.filter.String(),
		Handled: d.handled.Load(),
		Failed:  d.failed.Load(),
	}
}

// sleep waits for d or ctx, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
