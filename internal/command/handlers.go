package command

import (
	"bytes"
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/nerrad567/rpihome/internal/hub"
)

// maxRebootDelay caps the delay a reboot request may ask for.
const maxRebootDelay = 30 * time.Second

// Handler executes a method request. The dispatcher waits for it to return
// before responding.
type Handler func(ctx context.Context, req hub.MethodRequest) error

// Handlers returns the built-in handlers by the name used in command
// bindings.
func Handlers(logger Logger) map[string]Handler {
	if logger == nil {
		logger = noopLogger{}
	}
	return map[string]Handler{
		"reboot": rebootHandler(logger),
		"kpi":    kpiHandler(logger),
	}
}

// rebootHandler waits the requested delay and reports the reboot as done.
// The payload is a number of seconds or {"delay": seconds}. Restarting the
// host is left to the operator.
func rebootHandler(logger Logger) Handler {
	return func(ctx context.Context, req hub.MethodRequest) error {
		delay, err := rebootDelay(req.Payload)
		if err != nil {
			return err
		}
		if delay > maxRebootDelay {
			delay = maxRebootDelay
		}

		logger.Info("reboot requested", "rid", req.RequestID, "delay", delay)
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
		logger.Info("reboot done", "rid", req.RequestID)
		return nil
	}
}

func rebootDelay(payload []byte) (time.Duration, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return 0, nil
	}

	var seconds float64
	if err := json.Unmarshal(payload, &seconds); err == nil {
		return secondsToDuration(seconds)
	}

	var body struct {
		Delay float64 `json:"delay"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return 0, fmt.Errorf("%w: reboot delay: %s", ErrInvalidPayload, payload)
	}
	return secondsToDuration(body.Delay)
}

func secondsToDuration(s float64) (time.Duration, error) {
	if s < 0 {
		return 0, fmt.Errorf("%w: negative reboot delay", ErrInvalidPayload)
	}
	return time.Duration(s * float64(time.Second)), nil
}

func kpiHandler(logger Logger) Handler {
	return func(_ context.Context, req hub.MethodRequest) error {
		logger.Info("kpi report requested", "method", req.Name, "rid", req.RequestID)
		return nil
	}
}
