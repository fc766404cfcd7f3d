package telemetry

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/rpihome/internal/component"
	"github.com/nerrad567/rpihome/internal/hub"
)

// DefaultInterval is the pause after each message.
const DefaultInterval = 5 * time.Second

// Sender is the part of hub.Connection the publisher uses.
type Sender interface {
	SendMessage(ctx context.Context, msg hub.Message) error
}

// LastValueStore keeps the latest reading of each component.
type LastValueStore interface {
	SaveLastValues(ctx context.Context, component string, values map[string]any) error
}

// Logger is the logging interface used by the publisher.
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

// Config configures a Publisher.
type Config struct {
	// Interval is the pause after each component, whether or not its
	// message was sent. Zero means no pause.
	Interval time.Duration

	// Store receives sensor readings after they are sent. Optional.
	Store LastValueStore

	Logger Logger
}

// Publisher reads every component in registry order and sends its values.
type Publisher struct {
	conn     Sender
	registry *component.Registry
	interval time.Duration
	store    LastValueStore
	logger   Logger

	now func() time.Time

	sent   atomic.Int64
	failed atomic.Int64
	cycles atomic.Int64
}

// NewPublisher returns a Publisher for the components of reg.
func NewPublisher(conn Sender, reg *component.Registry, cfg Config) *Publisher {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{
		conn:     conn,
		registry: reg,
		interval: cfg.Interval,
		store:    cfg.Store,
		logger:   logger,
		now:      time.Now,
	}
}

// Run publishes cycle after cycle until ctx is cancelled or the connection
// is shut down.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("sending telemetry", "components", p.registry.Names(), "interval", p.interval)

	for {
		if err := p.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		p.cycles.Add(1)
	}
}

// cycle sends one message per component. It returns ctx.Err() when
// cancelled and hub.ErrClosed when the connection is gone; other failures
// are logged and skipped.
func (p *Publisher) cycle(ctx context.Context) error {
	for _, c := range p.registry.All() {
		if err := p.publish(ctx, c); err != nil {
			return err
		}
		if !wait(ctx, p.interval) {
			return ctx.Err()
		}
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, c component.Component) error {
	values, err := c.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.failed.Add(1)
		p.logger.Warn("reading component failed", "component", c.Name(), "error", err)
		return nil
	}

	msg := hub.Message{Values: values, CreatedAt: p.now()}
	if c.Kind() != component.KindCompositeInfo {
		msg.Component = c.Name()
	}

	if err := p.conn.SendMessage(ctx, msg); err != nil {
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, hub.ErrClosed):
			return err
		}
		p.failed.Add(1)
		p.logger.Warn("sending telemetry failed", "component", c.Name(), "error", err)
		return nil
	}

	p.sent.Add(1)
	p.logger.Debug("sent message", "component", msg.Component, "values", values)

	if p.store != nil && c.Kind() == component.KindSensor {
		if err := p.store.SaveLastValues(ctx, c.Name(), values); err != nil && ctx.Err() == nil {
			p.logger.Warn("saving last values failed", "component", c.Name(), "error", err)
		}
	}
	return nil
}

// Stats is a snapshot of publisher counters.
type Stats struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
	Cycles int64 `json:"cycles"`
}

// Stats reports messages sent, failed reads or sends, and completed cycles.
func (p *Publisher) Stats() Stats {
	return Stats{
		Sent:   p.sent.Load(),
		Failed: p.failed.Load(),
		Cycles: p.cycles.Load(),
	}
}

// wait pauses for d, reporting false if ctx ends first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
