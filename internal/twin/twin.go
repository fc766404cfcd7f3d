package twin

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/rpihome/internal/hub"
)

// receiveRetryDelay is the pause after a failed receive.
const receiveRetryDelay = time.Second

// Writable property acknowledgement fields.
const (
	ackCode        = 200
	ackDescription = "Successfully executed patch"
)

// Conn is the part of hub.Connection the synchroniser uses.
type Conn interface {
	ReceiveDesiredPatch(ctx context.Context) (hub.Patch, error)
	PatchReportedProperties(ctx context.Context, props map[string]any) error
}

// Recorder persists the last applied desired version.
type Recorder interface {
	RecordDesired(ctx context.Context, version int64, properties map[string]any) error
}

// Logger is the logging interface used by the synchroniser.
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

// FieldTransform rewrites one reported value.
type FieldTransform func(value any) any

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithAcknowledgement reports every value in the writable property ack
// shape {"ac":200,"ad":"...","av":version,"value":v}.
func WithAcknowledgement() Option {
	return func(s *Synchronizer) { s.acknowledge = true }
}

// WithFieldTransform applies fn to every value reported under name, at the
// top level or inside a component section.
func WithFieldTransform(name string, fn FieldTransform) Option {
	return func(s *Synchronizer) { s.transforms[name] = fn }
}

// WithRecorder records each acknowledged desired version.
func WithRecorder(r Recorder) Option {
	return func(s *Synchronizer) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// Synchronizer answers each desired properties patch with a reported patch.
type Synchronizer struct {
	conn        Conn
	logger      Logger
	recorder    Recorder
	acknowledge bool
	transforms  map[string]FieldTransform

	retryDelay time.Duration

	applied atomic.Int64
	failed  atomic.Int64
	version atomic.Int64
}

// NewSynchronizer returns a Synchronizer for conn.
func NewSynchronizer(conn Conn, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		conn:       conn,
		logger:     noopLogger{},
		transforms: make(map[string]FieldTransform),
		retryDelay: receiveRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run receives patches and reports them until ctx is cancelled or the
// connection is shut down. Patches are handled strictly one at a time.
func (s *Synchronizer) Run(ctx context.Context) error {
	for {
		patch, err := s.conn.ReceiveDesiredPatch(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, hub.ErrClosed):
				return err
			}
			s.logger.Warn("receiving desired properties failed", "error", err)
			if !sleep(ctx, s.retryDelay) {
				return nil
			}
			continue
		}

		s.apply(ctx, patch)
	}
}

func (s *Synchronizer) apply(ctx context.Context, patch hub.Patch) {
	s.logger.Info("desired properties received", "version", patch.Version, "keys", len(patch.Properties))

	report := s.Reported(patch)
	if err := s.conn.PatchReportedProperties(ctx, report); err != nil {
		s.failed.Add(1)
		if ctx.Err() == nil {
			s.logger.Warn("reporting properties failed", "version", patch.Version, "error", err)
		}
		return
	}

	s.applied.Add(1)
	s.version.Store(patch.Version)

	if s.recorder != nil {
		if err := s.recorder.RecordDesired(ctx, patch.Version, patch.Properties); err != nil {
			s.logger.Warn("recording desired version failed", "version", patch.Version, "error", err)
		}
	}
}

// Reported maps a desired patch to the reported patch answering it. The
// result has exactly the patch's top-level keys.
func (s *Synchronizer) Reported(patch hub.Patch) map[string]any {
	out := make(map[string]any, len(patch.Properties))
	for key, value := range patch.Properties {
		section, ok := hub.IsComponentSection(value)
		if !ok {
			out[key] = s.value(key, value, patch.Version)
			continue
		}

		mapped := make(map[string]any, len(section))
		for field, v := range section {
			if field == hub.ComponentMarkerKey {
				mapped[field] = v
				continue
			}
			mapped[field] = s.value(field, v, patch.Version)
		}
		out[key] = mapped
	}
	return out
}

func (s *Synchronizer) value(name string, v any, version int64) any {
	if fn, ok := s.transforms[name]; ok {
		v = fn(v)
	}
	if !s.acknowledge {
		return v
	}
	return map[string]any{
		"ac":    ackCode,
		"ad":    ackDescription,
		"av":    version,
		"value": v,
	}
}

// Stats is a snapshot of synchroniser counters.
type Stats struct {
	Applied     int64 `json:"applied"`
	Failed      int64 `json:"failed"`
	LastVersion int64 `json:"last_version"`
}

// Stats reports how many patches were reported and the last version.
func (s *Synchronizer) Stats() Stats {
	return Stats{
		Applied:     s.applied.Load(),
		Failed:      s.failed.Load(),
		LastVersion: s.version.Load(),
	}
}

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
