package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/rpihome/internal/command"
	"github.com/nerrad567/rpihome/internal/component"
	"github.com/nerrad567/rpihome/internal/hub"
	"github.com/nerrad567/rpihome/internal/infrastructure/config"
	"github.com/nerrad567/rpihome/internal/provisioning"
	"github.com/nerrad567/rpihome/internal/telemetry"
	"github.com/nerrad567/rpihome/internal/twin"
)

// Dialer opens the hub connection.
type Dialer interface {
	Dial(ctx context.Context, creds hub.Credentials) (hub.Connection, error)
}

// Provisioner registers the device with DPS.
type Provisioner interface {
	Register(ctx context.Context, req provisioning.Request) (provisioning.Result, error)
}

// StopSignal blocks until the operator asks the agent to stop.
type StopSignal interface {
	Wait(ctx context.Context) error
}

// Store persists last values and the applied desired version.
type Store interface {
	telemetry.LastValueStore
	twin.Recorder
}

// Logger is the logging interface used by the coordinator.
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

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Registry    *component.Registry
	Dialer      Dialer
	Provisioner Provisioner

	// Stop ends the Running phase when Wait returns. Optional.
	Stop StopSignal

	// Store records last values and desired versions. Optional.
	Store  Store
	Logger Logger
}

// Coordinator owns the agent's goroutines and the hub connection.
//
// Run provisions (DPS only), connects, starts one dispatcher per command
// binding, the property synchroniser and the telemetry publisher, pushes
// the initial reported properties and waits for a stop. It then cancels
// every task, waits up to the drain timeout, and shuts the connection down
// exactly once.
type Coordinator struct {
	cfg    *config.Config
	deps   Deps
	logger Logger

	phase   atomic.Int32
	started atomic.Bool

	stopOnce sync.Once
	stopped  chan struct{}

	shutdownOnce sync.Once

	mu           sync.Mutex
	conn         hub.Connection
	creds        hub.Credentials
	dispatchers  []*command.Dispatcher
	synchronizer *twin.Synchronizer
	publisher    *telemetry.Publisher
	initialDone  bool
	startedAt    time.Time
}

// New returns a Coordinator for cfg.
func New(cfg *config.Config, deps Deps) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Coordinator{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Run drives the lifecycle until a stop is requested or ctx is done.
// Startup failures are returned before any task is started.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	creds, err := c.credentials(ctx)
	if err != nil {
		c.setPhase(PhaseShutDown)
		return err
	}

	c.setPhase(PhaseConnecting)
	conn, err := c.deps.Dialer.Dial(ctx, creds)
	if err != nil {
		c.setPhase(PhaseShutDown)
		return fmt.Errorf("connecting to %s: %w", creds.Host, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.creds = creds
	c.mu.Unlock()

	if err := c.run(ctx, conn); err != nil {
		c.shutdown()
		return err
	}
	return nil
}

// credentials resolves hub credentials from DPS or the connection string.
func (c *Coordinator) credentials(ctx context.Context) (hub.Credentials, error) {
	hubCfg := c.cfg.Hub
	modelID := c.cfg.Device.ModelID

	switch hubCfg.SecurityType {
	case config.SecurityDPS:
		c.setPhase(PhaseProvisioning)
		res, err := c.deps.Provisioner.Register(ctx, provisioning.Request{
			Endpoint:       hubCfg.DPS.Endpoint,
			IDScope:        hubCfg.DPS.IDScope,
			RegistrationID: hubCfg.DPS.RegistrationID,
			DeviceKey:      hubCfg.DPS.DeviceKey,
			ModelID:        modelID,
		})
		if err != nil {
			return hub.Credentials{}, fmt.Errorf("provisioning device: %w", err)
		}
		if !res.Assigned() {
			return hub.Credentials{}, fmt.Errorf("%w: status %q", provisioning.ErrNotAssigned, res.Status)
		}

		c.logger.Info("device was assigned", "assigned_hub", res.AssignedHub, "device_id", res.DeviceID)
		return hub.Credentials{
			Host:            res.AssignedHub,
			DeviceID:        res.DeviceID,
			SharedAccessKey: hubCfg.DPS.DeviceKey,
			ModelID:         modelID,
		}, nil

	case config.SecurityConnectionString:
		creds, err := hub.ParseConnectionString(hubCfg.ConnectionString)
		if err != nil {
			return hub.Credentials{}, err
		}
		creds.ModelID = modelID
		c.logger.Info("connecting using connection string", "host", creds.Host, "device_id", creds.DeviceID)
		return creds, nil

	default:
		return hub.Credentials{}, fmt.Errorf("%w: %q", ErrNoSecurityType, hubCfg.SecurityType)
	}
}

// run starts the tasks on conn, waits for a stop and drains.
func (c *Coordinator) run(ctx context.Context, conn hub.Connection) error {
	dispatchers, err := command.Build(c.cfg.Commands, c.deps.Registry, conn, c.logger)
	if err != nil {
		return fmt.Errorf("building command dispatchers: %w", err)
	}

	syncOpts := []twin.Option{twin.WithLogger(c.logger)}
	if c.cfg.Twin.Acknowledge {
		syncOpts = append(syncOpts, twin.WithAcknowledgement())
	}
	if c.deps.Store != nil {
		syncOpts = append(syncOpts, twin.WithRecorder(c.deps.Store))
	}
	synchronizer := twin.NewSynchronizer(conn, syncOpts...)

	publisher := telemetry.NewPublisher(conn, c.deps.Registry, telemetry.Config{
		Interval: c.cfg.GetTelemetryInterval(),
		Store:    c.deps.Store,
		Logger:   c.logger,
	})

	c.mu.Lock()
	c.dispatchers = dispatchers
	c.synchronizer = synchronizer
	c.publisher = publisher
	c.startedAt = time.Now()
	c.mu.Unlock()

	listenCtx, cancelListeners := context.WithCancel(ctx)
	telemetryCtx, cancelTelemetry := context.WithCancel(ctx)
	initialCtx, cancelInitial := context.WithCancel(ctx)
	stopCtx, cancelStop := context.WithCancel(ctx)
	defer cancelStop()

	// Claim every exact key before any dispatcher runs so a wildcard that
	// starts first cannot take requests meant for a slower one.
	if r, ok := conn.(interface{ ReserveMethods(keys ...string) }); ok {
		keys := make([]string, 0, len(dispatchers))
		for _, d := range dispatchers {
			keys = append(keys, d.Filter().Key())
		}
		r.ReserveMethods(keys...)
	}

	var wg sync.WaitGroup
	c.setPhase(PhaseRunning)
	c.logger.Info("listening for command requests and property updates", "dispatchers", len(dispatchers))

	for _, d := range dispatchers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Listen(listenCtx); err != nil {
				c.logger.Warn("command dispatcher exited", "filter", d.Filter().String(), "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := synchronizer.Run(listenCtx); err != nil {
			c.logger.Warn("property synchroniser exited", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := publisher.Run(telemetryCtx); err != nil {
			c.logger.Warn("telemetry publisher exited", "error", err)
		}
	}()

	initialDone := make(chan struct{})
	go func() {
		defer close(initialDone)
		c.pushInitial(initialCtx, conn)
	}()

	stopSignal := make(chan struct{})
	if c.deps.Stop != nil {
		go func() {
			if err := c.deps.Stop.Wait(stopCtx); err != nil && stopCtx.Err() == nil {
				c.logger.Warn("stop signal failed", "error", err)
			}
			close(stopSignal)
		}()
	}

	select {
	case <-stopSignal:
		c.logger.Info("quitting")
	case <-c.stopped:
		c.logger.Info("stop requested")
	case <-ctx.Done():
		c.logger.Info("shutdown signal received")
	}

	c.setPhase(PhaseDraining)

	select {
	case <-initialDone:
	default:
		cancelInitial()
		c.logger.Debug("initial property push abandoned")
	}
	c.mu.Lock()
	c.initialDone = true
	c.mu.Unlock()

	cancelListeners()
	cancelTelemetry()
	cancelInitial()
	cancelStop()

	c.drain(&wg)
	c.shutdown()
	return nil
}

// pushInitial loads host details and sends the startup snapshot.
func (c *Coordinator) pushInitial(ctx context.Context, conn hub.Connection) {
	for _, comp := range c.deps.Registry.All() {
		if l, ok := comp.(interface{ Load(context.Context) error }); ok {
			if err := l.Load(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn("loading component details failed", "component", comp.Name(), "error", err)
			}
		}
	}

	reports := twin.InitialReport(c.cfg.Device.Serial, c.deps.Registry)
	if err := twin.PushAll(ctx, conn, reports, c.logger); err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("initial properties incomplete", "error", err)
		}
		return
	}

	c.mu.Lock()
	c.initialDone = true
	c.mu.Unlock()
	c.logger.Info("initial properties reported", "reports", len(reports))
}

// drain waits up to the drain timeout for the tasks to return.
func (c *Coordinator) drain(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timeout := c.cfg.GetDrainTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		c.logger.Debug("all tasks stopped")
	case <-timer.C:
		c.logger.Warn("tasks still running after drain timeout", "timeout", timeout)
	}
}

// shutdown releases the connection. Only the first call has an effect.
func (c *Coordinator) shutdown() {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			if err := conn.Shutdown(); err != nil {
				c.logger.Warn("closing hub connection failed", "error", err)
			}
		}
		c.setPhase(PhaseShutDown)
	})
}

// Stop asks Run to drain and return. It is safe to call more than once
// and from any goroutine.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
	})
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

func (c *Coordinator) setPhase(p Phase) {
	old := Phase(c.phase.Swap(int32(p)))
	if old != p {
		c.logger.Debug("lifecycle phase changed", "from", old.String(), "to", p.String())
	}
}
