package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/rpihome/internal/infrastructure/config"
	"github.com/nerrad567/rpihome/internal/infrastructure/logging"
	"github.com/nerrad567/rpihome/internal/lifecycle"
)

const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// requests during Close.
	gracefulShutdownTimeout = 5 * time.Second

	requestTimeout = 5 * time.Second
	idleTimeout    = 30 * time.Second

	// healthCheckTimeout bounds each dependency check in /health.
	healthCheckTimeout = 2 * time.Second
)

// StatusProvider reports the agent's current status.
type StatusProvider interface {
	Status() lifecycle.Status
}

// HealthChecker is a dependency probed by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config  config.StatusConfig
	Logger  *logging.Logger
	Status  StatusProvider
	Version string

	// Checks are probed by name on every health request. Optional.
	Checks map[string]HealthChecker
}

// Server is the local HTTP status server.
type Server struct {
	cfg     config.StatusConfig
	logger  *logging.Logger
	status  StatusProvider
	version string
	checks  map[string]HealthChecker

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a status server. It does not listen until Start is called.
//
// Parameters:
//   - deps: Logger and Status are required
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status provider is required")
	}
	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		status:  deps.Status,
		version: deps.Version,
		checks:  deps.Checks,
	}, nil
}

// Start binds the listener and serves requests in a background goroutine.
//
// Parameters:
//   - ctx: Base context for request handling
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("status server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       requestTimeout,
		ReadHeaderTimeout: requestTimeout,
		WriteTimeout:      requestTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("status server starting", "address", ln.Addr().String())
	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts the server down. Calling it on a server that
// was never started is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}
