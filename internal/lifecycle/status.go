package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/rpihome/internal/command"
	"github.com/nerrad567/rpihome/internal/component"
	"github.com/nerrad567/rpihome/internal/hub"
	"github.com/nerrad567/rpihome/internal/telemetry"
	"github.com/nerrad567/rpihome/internal/twin"
)

// Status is a point-in-time view of the agent for the status endpoint.
type Status struct {
	Phase       string                    `json:"phase"`
	Host        string                    `json:"host,omitempty"`
	DeviceID    string                    `json:"device_id,omitempty"`
	Uptime      string                    `json:"uptime,omitempty"`
	InitialSent bool                      `json:"initial_properties_resolved"`
	Components  []component.Description   `json:"components"`
	Connection  *hub.ConnStats            `json:"connection,omitempty"`
	Commands    []command.DispatcherStats `json:"commands,omitempty"`
	Twin        *twin.Stats               `json:"twin,omitempty"`
	Telemetry   *telemetry.Stats          `json:"telemetry,omitempty"`
}

// Status reports the current phase and task counters.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Phase:       c.Phase().String(),
		Host:        c.creds.Host,
		DeviceID:    c.creds.DeviceID,
		InitialSent: c.initialDone,
	}
	if c.deps.Registry != nil {
		st.Components = c.deps.Registry.Describe()
	}
	if !c.startedAt.IsZero() {
		st.Uptime = time.Since(c.startedAt).Truncate(time.Second).String()
	}
	if s, ok := c.conn.(interface{ Stats() hub.ConnStats }); ok {
		cs := s.Stats()
		st.Connection = &cs
	}
	for _, d := range c.dispatchers {
		st.Commands = append(st.Commands, d.Stats())
	}
	if c.synchronizer != nil {
		ts := c.synchronizer.Stats()
		st.Twin = &ts
	}
	if c.publisher != nil {
		ps := c.publisher.Stats()
		st.Telemetry = &ps
	}
	return st
}

// HealthCheck fails unless the agent is Running with a live hub session.
func (c *Coordinator) HealthCheck(ctx context.Context) error {
	if p := c.Phase(); p != PhaseRunning {
		return fmt.Errorf("%w: phase %s", ErrNotRunning, p)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if hc, ok := conn.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
