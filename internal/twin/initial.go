package twin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/rpihome/internal/component"
	"github.com/nerrad567/rpihome/internal/hub"
)

// Patcher pushes reported properties.
type Patcher interface {
	PatchReportedProperties(ctx context.Context, props map[string]any) error
}

// Report is one reported properties push. An empty Component addresses the
// root interface.
type Report struct {
	Component  string
	Properties map[string]any
}

// InitialReport returns the startup snapshot: the root serial number
// followed by one report per component that reports properties.
func InitialReport(serial string, reg *component.Registry) []Report {
	reports := []Report{{Properties: map[string]any{"serialNumber": serial}}}
	for _, c := range reg.All() {
		r, ok := c.(component.PropertyReporter)
		if !ok {
			continue
		}
		reports = append(reports, Report{Component: c.Name(), Properties: r.ReportedProperties()})
	}
	return reports
}

// PushAll issues every report concurrently. A failed push does not cancel
// the others; all failures are logged and returned joined.
func PushAll(ctx context.Context, p Patcher, reports []Report, logger Logger) error {
	if logger == nil {
		logger = noopLogger{}
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, r := range reports {
		g.Go(func() error {
			props := hub.ComponentProperties(r.Component, r.Properties)
			if err := p.PatchReportedProperties(ctx, props); err != nil {
				name := r.Component
				if name == "" {
					name = "root"
				}
				if ctx.Err() == nil {
					logger.Warn("initial property push failed", "component", name, "error", err)
				}
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // Goroutines collect their own errors

	return errors.Join(errs...)
}
