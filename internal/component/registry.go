package component

import (
	"context"
	"fmt"

	"github.com/nerrad567/rpihome/internal/infrastructure/config"
)

// Registry holds the device's components in declaration order.
// It is built once at startup and read concurrently afterwards.
type Registry struct {
	ordered []Component
	byName  map[string]Component
}

// NewRegistry returns a registry of components in the given order.
func NewRegistry(components ...Component) (*Registry, error) {
	r := &Registry{byName: make(map[string]Component, len(components))}
	for _, c := range components {
		if _, ok := r.byName[c.Name()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateComponent, c.Name())
		}
		r.byName[c.Name()] = c
		r.ordered = append(r.ordered, c)
	}
	return r, nil
}

// Get returns the component called name.
func (r *Registry) Get(name string) (Component, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return c, nil
}

// All returns the components in registry order.
func (r *Registry) All() []Component {
	out := make([]Component, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of components.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Names returns component names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, c := range r.ordered {
		names[i] = c.Name()
	}
	return names
}

// BuildOptions supplies the collaborators of Build.
type BuildOptions struct {
	// Source drives sensor stand-ins. Nil uses math/rand/v2.
	Source Source

	// Probe inspects the host for deviceInformation. Nil uses HostProbe.
	Probe SystemProbe
}

// Build creates the configured components followed by deviceInformation.
func Build(cfg *config.Config, opts BuildOptions) (*Registry, error) {
	components := make([]Component, 0, len(cfg.Components)+1)

	for _, cc := range cfg.Components {
		c, err := build(cc, opts)
		if err != nil {
			return nil, err
		}
		components = append(components, c)
	}

	components = append(components, NewDeviceInfo(DeviceIdentity{
		Manufacturer: cfg.Device.Manufacturer,
		Model:        cfg.Device.Model,
		SWVersion:    cfg.Device.SWVersion,
	}, opts.Probe))

	return NewRegistry(components...)
}

func build(cc config.ComponentConfig, opts BuildOptions) (Component, error) {
	switch cc.Type {
	case config.ComponentDHT11:
		return NewDHT11(cc.Name, cc.Pin, opts.Source), nil
	case config.ComponentAnalog:
		return NewAnalog(cc.Name, cc.Pin, cc.Label, Linear(cc.Scale, cc.Offset), opts.Source), nil
	case config.ComponentOnOff:
		return NewOnOff(cc.Name, cc.Pin), nil
	case config.ComponentLCD:
		return NewLCD(cc.Name, cc.Pin), nil
	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnknownType, cc.Type, cc.Name)
	}
}

// LastValueSource returns values persisted by a previous run.
type LastValueSource interface {
	LastValues(ctx context.Context, component string) (map[string]any, error)
}

// Seed restores last values into every component that implements Seeder.
func Seed(ctx context.Context, r *Registry, src LastValueSource) error {
	for _, c := range r.ordered {
		s, ok := c.(Seeder)
		if !ok {
			continue
		}
		values, err := src.LastValues(ctx, c.Name())
		if err != nil {
			return fmt.Errorf("loading last values of %s: %w", c.Name(), err)
		}
		s.Seed(values)
	}
	return nil
}

// Description summarises a component for the status endpoint.
type Description struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Pin  int    `json:"pin,omitempty"`
}

// Describe returns a Description per component in registry order.
func (r *Registry) Describe() []Description {
	out := make([]Description, len(r.ordered))
	for i, c := range r.ordered {
		out[i] = Description{Name: c.Name(), Kind: c.Kind().String()}
		if p, ok := c.(interface{ Pin() int }); ok {
			out[i].Pin = p.Pin()
		}
	}
	return out
}
