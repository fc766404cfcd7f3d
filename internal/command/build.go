package command

import (
	"fmt"

	"github.com/nerrad567/rpihome/internal/component"
	"github.com/nerrad567/rpihome/internal/infrastructure/config"
)

// Response kinds accepted in command bindings.
const (
	ResponseGeneric   = "generic"
	ResponseComponent = "component"
)

// Build creates one dispatcher per binding, in binding order. Each routing
// key may be bound once.
func Build(bindings []config.CommandConfig, reg *component.Registry, conn Conn, logger Logger) ([]*Dispatcher, error) {
	handlers := Handlers(logger)
	dispatchers := make([]*Dispatcher, 0, len(bindings))
	bound := make(map[string]bool, len(bindings))

	for _, b := range bindings {
		if b.Component != "" && b.Method == "" {
			return nil, fmt.Errorf("%w: component %q has no method", ErrInvalidBinding, b.Component)
		}

		cfg := DispatcherConfig{
			Filter: FilterFor(b.Component, b.Method),
			Logger: logger,
		}
		if bound[cfg.Filter.Key()] {
			return nil, fmt.Errorf("%w: %s bound twice", ErrInvalidBinding, cfg.Filter)
		}
		bound[cfg.Filter.Key()] = true

		if b.Handler != "" {
			h, ok := handlers[b.Handler]
			if !ok {
				return nil, fmt.Errorf("%w: %q for %s", ErrUnknownHandler, b.Handler, cfg.Filter)
			}
			cfg.Handler = h
		}

		switch b.Response {
		case "", ResponseGeneric:
		case ResponseComponent:
			c, err := reg.Get(b.Component)
			if err != nil {
				return nil, fmt.Errorf("binding %s: %w", cfg.Filter, err)
			}
			r, ok := c.(component.Responder)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrNotResponder, b.Component)
			}
			cfg.Respond = ComponentResponse(r)
		default:
			return nil, fmt.Errorf("binding %s: unknown response %q", cfg.Filter, b.Response)
		}

		dispatchers = append(dispatchers, NewDispatcher(conn, cfg))
	}

	return dispatchers, nil
}
