package component

import (
	"context"
	"sync"
)

// OnOff is a switchable actuator such as a relay.
type OnOff struct {
	name string
	pin  int

	mu    sync.Mutex
	state bool
}

// NewOnOff returns an OnOff actuator, initially off.
func NewOnOff(name string, pin int) *OnOff {
	return &OnOff{name: name, pin: pin}
}

func (o *OnOff) Name() string { return o.name }
func (o *OnOff) Kind() Kind   { return KindActuator }
func (o *OnOff) Pin() int     { return o.pin }

func (o *OnOff) Read(_ context.Context) (Values, error) {
	return Values{"state": o.State()}, nil
}

// State returns the current state.
func (o *OnOff) State() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Toggle flips the state and returns the new one.
func (o *OnOff) Toggle() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = !o.state
	return o.state
}

// Respond answers update and toggle by flipping the state.
func (o *OnOff) Respond(_ context.Context, method string, _ []byte) (map[string]any, error) {
	switch method {
	case "update", "toggle":
		return map[string]any{"state": o.Toggle()}, nil
	default:
		return nil, ErrUnknownMethod
	}
}

func (o *OnOff) ReportedProperties() map[string]any {
	return map[string]any{"state": o.State()}
}

// LCD is a display whose only observable property is whether it is on.
type LCD struct {
	name string
	pin  int

	mu    sync.Mutex
	state bool
}

// NewLCD returns an LCD, initially off.
func NewLCD(name string, pin int) *LCD {
	return &LCD{name: name, pin: pin}
}

func (l *LCD) Name() string { return l.name }
func (l *LCD) Kind() Kind   { return KindActuator }
func (l *LCD) Pin() int     { return l.pin }

func (l *LCD) Read(_ context.Context) (Values, error) {
	return Values{"state": l.State()}, nil
}

// State reports whether the display is on.
func (l *LCD) State() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *LCD) ReportedProperties() map[string]any {
	return map[string]any{"state": l.State()}
}
