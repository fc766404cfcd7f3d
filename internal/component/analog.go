package component

import (
	"context"
	"strings"
	"sync"
	"unicode"
)

// Transform maps a raw analog reading to its reported value.
type Transform func(raw float64) float64

// Identity returns raw unchanged.
func Identity(raw float64) float64 { return raw }

// Linear returns a Transform computing raw*scale+offset. A zero scale
// yields Identity.
func Linear(scale, offset float64) Transform {
	if scale == 0 {
		return Identity
	}
	return func(raw float64) float64 { return raw*scale + offset }
}

// Analog is a single-value analog sensor such as a soil moisture probe.
// Its telemetry key is the configured label.
type Analog struct {
	name      string
	pin       int
	label     string
	transform Transform
	src       Source

	mu    sync.Mutex
	value any
}

// NewAnalog returns an Analog sensor reporting under label.
func NewAnalog(name string, pin int, label string, transform Transform, src Source) *Analog {
	if label == "" {
		label = "value"
	}
	if transform == nil {
		transform = Identity
	}
	if src == nil {
		src = defaultSource{}
	}
	return &Analog{name: name, pin: pin, label: label, transform: transform, src: src}
}

func (a *Analog) Name() string  { return a.name }
func (a *Analog) Kind() Kind    { return KindSensor }
func (a *Analog) Pin() int      { return a.pin }
func (a *Analog) Label() string { return a.label }

// Read samples a raw value in 10-90 and applies the transform.
func (a *Analog) Read(_ context.Context) (Values, error) {
	v := a.transform(float64(between(a.src, 10, 90)))

	a.mu.Lock()
	a.value = v
	a.mu.Unlock()

	return Values{a.label: v}, nil
}

// Respond answers kpiReport with max_/min_/avg_ of the last value.
func (a *Analog) Respond(_ context.Context, method string, _ []byte) (map[string]any, error) {
	if method != "kpiReport" {
		return nil, ErrUnknownMethod
	}

	a.mu.Lock()
	v := a.value
	a.mu.Unlock()

	return map[string]any{
		"max_" + a.label: v,
		"min_" + a.label: v,
		"avg_" + a.label: v,
	}, nil
}

// ReportedProperties returns last<Label> once a value exists, e.g.
// lastSoilMoisture for the label soil_moisture.
func (a *Analog) ReportedProperties() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.value == nil {
		return map[string]any{}
	}
	return map[string]any{"last" + camel(a.label): a.value}
}

// Seed restores the last value stored under the label.
func (a *Analog) Seed(values Values) {
	v, ok := values[a.label]
	if !ok {
		return
	}
	a.mu.Lock()
	a.value = v
	a.mu.Unlock()
}

// camel turns soil_moisture into SoilMoisture.
func camel(label string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(label, func(r rune) bool { return r == '_' || r == '-' || r == ' ' }) {
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}
