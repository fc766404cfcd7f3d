package component

import (
	"context"
	"math/rand/v2"
)

// Kind classifies a component for telemetry tagging.
type Kind int

const (
	// KindSensor produces readings tagged with the component name.
	KindSensor Kind = iota

	// KindActuator holds a state the cloud can change.
	KindActuator

	// KindCompositeInfo describes the device itself. Its readings are sent
	// as device-level telemetry without a component tag.
	KindCompositeInfo
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindSensor:
		return "sensor"
	case KindActuator:
		return "actuator"
	case KindCompositeInfo:
		return "composite_info"
	default:
		return "unknown"
	}
}

// Values is one reading keyed by telemetry field name.
type Values map[string]any

// Component is a named source of readings.
type Component interface {
	Name() string
	Kind() Kind

	// Read samples the component. Sensors cache the sample as their last
	// values.
	Read(ctx context.Context) (Values, error)
}

// Responder answers component-scoped direct methods.
type Responder interface {
	Respond(ctx context.Context, method string, payload []byte) (map[string]any, error)
}

// PropertyReporter contributes read-only properties to the initial
// reported snapshot.
type PropertyReporter interface {
	ReportedProperties() map[string]any
}

// Seeder restores last values persisted by a previous run.
type Seeder interface {
	Seed(values Values)
}

// Source supplies the random stand-in readings. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// defaultSource draws from the global math/rand/v2 generator.
type defaultSource struct{}

func (defaultSource) IntN(n int) int { return rand.IntN(n) }

// between returns a value in [lo, hi].
func between(src Source, lo, hi int) int {
	return lo + src.IntN(hi-lo+1)
}
