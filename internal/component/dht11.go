package component

import (
	"context"
	"sync"
)

// DHT11 is a temperature and humidity sensor.
type DHT11 struct {
	name string
	pin  int
	src  Source

	mu   sync.Mutex
	last Values
}

// NewDHT11 returns a DHT11 on pin. A nil src uses math/rand/v2.
func NewDHT11(name string, pin int, src Source) *DHT11 {
	if src == nil {
		src = defaultSource{}
	}
	return &DHT11{name: name, pin: pin, src: src}
}

func (d *DHT11) Name() string { return d.name }
func (d *DHT11) Kind() Kind   { return KindSensor }
func (d *DHT11) Pin() int     { return d.pin }

// Read samples temperature (10-30 °C) and humidity (10-90 %).
func (d *DHT11) Read(_ context.Context) (Values, error) {
	v := Values{
		"temperature": between(d.src, 10, 30),
		"humidity":    between(d.src, 10, 90),
	}

	d.mu.Lock()
	d.last = v
	d.mu.Unlock()

	return copyValues(v), nil
}

// Respond answers kpiReport with max/min/avg of the last sample.
func (d *DHT11) Respond(_ context.Context, method string, _ []byte) (map[string]any, error) {
	if method != "kpiReport" {
		return nil, ErrUnknownMethod
	}

	d.mu.Lock()
	temp, humidity := d.last["temperature"], d.last["humidity"]
	d.mu.Unlock()

	return map[string]any{
		"max_temp":     temp,
		"min_temp":     temp,
		"avg_temp":     temp,
		"max_humidity": humidity,
		"min_humidity": humidity,
		"avg_humidity": humidity,
	}, nil
}

// ReportedProperties returns lastTemp and lastHumidity once a sample exists.
func (d *DHT11) ReportedProperties() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()

	props := map[string]any{}
	if v, ok := d.last["temperature"]; ok {
		props["lastTemp"] = v
	}
	if v, ok := d.last["humidity"]; ok {
		props["lastHumidity"] = v
	}
	return props
}

// Seed restores the last sample.
func (d *DHT11) Seed(values Values) {
	if len(values) == 0 {
		return
	}
	d.mu.Lock()
	d.last = copyValues(values)
	d.mu.Unlock()
}

func copyValues(v Values) Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
