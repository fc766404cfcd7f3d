package component

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/rpihome/internal/infrastructure/config"
)

func TestBuild_DefaultComponents(t *testing.T) {
	cfg := &config.Config{
		Device: config.DeviceConfig{Manufacturer: "CKPD", Model: "RPI Home Basic", SWVersion: "1.0"},
		Components: []config.ComponentConfig{
			{Name: "dht11", Type: config.ComponentDHT11, Pin: 18},
			{Name: "fc28", Type: config.ComponentAnalog, Pin: 18, Label: "soil_moisture"},
			{Name: "relay", Type: config.ComponentOnOff, Pin: 17},
			{Name: "display", Type: config.ComponentLCD},
		},
	}

	r, err := Build(cfg, BuildOptions{Probe: fakeProbe{}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []string{"dht11", "fc28", "relay", "display", "deviceInformation"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if r.Len() != 5 {
		t.Errorf("Len() = %d, want 5", r.Len())
	}

	fc28, err := r.Get("fc28")
	if err != nil {
		t.Fatalf("Get(fc28) error = %v", err)
	}
	if a, ok := fc28.(*Analog); !ok || a.Label() != "soil_moisture" {
		t.Errorf("fc28 = %#v, want analog labelled soil_moisture", fc28)
	}

	desc := r.Describe()
	if desc[2] != (Description{Name: "relay", Kind: "actuator", Pin: 17}) {
		t.Errorf("Describe()[2] = %+v", desc[2])
	}
}

func TestBuild_UnknownType(t *testing.T) {
	cfg := &config.Config{Components: []config.ComponentConfig{{Name: "x", Type: "servo"}}}
	if _, err := Build(cfg, BuildOptions{}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Build() error = %v, want ErrUnknownType", err)
	}
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(NewOnOff("a", 1), NewLCD("a", 2))
	if !errors.Is(err, ErrDuplicateComponent) {
		t.Errorf("NewRegistry() error = %v, want ErrDuplicateComponent", err)
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	r, _ := NewRegistry()
	if _, err := r.Get("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

type mapSource map[string]map[string]any

func (m mapSource) LastValues(_ context.Context, component string) (map[string]any, error) {
	return m[component], nil
}

func TestSeed(t *testing.T) {
	dht := NewDHT11("dht11", 18, nil)
	fc := NewAnalog("fc28", 18, "soil_moisture", nil, nil)
	r, err := NewRegistry(dht, fc, NewOnOff("relay", 1))
	if err != nil {
		t.Fatal(err)
	}

	err = Seed(context.Background(), r, mapSource{
		"dht11": {"temperature": 19.0, "humidity": 60.0},
		"fc28":  {"soil_moisture": 48.92},
	})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	if got := dht.ReportedProperties()["lastTemp"]; got != 19.0 {
		t.Errorf("lastTemp = %v, want 19", got)
	}
	if got := fc.ReportedProperties()["lastSoilMoisture"]; got != 48.92 {
		t.Errorf("lastSoilMoisture = %v, want 48.92", got)
	}
}

type failingSource struct{}

func (failingSource) LastValues(context.Context, string) (map[string]any, error) {
	return nil, errors.New("db locked")
}

func TestSeed_Error(t *testing.T) {
	r, _ := NewRegistry(NewDHT11("dht11", 18, nil))
	if err := Seed(context.Background(), r, failingSource{}); err == nil {
		t.Error("Seed() expected error")
	}
}
