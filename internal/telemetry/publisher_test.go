package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/rpihome/internal/component"
	"github.com/nerrad567/rpihome/internal/hub"
)

type mockSender struct {
	mu       sync.Mutex
	messages []hub.Message
	failFor  map[string]error
}

func (m *mockSender) SendMessage(_ context.Context, msg hub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[msg.Component]; err != nil {
		return err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockSender) Messages() []hub.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]hub.Message(nil), m.messages...)
}

type mockStore struct {
	mu    sync.Mutex
	saved map[string]map[string]any
}

func (s *mockStore) SaveLastValues(_ context.Context, comp string, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]map[string]any)
	}
	s.saved[comp] = values
	return nil
}

type cpuProbe struct{ err error }

func (cpuProbe) Info(context.Context) (component.SystemInfo, error) { return component.SystemInfo{}, nil }
func (p cpuProbe) CPUPercent(context.Context) (float64, error)      { return 12.5, p.err }

func defaultRegistry(t *testing.T, probe component.SystemProbe) *component.Registry {
	t.Helper()
	r, err := component.NewRegistry(
		component.NewDHT11("dht11", 18, nil),
		component.NewAnalog("fc28", 18, "soil_moisture", nil, nil),
		component.NewDeviceInfo(component.DeviceIdentity{}, probe),
	)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestCycle_OneMessagePerComponent(t *testing.T) {
	sender := &mockSender{}
	store := &mockStore{}
	p := NewPublisher(sender, defaultRegistry(t, cpuProbe{}), Config{Store: store})

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("cycle() error = %v", err)
	}

	msgs := sender.Messages()
	if len(msgs) != 3 {
		t.Fatalf("sent %d messages, want 3", len(msgs))
	}
	if msgs[0].Component != "dht11" || msgs[1].Component != "fc28" {
		t.Errorf("order = %q, %q; want dht11, fc28", msgs[0].Component, msgs[1].Component)
	}
	if _, ok := msgs[0].Values["temperature"]; !ok {
		t.Errorf("dht11 values = %v", msgs[0].Values)
	}
	if msgs[2].Component != "" || msgs[2].Values["cpu"] != 12.5 {
		t.Errorf("device message = %+v, want untagged cpu", msgs[2])
	}
	if msgs[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	if _, ok := store.saved["dht11"]; !ok {
		t.Error("dht11 last values not saved")
	}
	if _, ok := store.saved["deviceInformation"]; ok {
		t.Error("device information should not be saved")
	}
	if st := p.Stats(); st.Sent != 3 || st.Failed != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestCycle_FailuresSkipToNext(t *testing.T) {
	sender := &mockSender{failFor: map[string]error{"dht11": errors.New("timeout")}}
	p := NewPublisher(sender, defaultRegistry(t, cpuProbe{err: errors.New("no /proc")}), Config{})

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("cycle() error = %v", err)
	}

	msgs := sender.Messages()
	if len(msgs) != 1 || msgs[0].Component != "fc28" {
		t.Errorf("messages = %+v, want only fc28", msgs)
	}
	if st := p.Stats(); st.Failed != 2 {
		t.Errorf("Failed = %d, want 2", st.Failed)
	}
}

func TestCycle_ClosedConnectionStops(t *testing.T) {
	sender := &mockSender{failFor: map[string]error{"dht11": hub.ErrClosed}}
	p := NewPublisher(sender, defaultRegistry(t, cpuProbe{}), Config{})

	if err := p.Run(context.Background()); !errors.Is(err, hub.ErrClosed) {
		t.Errorf("Run() error = %v, want ErrClosed", err)
	}
}

func TestRun_IntervalAndCancel(t *testing.T) {
	sender := &mockSender{}
	p := NewPublisher(sender, defaultRegistry(t, cpuProbe{}), Config{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := p.Run(ctx); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Run() took %v after cancel", elapsed)
	}

	// 50ms at one message per 20ms.
	if n := len(sender.Messages()); n < 2 || n > 3 {
		t.Errorf("sent %d messages, want 2 or 3", n)
	}
}
