package hub

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"

	"github.com/nerrad567/rpihome/internal/infrastructure/mqtt"
)

func newTestConn(t *testing.T, opts ConnOptions) (*Conn, *mockClient) {
	t.Helper()
	mc := newMockClient()
	if opts.QoS == 0 {
		opts.QoS = 1
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 200 * time.Millisecond
	}
	c := newConn(mc, "rpi", opts)
	c.now = func() time.Time { return time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC) }
	c.newRID = func() string { return "rid-1" }
	if err := c.start(); err != nil {
		t.Fatalf("start() error = %v", err)
	}
	return c, mc
}

func TestConn_StartSubscribes(t *testing.T) {
	_, mc := newTestConn(t, ConnOptions{})

	for _, topic := range []string{topicTwinResSubscribe, topicMethodsSubscribe, topicDesiredSubscribe} {
		if _, ok := mc.subscriptions[topic]; !ok {
			t.Errorf("missing subscription %s", topic)
		}
	}
}

func TestConn_SendMessage(t *testing.T) {
	c, mc := newTestConn(t, ConnOptions{})

	err := c.SendMessage(context.Background(), Message{
		Component: "dht11",
		Values:    map[string]any{"temp": 21, "humidity": 40},
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	pub := mc.Published()
	if len(pub) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub))
	}
	if !strings.HasPrefix(pub[0].Topic, "devices/rpi/messages/events/") {
		t.Errorf("topic = %q", pub[0].Topic)
	}
	if !strings.Contains(pub[0].Topic, "$.sub=dht11") {
		t.Errorf("topic %q has no component tag", pub[0].Topic)
	}
	if !strings.Contains(pub[0].Topic, "iothub-creation-time-utc=2026-10-17T08%3A00%3A00.000Z") {
		t.Errorf("topic %q has no creation time", pub[0].Topic)
	}
	if pub[0].QoS != 1 {
		t.Errorf("qos = %d, want 1", pub[0].QoS)
	}

	var body map[string]int
	if err := json.Unmarshal(pub[0].Payload, &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["temp"] != 21 || body["humidity"] != 40 {
		t.Errorf("body = %v", body)
	}
	if got := c.Stats().MessagesSent; got != 1 {
		t.Errorf("MessagesSent = %d, want 1", got)
	}
}

func TestConn_SendMessageCBOR(t *testing.T) {
	c, mc := newTestConn(t, ConnOptions{ContentType: ContentTypeCBOR})

	if err := c.SendMessage(context.Background(), Message{Values: map[string]any{"cpu": 12.5}}); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	pub := mc.Published()[0]
	if strings.Contains(pub.Topic, "$.sub=") {
		t.Errorf("device level message carries a component tag: %q", pub.Topic)
	}
	var body map[string]float64
	if err := cbor.Unmarshal(pub.Payload, &body); err != nil {
		t.Fatalf("body is not CBOR: %v", err)
	}
	if body["cpu"] != 12.5 {
		t.Errorf("cpu = %v, want 12.5", body["cpu"])
	}
}

func TestConn_SendMessagePublishError(t *testing.T) {
	c, mc := newTestConn(t, ConnOptions{})
	mc.publishErr = errors.New("broker gone")

	if err := c.SendMessage(context.Background(), Message{Values: map[string]any{"a": 1}}); err == nil {
		t.Fatal("SendMessage() expected error")
	}
	if got := c.Stats().MessagesSent; got != 0 {
		t.Errorf("MessagesSent = %d, want 0", got)
	}
}

func TestConn_MethodRoundTrip(t *testing.T) {
	c, mc := newTestConn(t, ConnOptions{})

	if err := mc.SimulateMessage("$iothub/methods/POST/dht11*kpiReport/?$rid=42", []byte(`{"since":"now"}`)); err != nil {
		t.Fatalf("SimulateMessage() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := c.ReceiveMethodRequest(ctx, "dht11*kpiReport")
	if err != nil {
		t.Fatalf("ReceiveMethodRequest() error = %v", err)
	}
	if req.RequestID != "42" || req.Name != "dht11*kpiReport" || string(req.Payload) != `{"since":"now"}` {
		t.Errorf("request = %+v", req)
	}

	err = c.SendMethodResponse(ctx, MethodResponse{
		RequestID: req.RequestID,
		Status:    200,
		Payload:   map[string]any{"result": true, "data": "executed kpiReport"},
	})
	if err != nil {
		t.Fatalf("SendMethodResponse() error = %v", err)
	}

	pub := mc.Published()
	if len(pub) != 1 || pub[0].Topic != "$iothub/methods/res/200/?$rid=42" {
		t.Fatalf("published = %+v", pub)
	}
	if string(pub[0].Payload) != `{"data":"executed kpiReport","result":true}` {
		t.Errorf("payload = %s", pub[0].Payload)
	}
}

func TestConn_ReserveMethodsKeepsRequestsFromWildcard(t *testing.T) {
	c, mc := newTestConn(t, ConnOptions{})
	c.ReserveMethods("reboot")

	if err := mc.SimulateMessage("$iothub/methods/POST/reboot/?$rid=7", nil); err != nil {
		t.Fatalf("SimulateMessage() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if req, err := c.ReceiveMethodRequest(ctx, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("wildcard ReceiveMethodRequest() = %+v, %v, want DeadlineExceeded", req, err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := c.ReceiveMethodRequest(ctx, "reboot")
	if err != nil {
		t.Fatalf("ReceiveMethodRequest() error = %v", err)
	}
	if req.RequestID != "7" {
		t.Errorf("RequestID = %q, want 7", req.RequestID)
	}
}

func TestConn_MalformedMethodTopic(t *testing.T) {
	_, mc := newTestConn(t, ConnOptions{})

	err := mc.SimulateMessage("$iothub/methods/POST/reboot", nil)
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("error = %v, want ErrInvalidTopic", err)
	}
}

func TestConn_DesiredPatch(t *testing.T) {
	c, mc := newTestConn(t, ConnOptions{})

	payload := []byte(`{"relay":{"__t":"c","state":true},"$version":7}`)
	if err := mc.SimulateMessage("$iothub/twin/PATCH/properties/desired/?$version=7", payload); err != nil {
		t.Fatalf("SimulateMessage() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	patch, err := c.ReceiveDesiredPatch(ctx)
	if err != nil {
		t.Fatalf("ReceiveDesiredPatch() error = %v", err)
	}
	if patch.Version != 7 {
		t.Errorf("Version = %d, want 7", patch.Version)
	}
	if _, ok := patch.Properties["$version"]; ok {
		t.Error("$version left in properties")
	}
	if _, ok := IsComponentSection(patch.Properties["relay"]); !ok {
		t.Errorf("relay section = %v, want component section", patch.Properties["relay"])
	}
}

func TestConn_DesiredPatchInvalidJSON(t *testing.T) {
	_, mc := newTestConn(t, ConnOptions{})

	if err := mc.SimulateMessage("$iothub/twin/PATCH/properties/desired/?$version=1", []byte("{")); err == nil {
		t.Error("expected decode error")
	}
}

func TestConn_PatchReportedProperties(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		ack     bool
		wantErr error
	}{
		{name: "accepted", status: 204, ack: true},
		{name: "rejected", status: 400, ack: true, wantErr: ErrRejected},
		{name: "no answer", wantErr: ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mc := newTestConn(t, ConnOptions{RequestTimeout: 50 * time.Millisecond})
			if tt.ack {
				mc.onPublish = func(topic string, _ []byte) {
					if strings.HasPrefix(topic, topicReportedPrefix) {
						mc.SimulateMessage("$iothub/twin/res/"+strconv.Itoa(tt.status)+"/?$rid=rid-1", nil) //nolint:errcheck
					}
				}
			}

			err := c.PatchReportedProperties(context.Background(), map[string]any{"serialNumber": "RPI-1"})
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("PatchReportedProperties() error = %v", err)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Fatalf("PatchReportedProperties() error = %v, want %v", err, tt.wantErr)
			}

			pub := mc.Published()
			if len(pub) != 1 || pub[0].Topic != "$iothub/twin/PATCH/properties/reported/?$rid=rid-1" {
				t.Errorf("published = %+v", pub)
			}
			if string(pub[0].Payload) != `{"serialNumber":"RPI-1"}` {
				t.Errorf("payload = %s", pub[0].Payload)
			}
		})
	}
}

func TestConn_StrayTwinResponseIgnored(t *testing.T) {
	_, mc := newTestConn(t, ConnOptions{})

	if err := mc.SimulateMessage("$iothub/twin/res/200/?$rid=unknown", nil); err != nil {
		t.Errorf("error = %v, want nil", err)
	}
}

func TestConn_Shutdown(t *testing.T) {
	c, mc := newTestConn(t, ConnOptions{})

	blocked := make(chan error, 1)
	go func() {
		_, err := c.ReceiveMethodRequest(context.Background(), "reboot")
		blocked <- err
	}()

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := c.Shutdown(); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
	if mc.closed != 1 {
		t.Errorf("client closed %d times, want 1", mc.closed)
	}

	select {
	case err := <-blocked:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("blocked receiver error = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked receiver not released by Shutdown")
	}

	ctx := context.Background()
	if err := c.SendMessage(ctx, Message{}); !errors.Is(err, ErrClosed) {
		t.Errorf("SendMessage() after Shutdown = %v", err)
	}
	if _, err := c.ReceiveDesiredPatch(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("ReceiveDesiredPatch() after Shutdown = %v", err)
	}
	if err := c.SendMethodResponse(ctx, MethodResponse{}); !errors.Is(err, ErrClosed) {
		t.Errorf("SendMethodResponse() after Shutdown = %v", err)
	}
	if err := c.PatchReportedProperties(ctx, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("PatchReportedProperties() after Shutdown = %v", err)
	}
	if c.Stats().Connected {
		t.Error("Stats().Connected = true after Shutdown")
	}
}

func TestConn_ReconnectCounters(t *testing.T) {
	c, mc := newTestConn(t, ConnOptions{})

	mc.SimulateDrop(errors.New("read: connection reset"))
	mc.SimulateDrop(errors.New("read: connection reset"))

	st := c.Stats()
	if st.Disconnects != 2 || st.Reconnects != 2 {
		t.Errorf("Stats() disconnects/reconnects = %d/%d, want 2/2", st.Disconnects, st.Reconnects)
	}
}

func TestConn_HealthCheck(t *testing.T) {
	c, mc := newTestConn(t, ConnOptions{})
	ctx := context.Background()

	if err := c.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	mc.mu.Lock()
	mc.connected = false
	mc.mu.Unlock()
	if err := c.HealthCheck(ctx); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := c.HealthCheck(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("HealthCheck() after Shutdown error = %v, want ErrClosed", err)
	}
}
