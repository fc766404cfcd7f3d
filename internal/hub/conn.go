package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nerrad567/rpihome/internal/infrastructure/mqtt"
)

// defaultRequestTimeout bounds the wait for a reported properties ack.
const defaultRequestTimeout = 30 * time.Second

// client is the subset of *mqtt.Client the connection uses.
type client interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
	HealthCheck(ctx context.Context) error
	Close() error
}

// connectionNotifier is implemented by clients that report session loss
// and automatic reconnects.
type connectionNotifier interface {
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
}

// ConnOptions tunes a Conn.
type ConnOptions struct {
	// QoS for every publish and subscription. IoT Hub accepts 0 or 1.
	QoS byte

	// ContentType of telemetry bodies. Defaults to application/json.
	ContentType string

	// RequestTimeout bounds the wait for reported property acks.
	RequestTimeout time.Duration

	Logger Logger
}

// Conn is the MQTT implementation of Connection.
type Conn struct {
	client   client
	deviceID string
	opts     ConnOptions
	logger   Logger

	methods *methodRouter
	desired *inbox[Patch]

	pendingMu sync.Mutex
	pending   map[string]chan int

	done      chan struct{}
	closeOnce sync.Once

	sent        atomic.Int64
	received    atomic.Int64
	disconnects atomic.Int64
	reconnects  atomic.Int64

	now    func() time.Time
	newRID func() string
}

var _ Connection = (*Conn)(nil)

// newConn wires a connected client into a Conn. Call start to subscribe.
func newConn(c client, deviceID string, opts ConnOptions) *Conn {
	if opts.ContentType == "" {
		opts.ContentType = ContentTypeJSON
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Conn{
		client:   c,
		deviceID: deviceID,
		opts:     opts,
		logger:   logger,
		methods:  newMethodRouter(),
		desired:  newInbox[Patch](),
		pending:  make(map[string]chan int),
		done:     make(chan struct{}),
		now:      time.Now,
		newRID:   uuid.NewString,
	}
}

// start subscribes to the method, desired patch and twin response topics.
// The client restores these subscriptions itself after a reconnect.
func (c *Conn) start() error {
	if n, ok := c.client.(connectionNotifier); ok {
		n.SetOnDisconnect(func(err error) {
			c.disconnects.Add(1)
			c.logger.Warn("hub connection lost, reconnecting", "device_id", c.deviceID, "error", err)
		})
		n.SetOnConnect(func() {
			c.reconnects.Add(1)
			c.logger.Info("hub connection restored", "device_id", c.deviceID)
		})
	}

	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{topicTwinResSubscribe, c.handleTwinResponse},
		{topicMethodsSubscribe, c.handleMethod},
		{topicDesiredSubscribe, c.handleDesired},
	}
	for _, s := range subs {
		if err := c.client.Subscribe(s.topic, c.opts.QoS, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
	}
	return nil
}

// SendMessage publishes one telemetry message.
func (c *Conn) SendMessage(ctx context.Context, msg Message) error {
	if c.isClosed() {
		return ErrClosed
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = c.now()
	}

	body, err := encodeBody(c.opts.ContentType, msg.Values)
	if err != nil {
		return fmt.Errorf("encoding telemetry: %w", err)
	}

	topic := telemetryTopic(c.deviceID, c.opts.ContentType, msg.Component, createdAt)
	if err := c.client.Publish(ctx, topic, body, c.opts.QoS, false); err != nil {
		return fmt.Errorf("sending telemetry: %w", err)
	}
	c.sent.Add(1)
	return nil
}

// ReceiveMethodRequest blocks until a request routed to key arrives.
func (c *Conn) ReceiveMethodRequest(ctx context.Context, key string) (MethodRequest, error) {
	if c.isClosed() {
		return MethodRequest{}, ErrClosed
	}
	return c.methods.listen(key).get(ctx, c.done)
}

// ReserveMethods claims routing keys for receivers that have not called
// ReceiveMethodRequest yet, so a wildcard receiver does not take their
// requests in the meantime.
func (c *Conn) ReserveMethods(keys ...string) {
	c.methods.reserve(keys...)
}

// SendMethodResponse publishes the response for resp.RequestID.
func (c *Conn) SendMethodResponse(ctx context.Context, resp MethodResponse) error {
	if c.isClosed() {
		return ErrClosed
	}

	body, err := json.Marshal(resp.Payload)
	if err != nil {
		return fmt.Errorf("encoding method response: %w", err)
	}

	if err := c.client.Publish(ctx, methodResponseTopic(resp.Status, resp.RequestID), body, c.opts.QoS, false); err != nil {
		return fmt.Errorf("sending method response: %w", err)
	}
	return nil
}

// ReceiveDesiredPatch blocks until the next desired properties patch arrives.
func (c *Conn) ReceiveDesiredPatch(ctx context.Context) (Patch, error) {
	if c.isClosed() {
		return Patch{}, ErrClosed
	}
	return c.desired.get(ctx, c.done)
}

// PatchReportedProperties publishes props and waits for the hub's ack.
func (c *Conn) PatchReportedProperties(ctx context.Context, props map[string]any) error {
	if c.isClosed() {
		return ErrClosed
	}

	body, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encoding reported properties: %w", err)
	}

	rid := c.newRID()
	ack := make(chan int, 1)
	c.pendingMu.Lock()
	c.pending[rid] = ack
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, rid)
		c.pendingMu.Unlock()
	}()

	if err := c.client.Publish(ctx, reportedTopic(rid), body, c.opts.QoS, false); err != nil {
		return fmt.Errorf("sending reported properties: %w", err)
	}

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()

	select {
	case status := <-ack:
		if status < 200 || status > 299 {
			return fmt.Errorf("%w: reported properties status %d", ErrRejected, status)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case <-timer.C:
		return fmt.Errorf("%w: reported properties after %v", ErrTimeout, c.opts.RequestTimeout)
	}
}

// Shutdown releases the session. Only the first call has an effect.
func (c *Conn) Shutdown() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.client.Close()
		c.logger.Info("hub connection closed", "device_id", c.deviceID)
	})
	return err
}

// Stats reports traffic counters.
func (c *Conn) Stats() ConnStats {
	return ConnStats{
		Connected:       !c.isClosed() && c.client.IsConnected(),
		MessagesSent:    c.sent.Load(),
		MethodsReceived: c.received.Load(),
		MethodsQueued:   c.methods.pending(),
		Disconnects:     c.disconnects.Load(),
		Reconnects:      c.reconnects.Load(),
	}
}

// ConnStats is a snapshot of connection counters.
type ConnStats struct {
	Connected       bool  `json:"connected"`
	MessagesSent    int64 `json:"messages_sent"`
	MethodsReceived int64 `json:"methods_received"`
	MethodsQueued   int   `json:"methods_queued"`
	Disconnects     int64 `json:"disconnects"`
	Reconnects      int64 `json:"reconnects"`
}

// HealthCheck reports whether the session is open and the client is
// currently connected.
func (c *Conn) HealthCheck(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	if err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("hub session: %w", err)
	}
	return nil
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Handlers below run on the paho router goroutine and must not block.

func (c *Conn) handleMethod(topic string, payload []byte) error {
	name, rid, err := parseMethodTopic(topic)
	if err != nil {
		return err
	}

	c.received.Add(1)
	c.methods.route(MethodRequest{
		RequestID:  rid,
		Name:       name,
		Payload:    append([]byte(nil), payload...),
		ReceivedAt: c.now(),
	})
	return nil
}

func (c *Conn) handleDesired(_ string, payload []byte) error {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("decoding desired patch: %w", err)
	}

	patch := Patch{Properties: make(map[string]any, len(body))}
	for k, v := range body {
		if k == "$version" {
			if n, ok := v.(float64); ok {
				patch.Version = int64(n)
			}
			continue
		}
		patch.Properties[k] = v
	}

	c.desired.put(patch)
	return nil
}

func (c *Conn) handleTwinResponse(topic string, _ []byte) error {
	status, rid, err := parseTwinResponseTopic(topic)
	if err != nil {
		return err
	}

	c.pendingMu.Lock()
	ack, ok := c.pending[rid]
	c.pendingMu.Unlock()
	if !ok {
		c.logger.Debug("twin response without pending request", "rid", rid, "status", status)
		return nil
	}

	select {
	case ack <- status:
	default:
	}
	return nil
}
