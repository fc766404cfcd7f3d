package hub

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nerrad567/rpihome/internal/infrastructure/mqtt"
)

// publishedMessage records a publish on the mock client.
type publishedMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
}

// mockClient implements client for testing.
type mockClient struct {
	mu            sync.Mutex
	published     []publishedMessage
	subscriptions map[string]mqtt.MessageHandler
	connected     bool
	closed        int
	publishErr    error

	// onPublish runs after a publish is recorded, outside the lock.
	onPublish func(topic string, payload []byte)

	onConnect    func()
	onDisconnect func(err error)
}

func newMockClient() *mockClient {
	return &mockClient{
		subscriptions: make(map[string]mqtt.MessageHandler),
		connected:     true,
	}
}

func (m *mockClient) Publish(_ context.Context, topic string, payload []byte, qos byte, _ bool) error {
	m.mu.Lock()
	if m.publishErr != nil {
		err := m.publishErr
		m.mu.Unlock()
		return err
	}
	m.published = append(m.published, publishedMessage{Topic: topic, Payload: payload, QoS: qos})
	hook := m.onPublish
	m.mu.Unlock()

	if hook != nil {
		hook(topic, payload)
	}
	return nil
}

func (m *mockClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = handler
	return nil
}

func (m *mockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockClient) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.IsConnected() {
		return mqtt.ErrNotConnected
	}
	return nil
}

func (m *mockClient) SetOnConnect(callback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = callback
}

func (m *mockClient) SetOnDisconnect(callback func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = callback
}

// SimulateDrop fires the connection-lost callback, then the reconnect one.
func (m *mockClient) SimulateDrop(err error) {
	m.mu.Lock()
	lost, restored := m.onDisconnect, m.onConnect
	m.mu.Unlock()
	if lost != nil {
		lost(err)
	}
	if restored != nil {
		restored()
	}
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	m.connected = false
	return nil
}

// SimulateMessage delivers an inbound message to the subscription whose
// "#" filter matches topic.
func (m *mockClient) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	var handler mqtt.MessageHandler
	for filter, h := range m.subscriptions {
		if strings.HasPrefix(topic, strings.TrimSuffix(filter, "#")) {
			handler = h
			break
		}
	}
	m.mu.Unlock()

	if handler == nil {
		return errors.New("no subscription for " + topic)
	}
	return handler(topic, payload)
}

func (m *mockClient) Published() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedMessage, len(m.published))
	copy(out, m.published)
	return out
}
