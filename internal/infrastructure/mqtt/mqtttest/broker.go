// Package mqtttest runs an in-process MQTT broker for transport tests.
package mqtttest

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DrmagicE/gmqtt"
	"github.com/DrmagicE/gmqtt/pkg/packets"
)

// Message is one PUBLISH received by the broker from a client.
type Message struct {
	ClientID string
	Topic    string
	Payload  []byte
}

// Reaction is invoked for every message a client publishes. It may answer
// through Broker.Publish, the way a cloud endpoint would.
type Reaction func(b *Broker, m Message)

// Broker is a gmqtt server listening on a random loopback port.
type Broker struct {
	service gmqtt.Server
	addr    *net.TCPAddr

	mu        sync.Mutex
	messages  []Message
	reactions []Reaction
	arrived   chan struct{}
}

// Start launches a broker and stops it when the test ends.
func Start(t testing.TB) *Broker {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	b := &Broker{
		addr:    ln.Addr().(*net.TCPAddr),
		arrived: make(chan struct{}, 1),
	}
	// Run and Stop live on the concrete server, not on gmqtt.Server.
	srv := gmqtt.NewServer(
		gmqtt.WithTCPListener(ln),
		gmqtt.WithPlugin(b),
	)
	go srv.Run()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx) //nolint:errcheck
	})

	return b
}

// Host returns the listen address.
func (b *Broker) Host() string { return b.addr.IP.String() }

// Port returns the listen port.
func (b *Broker) Port() int { return b.addr.Port }

// React registers fn for every subsequent client publish.
func (b *Broker) React(fn Reaction) {
	b.mu.Lock()
	b.reactions = append(b.reactions, fn)
	b.mu.Unlock()
}

// Publish delivers a message to subscribed clients.
func (b *Broker) Publish(topic string, payload []byte) {
	b.mu.Lock()
	service := b.service
	b.mu.Unlock()
	service.PublishService().Publish(gmqtt.NewMessage(topic, payload, packets.QOS_1))
}

// Messages returns a copy of every client publish seen so far.
func (b *Broker) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// WaitFor blocks until a client publish whose topic starts with prefix
// arrives, failing the test after timeout.
func (b *Broker) WaitFor(t testing.TB, prefix string, timeout time.Duration) Message {
	t.Helper()

	deadline := time.After(timeout)
	for {
		for _, m := range b.Messages() {
			if strings.HasPrefix(m.Topic, prefix) {
				return m
			}
		}
		select {
		case <-b.arrived:
		case <-deadline:
			t.Fatalf("no message with topic prefix %q within %v", prefix, timeout)
			return Message{}
		}
	}
}

// Load implements gmqtt.Plugin.
func (b *Broker) Load(service gmqtt.Server) error {
	b.mu.Lock()
	b.service = service
	b.mu.Unlock()
	return nil
}

// Unload implements gmqtt.Plugin.
func (b *Broker) Unload() error { return nil }

// Name implements gmqtt.Plugin.
func (b *Broker) Name() string { return "mqtttest" }

// HookWrapper implements gmqtt.Plugin.
func (b *Broker) HookWrapper() gmqtt.HookWrapper {
	return gmqtt.HookWrapper{
		OnMsgArrivedWrapper: b.onMsgArrivedWrapper,
	}
}

func (b *Broker) onMsgArrivedWrapper(arrived gmqtt.OnMsgArrived) gmqtt.OnMsgArrived {
	return func(ctx context.Context, client gmqtt.Client, msg packets.Message) (valid bool) {
		m := Message{
			ClientID: client.OptionsReader().ClientID(),
			Topic:    msg.Topic(),
			Payload:  append([]byte(nil), msg.Payload()...),
		}

		b.mu.Lock()
		b.messages = append(b.messages, m)
		reactions := append([]Reaction(nil), b.reactions...)
		b.mu.Unlock()

		select {
		case b.arrived <- struct{}{}:
		default:
		}

		for _, react := range reactions {
			react(b, m)
		}

		return arrived(ctx, client, msg)
	}
}
