package command

import (
	"context"
	"sync"

	"github.com/nerrad567/rpihome/internal/hub"
)

// mockConn feeds queued requests per key and records responses.
type mockConn struct {
	mu        sync.Mutex
	queues    map[string]chan hub.MethodRequest
	responses []hub.MethodResponse
	sendErr   error
	recvErr   error
	recvCalls int

	// sent is signalled after every response attempt.
	sent chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		queues: make(map[string]chan hub.MethodRequest),
		sent:   make(chan struct{}, 64),
	}
}

func (m *mockConn) queue(key string) chan hub.MethodRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[key]
	if !ok {
		q = make(chan hub.MethodRequest, 16)
		m.queues[key] = q
	}
	return q
}

func (m *mockConn) push(key string, req hub.MethodRequest) {
	m.queue(key) <- req
}

func (m *mockConn) ReceiveMethodRequest(ctx context.Context, key string) (hub.MethodRequest, error) {
	m.mu.Lock()
	m.recvCalls++
	err := m.recvErr
	m.mu.Unlock()
	if err != nil {
		return hub.MethodRequest{}, err
	}

	select {
	case req := <-m.queue(key):
		return req, nil
	case <-ctx.Done():
		return hub.MethodRequest{}, ctx.Err()
	}
}

func (m *mockConn) SendMethodResponse(_ context.Context, resp hub.MethodResponse) error {
	m.mu.Lock()
	err := m.sendErr
	if err == nil {
		m.responses = append(m.responses, resp)
	}
	m.mu.Unlock()
	m.sent <- struct{}{}
	return err
}

func (m *mockConn) Responses() []hub.MethodResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hub.MethodResponse, len(m.responses))
	copy(out, m.responses)
	return out
}

func (m *mockConn) ReceiveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recvCalls
}
