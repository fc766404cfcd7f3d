package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/rpihome/internal/hub"
	"github.com/nerrad567/rpihome/internal/provisioning"
)

// fakeConn is a hub.Connection that records traffic and tracks blocked
// receivers so tests can check that every task returned.
type fakeConn struct {
	mu       sync.Mutex
	messages []hub.Message
	reported []map[string]any
	closed   chan struct{}

	shutdowns atomic.Int32
	receivers atomic.Int32

	// blockReported makes PatchReportedProperties wait for ctx.
	blockReported bool

	reserved         []string
	receivedEarly    atomic.Bool
	reservedBeforeRx atomic.Bool

	sent chan hub.Message
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		closed: make(chan struct{}),
		sent:   make(chan hub.Message, 64),
	}
}

func (f *fakeConn) SendMessage(_ context.Context, msg hub.Message) error {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
	select {
	case f.sent <- msg:
	default:
	}
	return nil
}

func (f *fakeConn) ReserveMethods(keys ...string) {
	f.mu.Lock()
	f.reserved = append(f.reserved, keys...)
	f.mu.Unlock()
	if !f.receivedEarly.Load() {
		f.reservedBeforeRx.Store(true)
	}
}

func (f *fakeConn) Reserved() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reserved...)
}

func (f *fakeConn) ReceiveMethodRequest(ctx context.Context, _ string) (hub.MethodRequest, error) {
	f.receivedEarly.Store(true)
	f.receivers.Add(1)
	defer f.receivers.Add(-1)
	select {
	case <-ctx.Done():
		return hub.MethodRequest{}, ctx.Err()
	case <-f.closed:
		return hub.MethodRequest{}, hub.ErrClosed
	}
}

func (f *fakeConn) SendMethodResponse(context.Context, hub.MethodResponse) error { return nil }

func (f *fakeConn) ReceiveDesiredPatch(ctx context.Context) (hub.Patch, error) {
	f.receivers.Add(1)
	defer f.receivers.Add(-1)
	select {
	case <-ctx.Done():
		return hub.Patch{}, ctx.Err()
	case <-f.closed:
		return hub.Patch{}, hub.ErrClosed
	}
}

func (f *fakeConn) PatchReportedProperties(ctx context.Context, props map[string]any) error {
	if f.blockReported {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reported = append(f.reported, props)
	return nil
}

func (f *fakeConn) Shutdown() error {
	if f.shutdowns.Add(1) == 1 {
		close(f.closed)
	}
	return nil
}

func (f *fakeConn) HealthCheck(context.Context) error {
	select {
	case <-f.closed:
		return hub.ErrClosed
	default:
		return nil
	}
}

func (f *fakeConn) Reported() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.reported...)
}

type fakeDialer struct {
	conn  *fakeConn
	err   error
	calls atomic.Int32
	creds hub.Credentials
}

func (d *fakeDialer) Dial(_ context.Context, creds hub.Credentials) (hub.Connection, error) {
	d.calls.Add(1)
	d.creds = creds
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type fakeProvisioner struct {
	result provisioning.Result
	err    error
	req    provisioning.Request
}

func (p *fakeProvisioner) Register(_ context.Context, req provisioning.Request) (provisioning.Result, error) {
	p.req = req
	return p.result, p.err
}

// lineStop returns from Wait once a line equal to "q" is fed.
type lineStop struct {
	lines chan string
}

func (s *lineStop) Wait(ctx context.Context) error {
	for {
		select {
		case line := <-s.lines:
			if line == "q" || line == "Q" {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var errDial = errors.New("dial tcp: connection refused")
