package twin

import (
	"context"
	"sync"

	"github.com/nerrad567/rpihome/internal/hub"
)

// mockConn delivers queued patches and records reported pushes.
type mockConn struct {
	mu       sync.Mutex
	patches  chan hub.Patch
	reported []map[string]any
	failFor  map[string]error
	recvErr  error

	pushed chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		patches: make(chan hub.Patch, 16),
		failFor: make(map[string]error),
		pushed:  make(chan struct{}, 64),
	}
}

func (m *mockConn) ReceiveDesiredPatch(ctx context.Context) (hub.Patch, error) {
	m.mu.Lock()
	err := m.recvErr
	m.mu.Unlock()
	if err != nil {
		return hub.Patch{}, err
	}
	select {
	case p := <-m.patches:
		return p, nil
	case <-ctx.Done():
		return hub.Patch{}, ctx.Err()
	}
}

// PatchReportedProperties fails when a top-level key has a registered error.
func (m *mockConn) PatchReportedProperties(_ context.Context, props map[string]any) error {
	defer func() { m.pushed <- struct{}{} }()

	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range props {
		if err := m.failFor[k]; err != nil {
			return err
		}
	}
	m.reported = append(m.reported, props)
	return nil
}

func (m *mockConn) Reported() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, len(m.reported))
	copy(out, m.reported)
	return out
}

type recordedVersion struct {
	version int64
	keys    int
}

type mockRecorder struct {
	mu       sync.Mutex
	versions []recordedVersion
}

func (r *mockRecorder) RecordDesired(_ context.Context, version int64, props map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions = append(r.versions, recordedVersion{version: version, keys: len(props)})
	return nil
}

func (r *mockRecorder) Versions() []recordedVersion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedVersion(nil), r.versions...)
}
