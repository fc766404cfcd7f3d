package hub

import (
	"context"
	"sync"
)

// inbox is an unbounded FIFO with a blocking, cancellable get.
type inbox[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

func newInbox[T any]() *inbox[T] {
	return &inbox[T]{ready: make(chan struct{}, 1)}
}

func (b *inbox[T]) put(v T) {
	b.mu.Lock()
	b.items = append(b.items, v)
	b.mu.Unlock()
	b.signal()
}

func (b *inbox[T]) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// get blocks until an item is available, ctx is done or closed is closed.
func (b *inbox[T]) get(ctx context.Context, closed <-chan struct{}) (T, error) {
	var zero T
	for {
		b.mu.Lock()
		if len(b.items) > 0 {
			v := b.items[0]
			b.items[0] = zero
			b.items = b.items[1:]
			more := len(b.items) > 0
			b.mu.Unlock()
			if more {
				// Another receiver may be waiting on the same inbox.
				b.signal()
			}
			return v, nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-closed:
			return zero, ErrClosed
		case <-b.ready:
		}
	}
}

// drain removes and returns every queued item.
func (b *inbox[T]) drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}

func (b *inbox[T]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// methodRouter assigns inbound method requests to per-key inboxes.
//
// A request goes to the inbox registered for its exact name, else to the
// wildcard inbox if one is registered. Requests nobody listens for yet are
// parked under their name and handed over when a receiver registers.
type methodRouter struct {
	mu       sync.Mutex
	inboxes  map[string]*routedInbox
	wildcard *inbox[MethodRequest]
}

type routedInbox struct {
	*inbox[MethodRequest]
	registered bool
}

func newMethodRouter() *methodRouter {
	return &methodRouter{inboxes: make(map[string]*routedInbox)}
}

// reserve claims exact keys ahead of their receivers. Requests for a
// reserved key wait in its inbox and are never handed to the wildcard.
func (r *methodRouter) reserve(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range keys {
		if key == "" {
			continue
		}
		ib, ok := r.inboxes[key]
		if !ok {
			ib = &routedInbox{inbox: newInbox[MethodRequest]()}
			r.inboxes[key] = ib
		}
		ib.registered = true
	}
}

// listen registers a receiver for key and returns its inbox.
func (r *methodRouter) listen(key string) *inbox[MethodRequest] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key == "" {
		if r.wildcard == nil {
			r.wildcard = newInbox[MethodRequest]()
			for name, parked := range r.inboxes {
				if parked.registered {
					continue
				}
				for _, req := range parked.drain() {
					r.wildcard.put(req)
				}
				delete(r.inboxes, name)
			}
		}
		return r.wildcard
	}

	ib, ok := r.inboxes[key]
	if !ok {
		ib = &routedInbox{inbox: newInbox[MethodRequest]()}
		r.inboxes[key] = ib
	}
	ib.registered = true
	return ib.inbox
}

func (r *methodRouter) route(req MethodRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ib, ok := r.inboxes[req.Name]; ok && ib.registered {
		ib.put(req)
		return
	}
	if r.wildcard != nil {
		r.wildcard.put(req)
		return
	}

	ib, ok := r.inboxes[req.Name]
	if !ok {
		ib = &routedInbox{inbox: newInbox[MethodRequest]()}
		r.inboxes[req.Name] = ib
	}
	ib.put(req)
}

// pending reports how many requests are queued across all inboxes.
func (r *methodRouter) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ib := range r.inboxes {
		n += ib.len()
	}
	if r.wildcard != nil {
		n += r.wildcard.len()
	}
	return n
}
