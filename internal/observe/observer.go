package observe

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/blockstorm/internal/document"
)

// Errors returned by observer operations.
var (
	// ErrNilHandler is returned when a nil handler is subscribed.
	ErrNilHandler = errors.New("handler cannot be nil")
)

// Source is the document side the observer attaches to: a commit feed plus
// position resolution for event classification.
type Source interface {
	OnCommit(document.CommitHook)
	IndexOf(id string) (int, bool)
}

// Observer classifies committed transactions into events and fans them out
// to subscribers. It registers itself as a commit hook at construction, so
// hook order follows construction order.
//
// Subscription management is safe for concurrent use; delivery happens on
// the committing goroutine.
type Observer struct {
	src Source

	mu    sync.RWMutex
	subs  map[string]*subscription
	order []*subscription

	emitted    atomic.Uint64
	delivered  atomic.Uint64
	filtered   atomic.Uint64
	panicked   atomic.Uint64
	unresolved atomic.Uint64
}

// New creates an observer attached to src.
func New(src Source) *Observer {
	o := &Observer{
		src:  src,
		subs: make(map[string]*subscription),
	}
	src.OnCommit(o.handleCommit)
	return o
}

// Subscribe registers a handler for all future events. Handlers are called
// in subscription order.
func (o *Observer) Subscribe(h Handler, opts ...SubscriptionOption) (Subscription, error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	sub := newSubscription(uuid.NewString(), h, opts...)

	o.mu.Lock()
	o.subs[sub.id] = sub
	o.order = append(o.order, sub)
	o.mu.Unlock()

	return sub, nil
}

// Unsubscribe cancels and removes a subscription by id.
func (o *Observer) Unsubscribe(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	sub, ok := o.subs[id]
	if !ok {
		return false
	}
	sub.Cancel()
	delete(o.subs, id)
	for i, s := range o.order {
		if s.id == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return true
}

// Count returns the number of registered subscriptions.
func (o *Observer) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs)
}

// Clear removes all subscriptions.
func (o *Observer) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, sub := range o.subs {
		sub.Cancel()
	}
	o.subs = make(map[string]*subscription)
	o.order = nil
}

// handleCommit classifies one committed transaction and delivers its
// events in order.
func (o *Observer) handleCommit(txn document.Txn) {
	events, dropped := classify(txn, o.src)
	if dropped > 0 {
		o.unresolved.Add(uint64(dropped))
	}
	if len(events) == 0 {
		return
	}
	o.emitted.Add(uint64(len(events)))

	subs := o.snapshot()
	if len(subs) == 0 {
		return
	}

	for _, ev := range events {
		for _, sub := range subs {
			if !sub.shouldDeliver(ev) {
				o.filtered.Add(1)
				continue
			}
			o.deliver(sub, ev)
			if sub.config.Once {
				o.Unsubscribe(sub.id)
			}
		}
	}

	o.sweepCancelled()
}

// deliver invokes one handler with panic isolation.
func (o *Observer) deliver(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			o.panicked.Add(1)
		}
	}()

	sub.handler(ev)
	o.delivered.Add(1)
}

// snapshot copies the delivery order so handlers may subscribe and cancel
// freely during dispatch.
func (o *Observer) snapshot() []*subscription {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if len(o.order) == 0 {
		return nil
	}
	out := make([]*subscription, len(o.order))
	copy(out, o.order)
	return out
}

// sweepCancelled drops subscriptions cancelled directly through their
// Subscription handle.
func (o *Observer) sweepCancelled() {
	o.mu.Lock()
	defer o.mu.Unlock()

	kept := o.order[:0]
	for _, sub := range o.order {
		if sub.IsCancelled() {
			delete(o.subs, sub.id)
			continue
		}
		kept = append(kept, sub)
	}
	o.order = kept
}

// Stats contains observer counters. Values are read without a mutex and
// may be slightly inconsistent while events are being delivered.
type Stats struct {
	// Emitted is the number of events produced by classification.
	Emitted uint64

	// Delivered is the number of successful handler invocations.
	Delivered uint64

	// Filtered is the number of skipped deliveries (inactive or rejected
	// by filter).
	Filtered uint64

	// HandlerPanics is the number of recovered handler panics.
	HandlerPanics uint64

	// Unresolved is the number of event candidates dropped because their
	// block vanished within the same transaction.
	Unresolved uint64

	// Subscriptions is the current number of registered subscriptions.
	Subscriptions int
}

// Stats returns current observer counters.
func (o *Observer) Stats() Stats {
	return Stats{
		Emitted:       o.emitted.Load(),
		Delivered:     o.delivered.Load(),
		Filtered:      o.filtered.Load(),
		HandlerPanics: o.panicked.Load(),
		Unresolved:    o.unresolved.Load(),
		Subscriptions: o.Count(),
	}
}

// ResetStats resets all counters to zero.
func (o *Observer) ResetStats() {
	o.emitted.Store(0)
	o.delivered.Store(0)
	o.filtered.Store(0)
	o.panicked.Store(0)
	o.unresolved.Store(0)
}
