package observe

import "sync/atomic"

// SubscriptionState represents the lifecycle state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive means the subscription is receiving events.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStatePaused means delivery is temporarily suspended.
	// Events emitted while paused are not replayed on resume.
	SubscriptionStatePaused

	// SubscriptionStateCancelled means the subscription is permanently
	// finished.
	SubscriptionStateCancelled
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStatePaused:
		return "paused"
	case SubscriptionStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Handler consumes one change event. Handlers run synchronously on the
// committing goroutine; a panic is isolated and counted, never propagated.
type Handler func(Event)

// FilterFunc decides whether an event is delivered to a subscription.
type FilterFunc func(Event) bool

// Subscription controls one registered handler.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// State returns the current lifecycle state.
	State() SubscriptionState

	// IsActive returns true if the subscription can receive events.
	IsActive() bool

	// Pause temporarily stops delivery.
	Pause()

	// Resume restarts delivery after a pause.
	Resume()

	// Cancel permanently stops delivery. A cancelled subscription cannot
	// be resumed.
	Cancel()
}

// SubscriptionConfig contains per-subscription delivery options.
type SubscriptionConfig struct {
	// Filter optionally restricts which events are delivered.
	Filter FilterFunc

	// Once auto-cancels the subscription after its first delivery.
	Once bool
}

// SubscriptionOption configures a subscription at registration time.
type SubscriptionOption func(*SubscriptionConfig)

// WithFilter restricts delivery to events the predicate accepts.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Filter = f
	}
}

// WithKind restricts delivery to one event kind.
func WithKind(kind Kind) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Filter = func(ev Event) bool { return ev.Kind == kind }
	}
}

// WithOnce auto-cancels the subscription after the first delivered event.
func WithOnce() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Once = true
	}
}

type subscription struct {
	id      string
	handler Handler
	config  SubscriptionConfig
	state   atomic.Int32
}

func newSubscription(id string, h Handler, opts ...SubscriptionOption) *subscription {
	var config SubscriptionConfig
	for _, opt := range opts {
		opt(&config)
	}

	s := &subscription{
		id:      id,
		handler: h,
		config:  config,
	}
	s.state.Store(int32(SubscriptionStateActive))
	return s
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

func (s *subscription) IsActive() bool {
	return s.State() == SubscriptionStateActive
}

func (s *subscription) IsCancelled() bool {
	return s.State() == SubscriptionStateCancelled
}

func (s *subscription) Pause() {
	s.state.CompareAndSwap(int32(SubscriptionStateActive), int32(SubscriptionStatePaused))
}

func (s *subscription) Resume() {
	s.state.CompareAndSwap(int32(SubscriptionStatePaused), int32(SubscriptionStateActive))
}

func (s *subscription) Cancel() {
	s.state.Store(int32(SubscriptionStateCancelled))
}

// shouldDeliver checks state and filter for one event.
func (s *subscription) shouldDeliver(ev Event) bool {
	if !s.IsActive() {
		return false
	}
	if s.config.Filter != nil && !s.config.Filter(ev) {
		return false
	}
	return true
}
