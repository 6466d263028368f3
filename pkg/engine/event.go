package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	// EventInvalidated carries a status.Invalidation.
	EventInvalidated EventKind = "invalidated"
	// EventEnrollment carries an enroll.Transition.
	EventEnrollment EventKind = "enrollment"
	// EventEnrolled carries the enroll.Result of a finished attempt.
	EventEnrolled EventKind = "enrolled"
	// EventNavigation carries a navigation.Directive.
	EventNavigation EventKind = "navigation"
	// EventMarkShown carries the entry point ref id.
	EventMarkShown EventKind = "mark_shown"
	// EventSubscribed has no data.
	EventSubscribed EventKind = "subscribed"
	// EventWatcherOpen carries the watcher connection id.
	EventWatcherOpen EventKind = "watcher_open"
	// EventContent carries a ContentEvent emitted by embedded content.
	EventContent EventKind = "content"
)

// Event is an immutable notification of engine activity.
type Event struct {
	Kind      EventKind
	Address   string
	SessionID string
	Timestamp time.Time
	Data      any
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C       <-chan Event
	ch      chan Event
	dropped atomic.Uint64
}

// Dropped reports how many events were discarded because C was full. A
// consumer that sees it grow has missed invalidations and should re-read the
// status cache instead of trusting its last copy.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// EventBus fans out events to all active subscribers. It is safe for
// concurrent use.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a new subscription with the given channel buffer size.
// The caller should read from sub.C and eventually call Unsubscribe.
//
// Publish never waits for a subscriber, so bufSize bounds how far a consumer
// may fall behind. Consumers of EventInvalidated in particular must size it
// for a refresh burst: one enrollment publishes two invalidations per account
// and each watcher event one more.
func (b *EventBus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends an event to all subscribers. If a subscriber's buffer is full
// the event is dropped for that subscriber and counted in its Dropped.
func (b *EventBus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}
}
