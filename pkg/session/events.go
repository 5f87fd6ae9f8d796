package session

import (
	"sync"

	"github.com/tenantgate/tenantgate/pkg/logger"
)

// EventType identifies the kind of session event.
type EventType string

const (
	// EventTokenReceived is published when an interactive login completes,
	// successfully or not.
	EventTokenReceived EventType = "token_received"

	// EventRequireLogin is published whenever a usable token cannot be
	// produced without user interaction.
	EventRequireLogin EventType = "require_login"

	// EventLogoutSuccess is published when a logout has completed.
	EventLogoutSuccess EventType = "logout_success"
)

// Event is a typed notification published by the session manager. Consumers
// subscribe through Bus; the core never calls back into its consumers.
type Event struct {
	Type    EventType `json:"type"`
	Tenant  string    `json:"tenant"`
	Success bool      `json:"success"`
	// Reason carries the human-readable failure reason for RequireLogin and
	// failed TokenReceived events.
	Reason string `json:"reason,omitempty"`
}

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind than this loses events rather than blocking the core.
const subscriberBuffer = 16

// Bus is a simple publish/subscribe channel for session events.
type Bus struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called when the subscriber is done; it closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers. Delivery is non-blocking;
// a full subscriber channel drops the event.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			logger.Warnf("dropping %s event for tenant %s: subscriber not keeping up", event.Type, event.Tenant)
		}
	}
}
