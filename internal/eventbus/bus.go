// Package eventbus is the only channel through which the Tracker and the
// FeedClient adapter learn about each other's lifecycle events. Per design, the Tracker never holds a direct reference
// to a FeedClient: when it decides a mint should stop being watched it
// publishes tokenCleanedUp, and whatever owns the feed subscription in the
// composition root subscribes to that topic and calls Unsubscribe itself.
package eventbus

import (
	"log/slog"
	"sync"
)

// Topic names the channels this bus carries. They are string constants
// rather than an enum so a subscriber can filter by simple equality without
// importing a types package.
const (
	TopicTokenTracked            = "token_tracked"
	TopicAlertTriggered          = "alert_triggered"
	TopicTrendDetected           = "trend_detected"
	TopicTokenCleanedUp          = "token_cleaned_up"
	TopicCleanupMetrics          = "cleanup_metrics"
	TopicEmergencyStop           = "emergency_stop"
	TopicEmergencyCleanupDone    = "emergency_cleanup_completed"
	TopicEmergencyWhitelistSet   = "emergency_whitelist_updated"
)

// Handler receives a published payload. Handlers run synchronously on the
// publisher's goroutine in registration order. A panicking handler is
// recovered and logged by the bus; a slow handler delays the publisher, so
// handlers that do real work should hand off to their own goroutine/queue.
type Handler func(payload any)

// Bus is a minimal in-process, synchronous pub/sub fan-out. It exists
// purely to decouple the tracking core's packages from one another; it is
// not a message queue and carries no delivery guarantees beyond "called
// once per currently-registered subscriber, in this process".
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

// New returns a ready-to-use Bus. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers h to be called for every future Publish on topic.
// It returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := len(b.handlers[topic])
	b.handlers[topic] = append(b.handlers[topic], h)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[topic]
		if id >= len(hs) {
			return
		}
		// Replace with a no-op rather than reslicing, so indices already
		// captured by other concurrent unsubscribe closures stay valid.
		hs[id] = func(any) {}
	}
}

// Publish calls every handler currently registered for topic, synchronously,
// recovering and logging any handler panic so one bad subscriber cannot take
// down the publisher.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	hs := make([]Handler, len(b.handlers[topic]))
	copy(hs, b.handlers[topic])
	b.mu.RUnlock()

	for _, h := range hs {
		b.safeCall(topic, h, payload)
	}
}

func (b *Bus) safeCall(topic string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("eventbus: handler panicked", "topic", topic, "panic", r)
		}
	}()
	h(payload)
}
