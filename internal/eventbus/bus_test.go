package eventbus

import (
	"sync"
	"testing"
)

func TestPublish_FansOutToMultipleHandlers(t *testing.T) {
	b := New(nil)
	var mu sync.Mutex
	var got []int

	b.Subscribe(TopicTokenTracked, func(payload any) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, 1)
	})
	b.Subscribe(TopicTokenTracked, func(payload any) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, 2)
	})

	b.Publish(TopicTokenTracked, "payload")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("handlers called = %v, want both registered handlers invoked", got)
	}
}

func TestPublish_OnlyCallsHandlersOnItsOwnTopic(t *testing.T) {
	b := New(nil)
	called := false
	b.Subscribe(TopicAlertTriggered, func(payload any) { called = true })

	b.Publish(TopicTokenTracked, "payload")

	if called {
		t.Fatal("handler registered on a different topic must not be invoked")
	}
}

func TestPublish_PassesPayloadThrough(t *testing.T) {
	b := New(nil)
	var got any
	b.Subscribe(TopicTrendDetected, func(payload any) { got = payload })

	b.Publish(TopicTrendDetected, 42)

	if got != 42 {
		t.Fatalf("payload = %v, want 42", got)
	}
}

func TestUnsubscribe_StopsFutureDelivery(t *testing.T) {
	b := New(nil)
	calls := 0
	unsubscribe := b.Subscribe(TopicTokenCleanedUp, func(payload any) { calls++ })

	b.Publish(TopicTokenCleanedUp, nil)
	unsubscribe()
	b.Publish(TopicTokenCleanedUp, nil)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no delivery after unsubscribe)", calls)
	}
}

func TestUnsubscribe_DoesNotAffectOtherSubscribers(t *testing.T) {
	b := New(nil)
	var aCalls, bCalls int
	unsubA := b.Subscribe(TopicCleanupMetrics, func(payload any) { aCalls++ })
	b.Subscribe(TopicCleanupMetrics, func(payload any) { bCalls++ })

	unsubA()
	b.Publish(TopicCleanupMetrics, nil)

	if aCalls != 0 || bCalls != 1 {
		t.Fatalf("aCalls=%d bCalls=%d, want 0 and 1", aCalls, bCalls)
	}
}

func TestUnsubscribe_IsIdempotent(t *testing.T) {
	b := New(nil)
	unsubscribe := b.Subscribe(TopicEmergencyStop, func(payload any) {})
	unsubscribe()
	unsubscribe() // must not panic or corrupt state
}

func TestPublish_RecoversHandlerPanicAndCallsRemainingHandlers(t *testing.T) {
	b := New(nil)
	secondCalled := false
	b.Subscribe(TopicEmergencyCleanupDone, func(payload any) { panic("boom") })
	b.Subscribe(TopicEmergencyCleanupDone, func(payload any) { secondCalled = true })

	b.Publish(TopicEmergencyCleanupDone, nil) // must not panic the test

	if !secondCalled {
		t.Fatal("a panicking handler must not prevent later handlers from running")
	}
}

func TestPublish_UnknownTopicIsNoop(t *testing.T) {
	b := New(nil)
	b.Publish(TopicEmergencyWhitelistSet, nil) // must not panic with zero subscribers
}
