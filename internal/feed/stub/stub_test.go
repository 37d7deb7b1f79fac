package stub

import (
	"context"
	"testing"

	"solana-token-lab/internal/domain"
)

func TestClient_ConnectDisconnectTracksIsConnected(t *testing.T) {
	c := New()
	if c.IsConnected() {
		t.Fatal("a fresh client should not be connected")
	}
	c.Connect(context.Background())
	if !c.IsConnected() {
		t.Fatal("expected IsConnected true after Connect")
	}
	c.Disconnect()
	if c.IsConnected() {
		t.Fatal("expected IsConnected false after Disconnect")
	}
}

func TestClient_SubscribeUnsubscribeTracksSubscribedMints(t *testing.T) {
	c := New()
	c.Subscribe(context.Background(), "Mint1")
	c.Subscribe(context.Background(), "Mint2")

	mints := c.SubscribedMints()
	if len(mints) != 2 {
		t.Fatalf("SubscribedMints() = %v, want 2 entries", mints)
	}

	c.Unsubscribe(context.Background(), "Mint1")
	mints = c.SubscribedMints()
	if len(mints) != 1 || mints[0] != "Mint2" {
		t.Fatalf("SubscribedMints() after unsubscribe = %v, want [Mint2]", mints)
	}
}

func TestClient_PushDeliversThroughEvents(t *testing.T) {
	c := New()
	c.Push(domain.Event{Kind: domain.EventNewToken})

	select {
	case ev := <-c.Events():
		if ev.Kind != domain.EventNewToken {
			t.Fatalf("ev.Kind = %v, want EventNewToken", ev.Kind)
		}
	default:
		t.Fatal("expected the pushed event to be immediately available")
	}
}
