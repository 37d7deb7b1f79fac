// Package feed defines the external boundary between the tracking core and
// whatever upstream pushes token lifecycle events, and ships a
// gorilla/websocket-based adapter to a JSON/protobuf streaming feed.
package feed

import (
	"context"

	"solana-token-lab/internal/domain"
)

// Client is the FeedClient boundary from spec.md §4.5. Implementations must
// survive disconnects transparently: Subscribe/Unsubscribe update the
// desired subscription set, and a reconnect must resubscribe to everything
// in that set before delivering further events.
type Client interface {
	// Connect establishes the upstream connection. WSClient cannot be
	// reconnected: once Disconnect has run, its Connect returns an error.
	Connect(ctx context.Context) error

	// Disconnect tears down the connection and stops all background work.
	// It does not clear the subscription set (SubscribedMints still
	// reports it).
	Disconnect() error

	// Subscribe adds mint to the desired subscription set and, if
	// connected, requests it from upstream immediately.
	Subscribe(ctx context.Context, mint string) error

	// Unsubscribe removes mint from the desired subscription set and, if
	// connected, tells upstream to stop sending it.
	Unsubscribe(ctx context.Context, mint string) error

	// IsConnected reports current connection state.
	IsConnected() bool

	// SubscribedMints returns a snapshot of the desired subscription set,
	// regardless of current connection state.
	SubscribedMints() []string

	// Events returns the channel new domain.Event values arrive on. The
	// channel is never closed while the client is open; it is closed by
	// Disconnect.
	Events() <-chan domain.Event
}
