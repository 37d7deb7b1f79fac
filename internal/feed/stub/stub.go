// Package stub provides an in-memory feed.Client for tests that need to
// inject events deterministically without a real socket.
package stub

import (
	"context"
	"sync"

	"solana-token-lab/internal/domain"
)

// Client is a feed.Client test double. Push delivers an event as if it had
// arrived from upstream; Subscribe/Unsubscribe just record the desired set.
type Client struct {
	mu        sync.RWMutex
	connected bool
	subs      map[string]struct{}
	events    chan domain.Event
}

// New returns a ready-to-use stub client with a buffered event channel.
func New() *Client {
	return &Client{
		subs:   make(map[string]struct{}),
		events: make(chan domain.Event, 1024),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *Client) Subscribe(ctx context.Context, mint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[mint] = struct{}{}
	return nil
}

func (c *Client) Unsubscribe(ctx context.Context, mint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, mint)
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) SubscribedMints() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for m := range c.subs {
		out = append(out, m)
	}
	return out
}

func (c *Client) Events() <-chan domain.Event {
	return c.events
}

// Push injects ev as though it had arrived from upstream. It blocks if the
// event buffer is full, mirroring the real adapter's never-drop delivery.
func (c *Client) Push(ev domain.Event) {
	c.events <- ev
}
