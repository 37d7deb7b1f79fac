package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/feed/wire"
)

// Config configures the WebSocket feed adapter.
type Config struct {
	Endpoint string

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DefaultConfig returns sane defaults, matching the backoff envelope
// spec.md §4.5 asks for: a small initial delay, doubling, capped.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:          endpoint,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSClient is a Client backed by a gorilla/websocket connection to a
// JSON/protobuf token event stream. On disconnect it reconnects with
// exponential backoff and resubscribes to every mint in its desired
// subscription set before resuming delivery.
type WSClient struct {
	cfg    Config
	logger *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	subsMu sync.RWMutex
	subs   map[string]struct{}

	events chan domain.Event

	closed       atomic.Bool
	connected    atomic.Bool
	reconnecting atomic.Bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient constructs a WSClient. It does not connect until Connect is
// called.
func NewWSClient(cfg Config, logger *slog.Logger) *WSClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSClient{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]struct{}),
		events: make(chan domain.Event, 4096),
		done:   make(chan struct{}),
	}
}

func (c *WSClient) Events() <-chan domain.Event {
	return c.events
}

func (c *WSClient) IsConnected() bool {
	return c.connected.Load()
}

func (c *WSClient) SubscribedMints() []string {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for m := range c.subs {
		out = append(out, m)
	}
	return out
}

func (c *WSClient) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("feed: client closed")
	}
	if err := c.dial(ctx); err != nil {
		return err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c.resubscribeAll(ctx)
}

func (c *WSClient) dial(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("feed: dial: %w", err)
	}
	c.conn = conn
	c.connected.Store(true)
	return nil
}

func (c *WSClient) Disconnect() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()
	c.connected.Store(false)

	c.wg.Wait()
	close(c.events)
	return nil
}

func (c *WSClient) Subscribe(ctx context.Context, mint string) error {
	c.subsMu.Lock()
	c.subs[mint] = struct{}{}
	c.subsMu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	return c.sendSubscribe(ctx, mint, true)
}

func (c *WSClient) Unsubscribe(ctx context.Context, mint string) error {
	c.subsMu.Lock()
	delete(c.subs, mint)
	c.subsMu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	return c.sendSubscribe(ctx, mint, false)
}

type subscribeRequest struct {
	Type string `json:"type"`
	Mint string `json:"mint"`
}

func (c *WSClient) sendSubscribe(ctx context.Context, mint string, subscribe bool) error {
	req := subscribeRequest{Mint: mint}
	if subscribe {
		req.Type = "subscribe"
	} else {
		req.Type = "unsubscribe"
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("feed: not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteJSON(req)
}

func (c *WSClient) resubscribeAll(ctx context.Context) error {
	for _, mint := range c.SubscribedMints() {
		if err := c.sendSubscribe(ctx, mint, true); err != nil {
			c.logger.Warn("feed: resubscribe failed", "mint", mint, "error", err)
		}
	}
	return nil
}

func (c *WSClient) readLoop() {
	defer c.wg.Done()

	delay := c.cfg.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			// A failed redial leaves conn nil; start the next attempt.
			if !c.reconnecting.Swap(true) {
				go c.reconnect(delay)
				delay *= 2
				if delay > c.cfg.MaxReconnectDelay {
					delay = c.cfg.MaxReconnectDelay
				}
			}
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.connected.Store(false)

			if !c.reconnecting.Swap(true) {
				go c.reconnect(delay)
			}
			delay *= 2
			if delay > c.cfg.MaxReconnectDelay {
				delay = c.cfg.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		delay = c.cfg.ReconnectDelay
		c.dispatch(message)
	}
}

func (c *WSClient) dispatch(raw []byte) {
	ev, err := wire.DecodeJSON(raw)
	if err != nil {
		// Not valid JSON: a subset of providers push protobuf frames on
		// the same socket. Fall back before dropping the frame.
		if pbEv, pbErr := wire.DecodeProtobuf(raw); pbErr == nil {
			ev = pbEv
		} else {
			c.logger.Warn("feed: dropped undecodable frame", "json_error", err, "protobuf_error", pbErr, "bytes", len(raw))
			return
		}
	}

	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *WSClient) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}
	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.dial(ctx); err != nil {
		c.logger.Error("feed: reconnect failed", "error", err)
		return
	}
	if err := c.resubscribeAll(ctx); err != nil {
		c.logger.Error("feed: resubscribe after reconnect failed", "error", err)
	}
}

func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}
