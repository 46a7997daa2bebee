package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Hub tracks the connections served by this process and is the in-process Gateway.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
	log     zerolog.Logger
}

// NewHub constructs a Hub.
func NewHub(logger *zerolog.Logger) *Hub {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "hub").Logger()
	}
	return &Hub{
		clients: make(map[string]*Client),
		log:     l,
	}
}

// RegisterClient adds a client. A client registered with an existing ID replaces the old one.
func (h *Hub) RegisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(c.Events)
		return
	}
	if old, ok := h.clients[c.ID]; ok && old != c {
		close(old.Events)
	}
	h.clients[c.ID] = c
	h.log.Debug().Str("conn", c.ID).Str("user", c.Name).Msg("client registered")
}

// UnregisterClient removes the client and closes its event channel.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.ID]; ok && cur == c {
		delete(h.clients, c.ID)
		close(c.Events)
		h.log.Debug().Str("conn", c.ID).Msg("client unregistered")
	}
}

// Deliver queues ev on the client's outbox without blocking.
func (h *Hub) Deliver(ctx context.Context, connKey string, ev *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connKey]
	if !ok {
		return fmt.Errorf("deliver to %s: %w", connKey, ErrConnectionGone)
	}
	select {
	case c.Events <- ev:
		return nil
	default:
		return fmt.Errorf("deliver to %s: %w", connKey, ErrSlowConsumer)
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run blocks until ctx is cancelled, then closes every client outbox.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, c := range h.clients {
		close(c.Events)
		delete(h.clients, id)
	}
	h.log.Debug().Msg("hub stopped")
}

var _ Gateway = (*Hub)(nil)
