package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"streamvault/pkg/checkout"
	"streamvault/pkg/payment"
)

// Event is one message on the status channel.
type Event struct {
	Type      string `json:"type"` // status, settled
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Attempt   int    `json:"attempt,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Client is one websocket subscribed to a checkout reference.
type Client struct {
	Reference string
	Send      chan []byte
	watch     *watch
	hub       *StatusHub
	mu        sync.Mutex
	closed    bool
}

func (c *Client) deliver(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	c.mu.Unlock()
	c.hub.unregister(c)
}

type watch struct {
	reference string
	clients   map[*Client]struct{}
	cancel    context.CancelFunc
}

// StatusHub runs at most one poller per reference and fans its answers out
// to every subscriber. The poll stops when the last subscriber leaves.
type StatusHub struct {
	ctx     context.Context
	fetcher checkout.StatusFetcher
	clock   checkout.Clock
	logger  *slog.Logger

	mu      sync.Mutex
	watches map[string]*watch
}

func NewStatusHub(ctx context.Context, fetcher checkout.StatusFetcher, clock checkout.Clock, logger *slog.Logger) *StatusHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHub{
		ctx:     ctx,
		fetcher: fetcher,
		clock:   clock,
		logger:  logger.With("component", "status_ws"),
		watches: make(map[string]*watch),
	}
}

func (h *StatusHub) Subscribe(reference string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.watches[reference]
	if w == nil {
		ctx, cancel := context.WithCancel(h.ctx)
		w = &watch{reference: reference, clients: make(map[*Client]struct{}), cancel: cancel}
		h.watches[reference] = w
		go h.run(ctx, w)
	}
	c := &Client{Reference: reference, Send: make(chan []byte, 64), watch: w, hub: h}
	w.clients[c] = struct{}{}
	return c
}

func (h *StatusHub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := c.watch
	if _, ok := w.clients[c]; !ok {
		return
	}
	delete(w.clients, c)
	if len(w.clients) == 0 {
		w.cancel()
		if h.watches[w.reference] == w {
			delete(h.watches, w.reference)
		}
	}
}

// Active is the number of references being polled.
func (h *StatusHub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watches)
}

func (h *StatusHub) run(ctx context.Context, w *watch) {
	p := checkout.NewPoller(h.fetcher, h.clock, h.logger)
	p.OnAttempt = func(attempt int, status string, err error) {
		if err == nil {
			h.broadcast(w, Event{Type: "status", Reference: w.reference, Status: status, Attempt: attempt})
		}
	}
	status, err := p.Poll(ctx, w.reference)

	ev := Event{Type: "settled", Reference: w.reference, Status: status}
	switch {
	case errors.Is(err, checkout.ErrTimeout):
		ev.Status, ev.Reason = payment.StatusFailed, checkout.Reason3DSTimeout
	case errors.Is(err, checkout.ErrCancelled):
		ev.Status, ev.Reason = payment.StatusFailed, checkout.Reason3DSCancelled
	case status == payment.StatusFailed:
		ev.Reason = checkout.ReasonPaymentFailed
	}
	h.finish(w, ev)
}

func (h *StatusHub) broadcast(w *watch, ev Event) {
	data, _ := json.Marshal(ev)
	h.mu.Lock()
	clients := make([]*Client, 0, len(w.clients))
	for c := range w.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.deliver(data)
	}
}

// finish sends the terminal event and closes every subscriber.
func (h *StatusHub) finish(w *watch, ev Event) {
	h.broadcast(w, ev)
	h.mu.Lock()
	clients := make([]*Client, 0, len(w.clients))
	for c := range w.clients {
		clients = append(clients, c)
	}
	if h.watches[w.reference] == w {
		delete(h.watches, w.reference)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
	h.logger.Debug("status watch finished", "reference", w.reference, "status", ev.Status, "reason", ev.Reason)
}
