package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
	"github.com/nerrad567/gatehouse/internal/infrastructure/logging"
)

// Audit stream message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	// ChannelAuthPrefix prefixes every audit channel: auth.login_failed etc.
	ChannelAuthPrefix = "auth."

	// ChannelAuthAll subscribes to every audit channel.
	ChannelAuthAll = ChannelAuthPrefix + "*"

	wsSendBufferSize = 256
)

// WSMessage is one frame on the audit stream, in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans audit events out to connected stream clients. It is an
// audit.Sink.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

var _ audit.Sink = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.closeSend()
		if c.conn != nil {
			c.conn.Close() //nolint:errcheck // shutdown
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("audit stream client connected", "subject", c.subject, "clients", n)
}

// Unregister removes a client and closes its send queue. Repeated calls
// are harmless.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.closeSend()
	h.logger.Debug("audit stream client disconnected", "subject", c.subject, "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver encodes evt once and queues it for every client subscribed to
// its channel. Slow clients lose the frame rather than block the caller.
func (h *Hub) Deliver(evt audit.Event) error {
	channel := auditChannel(evt.Action)
	at := evt.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}

	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		ID:        evt.ID,
		EventType: channel,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Payload:   evt,
	})
	if err != nil {
		return fmt.Errorf("encoding audit frame: %w", err)
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.wants(channel) {
			continue
		}
		if !c.enqueue(frame) {
			h.logger.Warn("audit stream client too slow, frame dropped",
				"subject", c.subject,
				"event_id", evt.ID,
			)
		}
	}
	return nil
}

func auditChannel(a audit.Action) string {
	return ChannelAuthPrefix + string(a)
}

// unknownChannels returns the entries of channels that are neither
// ChannelAuthAll nor auth.<known action>.
func unknownChannels(channels []string) []string {
	var bad []string
	for _, ch := range channels {
		if ch == ChannelAuthAll {
			continue
		}
		action, ok := strings.CutPrefix(ch, ChannelAuthPrefix)
		if !ok || !audit.Action(action).Valid() {
			bad = append(bad, ch)
		}
	}
	return bad
}

// WSClient is one connected audit stream consumer.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	subject string // principal that redeemed the ticket
	send    chan []byte

	mu            sync.Mutex
	subscriptions map[string]struct{}
	closed        bool
}

// enqueue queues frame without blocking. It reports false only when the
// queue is full.
func (c *WSClient) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *WSClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) wants(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exact := c.subscriptions[channel]
	_, all := c.subscriptions[ChannelAuthAll]
	return exact || all
}

func (c *WSClient) subscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
}

func (c *WSClient) unsubscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
}
