package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
)

// Origin is checked by the CORS middleware; the ticket is the credential.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// inboundMessage is a client frame with its payload left undecoded.
type inboundMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// handleWebSocket redeems a ticket from POST /auth/ws-ticket and upgrades
// the connection to an audit stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err, "subject", entry.subject)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		subject:       entry.subject,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(client)
	s.logger.Info("audit stream opened", "subject", entry.subject, "request_id", requestIDFrom(r.Context()))

	go client.writeLoop(s.wsCfg)
	go client.readLoop(s.wsCfg)
}

func streamTimings(cfg config.WebSocketConfig) (ping, pong time.Duration) {
	return time.Duration(cfg.PingInterval) * time.Second, time.Duration(cfg.PongTimeout) * time.Second
}

// readLoop handles client frames until the connection fails, then
// unregisters the client.
func (c *WSClient) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close() //nolint:errcheck // already failing
	}()

	ping, pong := streamTimings(cfg)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ping + pong)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	_ = extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("audit stream read error", "subject", c.subject, "error", err)
			}
			return
		}
		// Application frames count as liveness too.
		_ = extend() //nolint:errcheck // as above
		c.handle(data)
	}
}

// writeLoop drains the send queue and pings on the configured interval.
func (c *WSClient) writeLoop(cfg config.WebSocketConfig) {
	ping, pong := streamTimings(cfg)
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // writer owns shutdown
	}()

	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(pong)) //nolint:errcheck // surfaces as a write error
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handle(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(WSTypePong, msg.ID, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var p WSSubscribePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || len(p.Channels) == 0 {
			c.replyError(msg.ID, "payload.channels is required")
			return
		}
		if bad := unknownChannels(p.Channels); len(bad) > 0 {
			c.replyError(msg.ID, "unknown channels: "+strings.Join(bad, ", "))
			return
		}
		if msg.Type == WSTypeSubscribe {
			c.subscribe(p.Channels)
			c.hub.logger.Debug("audit stream subscribed", "subject", c.subject, "channels", p.Channels)
			c.reply(WSTypeResponse, msg.ID, map[string]any{"subscribed": p.Channels})
		} else {
			c.unsubscribe(p.Channels)
			c.reply(WSTypeResponse, msg.ID, map[string]any{"unsubscribed": p.Channels})
		}
	default:
		c.replyError(msg.ID, "unknown message type: "+msg.Type)
	}
}

func (c *WSClient) reply(msgType, id string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func (c *WSClient) replyError(id, message string) {
	c.reply(WSTypeError, id, map[string]string{"message": message})
}
