package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/logging"
)

// Stream frame types.
const (
	frameEvent       = "event"
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	frameSubscribed  = "subscribed"
	framePing        = "ping"
	framePong        = "pong"
	frameError       = "error"

	// streamBufferSize is the per-client outbound frame buffer.
	streamBufferSize = 256
)

// streamFrame is one JSON message on the event stream, in either direction.
//
// Server to client:
//
//	{"type":"event","event":{"event_type":"doorbird_doorbell",...}}
//	{"type":"subscribed","id":"1","event_types":["doorbird_doorbell"]}
//	{"type":"error","id":"1","error":"unknown frame type"}
//
// Client to server:
//
//	{"type":"subscribe","id":"1","event_types":["*"]}
//	{"type":"unsubscribe","id":"2","event_types":["doorbird_motionsensor"]}
//	{"type":"ping","id":"3"}
type streamFrame struct {
	Type       string      `json:"type"`
	ID         string      `json:"id,omitempty"`
	Event      *host.Event `json:"event,omitempty"`
	EventTypes []string    `json:"event_types,omitempty"`
	Error      string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origins are policed by the CORS middleware.
		return true
	},
}

// Hub fans bus events out to WebSocket clients.
//
// A client that cannot keep up loses frames rather than slowing the hub;
// Dropped reports how many.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	closed  bool

	dropped atomic.Uint64
}

// NewHub creates a hub. Run must be called to close clients on shutdown.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) add(c *streamClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// BroadcastEvent sends e to every client whose filter accepts it.
func (h *Hub) BroadcastEvent(e host.Event) {
	data, err := json.Marshal(streamFrame{Type: frameEvent, Event: &e})
	if err != nil {
		h.logger.Error("encoding event frame", "event_type", e.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.accepts(e) && !c.enqueue(data) {
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of frames discarded for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// streamClient is one WebSocket connection. The send channel is never
// closed; done signals both pumps to exit.
type streamClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once

	// entryID restricts the stream to one config entry when set.
	entryID string

	mu    sync.RWMutex
	types map[string]struct{}
}

func (c *streamClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *streamClient) accepts(e host.Event) bool {
	if c.entryID != "" && e.EntryID != c.entryID {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.types[host.MatchAll]; ok {
		return true
	}
	_, ok := c.types[e.Type]
	return ok
}

// enqueue reports false only when the client buffer is full.
func (c *streamClient) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

// setTypes adds or removes event types from the filter.
func (c *streamClient) setTypes(types []string, subscribe bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range types {
		if subscribe {
			c.types[t] = struct{}{}
		} else {
			delete(c.types, t)
		}
	}
}

func (c *streamClient) reply(frame streamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// handleWebSocket upgrades the request to an event stream.
//
// Query parameters seed the filter before the first frame is read:
// subscribe is a comma separated list of event types and defaults to every
// type; entry_id limits the stream to one door station.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	types := splitList(r.URL.Query().Get("subscribe"))
	if _, given := r.URL.Query()["subscribe"]; !given {
		types = []string{host.MatchAll}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &streamClient{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, streamBufferSize),
		done:    make(chan struct{}),
		entryID: r.URL.Query().Get("entry_id"),
		types:   make(map[string]struct{}),
	}
	c.setTypes(types, true)

	if !s.hub.add(c) {
		conn.Close()
		return
	}
	s.logger.Debug("event stream opened",
		"remote", r.RemoteAddr, "event_types", types, "entry_id", c.entryID)

	go c.writePump()
	go c.readPump()
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *streamClient) deadlines() (ping, pong time.Duration) {
	ping, pong = 30*time.Second, 10*time.Second
	if c.hub.cfg.PingInterval > 0 {
		ping = time.Duration(c.hub.cfg.PingInterval) * time.Second
	}
	if c.hub.cfg.PongTimeout > 0 {
		pong = time.Duration(c.hub.cfg.PongTimeout) * time.Second
	}
	return ping, pong
}

func (c *streamClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()

	ping, pong := c.deadlines()
	extend := func() {
		//nolint:errcheck // a failed deadline surfaces as a read error
		c.conn.SetReadDeadline(time.Now().Add(ping + pong))
	}

	if c.hub.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	}
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("event stream read failed", "error", err)
			}
			return
		}
		extend()

		var frame streamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.reply(streamFrame{Type: frameError, Error: "invalid JSON frame"})
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *streamClient) handleFrame(frame streamFrame) {
	switch frame.Type {
	case frameSubscribe, frameUnsubscribe:
		c.setTypes(frame.EventTypes, frame.Type == frameSubscribe)
		c.mu.RLock()
		current := make([]string, 0, len(c.types))
		for t := range c.types {
			current = append(current, t)
		}
		c.mu.RUnlock()
		c.reply(streamFrame{Type: frameSubscribed, ID: frame.ID, EventTypes: current})
	case framePing:
		c.reply(streamFrame{Type: framePong, ID: frame.ID})
	default:
		c.reply(streamFrame{Type: frameError, ID: frame.ID, Error: "unknown frame type: " + frame.Type})
	}
}

func (c *streamClient) writePump() {
	ping, pong := c.deadlines()
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(pong))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data := <-c.send:
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			//nolint:errcheck // peer may already be gone
			write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
