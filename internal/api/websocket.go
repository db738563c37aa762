package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-weather/internal/entry"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-weather/internal/integration"
)

// Frame types exchanged with WebSocket clients.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is how many frames may queue for one client before
	// further updates to it are dropped.
	wsSendBufferSize = 256

	// ChannelStations receives updates for every station.
	ChannelStations = "stations"

	stationChannelPrefix = "station."
)

// StationChannel names the channel carrying updates for one station.
func StationChannel(entryID string) string {
	return stationChannelPrefix + entryID
}

func validChannel(ch string) bool {
	return ch == ChannelStations ||
		(strings.HasPrefix(ch, stationChannelPrefix) && len(ch) > len(stationChannelPrefix))
}

// WSMessage is one frame on the wire, in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload lists the channels of a subscribe or unsubscribe frame.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// inbound is the decode side of WSMessage; the payload is kept raw until
// the frame type is known.
type inbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func encodeFrame(msgType, id, eventType string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// Hub fans station updates out to connected WebSocket clients.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one connected WebSocket peer and the channels it follows.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	// send is closed exactly once, under mu, when the client leaves the hub.
	send   chan []byte
	closed bool

	mu            sync.RWMutex
	subscriptions map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware has already screened the origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates an empty hub. Call Run to tie its lifetime to a context.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and ends its writer. Repeated calls are
// harmless.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.shutdown()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast implements integration.Broadcaster. The update reaches
// clients following all stations or the station it concerns.
func (h *Hub) Broadcast(u integration.Update) {
	frame, err := encodeFrame(WSTypeEvent, "", u.Type, u)
	if err != nil {
		h.logger.Error("encoding station update failed", "entry_id", u.EntryID, "error", err)
		return
	}
	targets := []string{ChannelStations, StationChannel(u.EntryID)}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if c.follows(targets) && c.enqueue(frame) {
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("station update sent", "entry_id", u.EntryID, "type", u.Type, "recipients", delivered)
	}
}

// handleWebSocket upgrades the request. With ?station=<id> the client
// starts on that station's channel, otherwise on ChannelStations.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	channel := ChannelStations
	if id := r.URL.Query().Get("station"); id != "" {
		if _, err := s.stations.Entry(r.Context(), id); err != nil {
			if errors.Is(err, entry.ErrEntryNotFound) {
				writeNotFound(w, "station not found: "+id)
				return
			}
			s.logger.Error("websocket station lookup failed", "error", err)
			writeInternalError(w, "station lookup failed")
			return
		}
		channel = StationChannel(id)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{channel: {}},
	}
	s.hub.Register(c)

	ka := newKeepalive(s.wsCfg)
	go c.writeLoop(ka)
	go c.readLoop(ka, int64(s.wsCfg.MaxMessageSize))
}

// keepalive holds the ping cadence and how long a silent peer survives.
type keepalive struct {
	ping time.Duration
	pong time.Duration
}

func newKeepalive(cfg config.WebSocketConfig) keepalive {
	return keepalive{
		ping: time.Duration(cfg.PingInterval) * time.Second,
		pong: time.Duration(cfg.PongTimeout) * time.Second,
	}
}

func (k keepalive) readDeadline() time.Time {
	return time.Now().Add(k.ping + k.pong)
}

func (c *WSClient) readLoop(ka keepalive, limit int64) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(limit)
	//nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetReadDeadline(ka.readDeadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(ka.readDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any frame counts as alive.
		//nolint:errcheck // a failed deadline surfaces on the next read
		c.conn.SetReadDeadline(ka.readDeadline())
		c.dispatch(data)
	}
}

func (c *WSClient) writeLoop(ka keepalive) {
	ticker := time.NewTicker(ka.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces on the write
		c.conn.SetWriteDeadline(time.Now().Add(ka.pong))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // connection is going away
				return
			}
			if write(websocket.TextMessage, frame) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func (c *WSClient) dispatch(data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply("", WSTypeError, errorBody("invalid JSON message"))
		return
	}

	switch in.Type {
	case WSTypePing:
		c.reply(in.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.changeSubscriptions(in)
	default:
		c.reply(in.ID, WSTypeError, errorBody("unknown message type: "+in.Type))
	}
}

func (c *WSClient) changeSubscriptions(in inbound) {
	var sub WSSubscribePayload
	if len(in.Payload) == 0 || json.Unmarshal(in.Payload, &sub) != nil {
		c.reply(in.ID, WSTypeError, errorBody("invalid "+in.Type+" payload"))
		return
	}
	for _, ch := range sub.Channels {
		if !validChannel(ch) {
			c.reply(in.ID, WSTypeError, errorBody("unknown channel: "+ch))
			return
		}
	}

	adding := in.Type == WSTypeSubscribe
	c.mu.Lock()
	for _, ch := range sub.Channels {
		if adding {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if adding {
		key = "subscribed"
	}
	c.reply(in.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

func errorBody(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	frame, err := encodeFrame(msgType, id, "", payload)
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func (c *WSClient) follows(channels []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range channels {
		if _, ok := c.subscriptions[ch]; ok {
			return true
		}
	}
	return false
}

// enqueue queues frame without blocking. It reports false when the
// client is gone or its buffer is full.
func (c *WSClient) enqueue(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *WSClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
