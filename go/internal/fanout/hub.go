package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/bidding"
	"github.com/mcdev12/gavel/go/internal/config"
	"github.com/mcdev12/gavel/go/internal/durable"
	"github.com/mcdev12/gavel/go/internal/events"
)

// ConnConfig holds the WebSocket connection limits.
type ConnConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnConfig returns the production connection limits. Heartbeat
// pings go out every 10 s; clients missing them time out on the read side.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    10 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// lastBroadcast is the dedup state kept per auction.
type lastBroadcast struct {
	hash uint64
	at   time.Time
	snap *Snapshot
}

// Hub keeps the subscription registry and broadcasts auction state to every
// subscribed viewer.
type Hub struct {
	engine *bidding.Engine
	db     *durable.Store
	bus    events.Bus
	clock  clockwork.Clock
	tuning config.Tuning

	connCfg  ConnConfig
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*Conn]bool

	lastMu sync.Mutex
	last   map[string]lastBroadcast
}

// Conn is one subscriber connection.
type Conn struct {
	ID   string
	hub  *Hub
	ws   *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	auctionID string
	userID    int64
}

// NewHub wires the fan-out over the bid engine and the durable store.
func NewHub(engine *bidding.Engine, db *durable.Store, bus events.Bus, clock clockwork.Clock, tuning config.Tuning, connCfg ConnConfig) *Hub {
	return &Hub{
		engine:  engine,
		db:      db,
		bus:     bus,
		clock:   clock,
		tuning:  tuning,
		connCfg: connCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  connCfg.ReadBufferSize,
			WriteBufferSize: connCfg.WriteBufferSize,
			CheckOrigin:     connCfg.CheckOrigin,
		},
		subs: make(map[string]map[*Conn]bool),
		last: make(map[string]lastBroadcast),
	}
}

// ServeWS upgrades an HTTP request into a subscriber connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := &Conn{
		ID:   uuid.New().String(),
		hub:  h,
		ws:   ws,
		send: make(chan []byte, 256),
	}

	go conn.writePump()
	go conn.readPump()

	log.Info().Str("connection_id", conn.ID).Msg("subscriber connected")
}

func (h *Hub) subscribe(conn *Conn, auctionID string, userID int64) {
	conn.mu.Lock()
	prev := conn.auctionID
	conn.auctionID = auctionID
	conn.userID = userID
	conn.mu.Unlock()

	h.mu.Lock()
	if prev != "" && prev != auctionID {
		if set := h.subs[prev]; set != nil {
			delete(set, conn)
			if len(set) == 0 {
				delete(h.subs, prev)
			}
		}
	}
	if h.subs[auctionID] == nil {
		h.subs[auctionID] = make(map[*Conn]bool)
	}
	h.subs[auctionID][conn] = true
	total := len(h.subs[auctionID])
	h.mu.Unlock()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("auction_id", auctionID).
		Int("subscribers", total).
		Msg("subscription registered")
}

func (h *Hub) unregister(conn *Conn) {
	conn.mu.Lock()
	auctionID := conn.auctionID
	conn.auctionID = ""
	conn.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if auctionID == "" {
		return
	}
	if set := h.subs[auctionID]; set != nil {
		if set[conn] {
			delete(set, conn)
			close(conn.send)
			if len(set) == 0 {
				delete(h.subs, auctionID)
			}
		}
	}
}

// subscribedAuctions snapshots the set of auctions with at least one viewer.
func (h *Hub) subscribedAuctions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.subs))
	for id := range h.subs {
		out = append(out, id)
	}
	return out
}

// connsFor snapshots the subscriber list of one auction.
func (h *Hub) connsFor(auctionID string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.subs[auctionID]
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Shutdown closes every subscriber with a going-away status.
func (h *Hub) Shutdown() {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for conn := range set {
			_ = conn.ws.WriteControl(websocket.CloseMessage, msg, deadline)
			_ = conn.ws.Close()
		}
	}
	h.subs = make(map[string]map[*Conn]bool)
}

// deliver queues a frame onto a connection, dropping the connection when its
// buffer is full (slow or dead client).
func (h *Hub) deliver(conn *Conn, frame []byte) {
	select {
	case conn.send <- frame:
	default:
		log.Warn().Str("connection_id", conn.ID).Msg("send buffer full, closing connection")
		h.unregister(conn)
		_ = conn.ws.Close()
	}
}

// writePump owns all writes to the socket, including heartbeat pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.connCfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.connCfg.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.connCfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client frames and dispatches them.
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.connCfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.connCfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.connCfg.ReadTimeout))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("unexpected close")
			}
			return
		}
		c.handleMessage(message)
		_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.connCfg.ReadTimeout))
	}
}

func (c *Conn) handleMessage(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError(bidding.KindValidation, "malformed message", nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch msg.Type {
	case msgPing:
		c.sendJSON(map[string]string{"type": msgPong})

	case msgSubscribe:
		if msg.AuctionID == "" {
			c.sendError(bidding.KindValidation, "auction_id is required", nil)
			return
		}
		c.hub.subscribe(c, msg.AuctionID, msg.UserID)
		snap, err := c.hub.buildSnapshot(ctx, msg.AuctionID)
		if err != nil {
			c.sendError(kindOrInternal(err), "failed to load auction state", nil)
			return
		}
		c.hub.deliver(c, c.personalize(snap))

	case msgBid:
		c.handleBid(ctx, msg)

	default:
		c.sendError(bidding.KindValidation, fmt.Sprintf("unknown message type %q", msg.Type), nil)
	}
}

// handleBid places a bid on behalf of the subscribed user.
func (c *Conn) handleBid(ctx context.Context, msg ClientMessage) {
	c.mu.Lock()
	auctionID := c.auctionID
	userID := c.userID
	c.mu.Unlock()

	if msg.AuctionID != "" {
		auctionID = msg.AuctionID
	}
	if msg.UserID != 0 {
		userID = msg.UserID
	}

	resp, err := c.hub.engine.PlaceBid(ctx, bidding.PlaceBidRequest{
		AuctionID:      auctionID,
		UserID:         userID,
		Amount:         msg.Amount,
		IdempotencyKey: msg.IdempotencyKey,
		AddToExisting:  msg.AddToExisting,
	})
	if err != nil {
		var be *bidding.Error
		if errors.As(err, &be) {
			c.sendBidError(string(be.Kind), be.Context)
			return
		}
		log.Error().Err(err).Str("auction_id", auctionID).Msg("bid over websocket failed")
		c.sendBidError("INTERNAL", nil)
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("encode bid response")
		return
	}
	c.sendJSON(BidSuccess{Type: msgBidSuccess, Payload: payload})
}

func (c *Conn) sendBidError(kind string, ctxFields map[string]interface{}) {
	c.sendJSON(ErrorMessage{Type: msgBidError, Error: kind, Context: ctxFields})
}

func (c *Conn) sendError(kind bidding.Kind, message string, ctxFields map[string]interface{}) {
	if ctxFields == nil {
		ctxFields = map[string]interface{}{}
	}
	ctxFields["message"] = message
	c.sendJSON(ErrorMessage{Type: msgError, Error: string(kind), Context: ctxFields})
}

func (c *Conn) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("encode outbound frame")
		return
	}
	c.hub.deliver(c, data)
}

func kindOrInternal(err error) bidding.Kind {
	if kind := bidding.KindOf(err); kind != "" {
		return kind
	}
	return "INTERNAL"
}
