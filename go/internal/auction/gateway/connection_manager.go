package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/dropauction/go/internal/models"
)

// ShareHandler processes a share click for an item.
type ShareHandler interface {
	HandleShare(ctx context.Context, itemID, userID string) (*models.PriceUpdate, error)
}

// RegistryMetrics observes connection churn and fan-out results.
type RegistryMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	BroadcastDelivered(delivered, failed int)
}

type noopRegistryMetrics struct{}

func (noopRegistryMetrics) ConnectionOpened()           {}
func (noopRegistryMetrics) ConnectionClosed()           {}
func (noopRegistryMetrics) BroadcastDelivered(_, _ int) {}

// ConnectionManager is the registry of live viewers per item.
//
// Each item has its own entry and lock, so viewers of different items never
// contend. An entry is removed as soon as its last connection leaves.
type ConnectionManager struct {
	items sync.Map // item id -> *itemEntry

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  ShareHandler
	metrics  RegistryMetrics
}

type itemEntry struct {
	mu    sync.Mutex
	conns map[*Connection]struct{}
	// dead is set once the entry has been removed from the map; late
	// registrations must retry with a fresh entry.
	dead bool
}

// Connection is one viewer's websocket session on one item.
type Connection struct {
	ID      string
	UserID  string // optional, from the handshake; shares carry their own user_id
	ItemID  string
	Conn    *websocket.Conn
	Manager *ConnectionManager

	ConnectedAt time.Time

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	ShareTimeout    time.Duration // upper bound for processing one share
	CheckOrigin     func(r *http.Request) bool
}

// DeliveryReport is the per-connection outcome of one broadcast.
type DeliveryReport struct {
	Delivered int
	Failed    []*Connection
}

// ConnectionStats is a point-in-time view of the registry.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveItems      int            `json:"active_items"`
	ItemConnections  map[string]int `json:"item_connections"`
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		ShareTimeout:    10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates an empty registry.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	defaults := DefaultConnectionConfig()
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = defaults.SendBufferSize
	}
	if config.ShareTimeout <= 0 {
		config.ShareTimeout = defaults.ShareTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	return &ConnectionManager{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		metrics: noopRegistryMetrics{},
	}
}

// SetShareHandler wires the processor that handles inbound share clicks.
// Must be called before connections are accepted.
func (cm *ConnectionManager) SetShareHandler(h ShareHandler) {
	cm.handler = h
}

// SetMetrics attaches registry metrics.
func (cm *ConnectionManager) SetMetrics(m RegistryMetrics) {
	cm.metrics = m
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and registers it for itemID.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, itemID, userID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := cm.newConnection(conn, itemID, userID)
	cm.Register(connection, itemID)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Str("item_id", itemID).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) newConnection(conn *websocket.Conn, itemID, userID string) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		ItemID:      itemID,
		Conn:        conn,
		Manager:     cm,
		ConnectedAt: time.Now(),
		send:        make(chan []byte, cm.config.SendBufferSize),
	}
}

// Register adds conn to the entry for itemID, creating the entry if needed.
func (cm *ConnectionManager) Register(conn *Connection, itemID string) {
	for {
		v, _ := cm.items.LoadOrStore(itemID, &itemEntry{conns: make(map[*Connection]struct{})})
		entry := v.(*itemEntry)

		entry.mu.Lock()
		if entry.dead {
			entry.mu.Unlock()
			continue
		}
		entry.conns[conn] = struct{}{}
		total := len(entry.conns)
		entry.mu.Unlock()

		cm.metrics.ConnectionOpened()
		log.Debug().
			Str("connection_id", conn.ID).
			Str("item_id", itemID).
			Int("total_connections", total).
			Msg("connection registered")
		return
	}
}

// Unregister removes conn from itemID's entry and closes its send queue.
// The entry is dropped when it becomes empty. Unknown connections are a no-op.
func (cm *ConnectionManager) Unregister(conn *Connection, itemID string) {
	v, ok := cm.items.Load(itemID)
	if !ok {
		return
	}
	entry := v.(*itemEntry)

	entry.mu.Lock()
	if _, exists := entry.conns[conn]; !exists {
		entry.mu.Unlock()
		return
	}
	delete(entry.conns, conn)
	if len(entry.conns) == 0 {
		entry.dead = true
		cm.items.CompareAndDelete(itemID, entry)
	}
	entry.mu.Unlock()

	conn.closeSend()
	cm.metrics.ConnectionClosed()

	log.Info().
		Str("connection_id", conn.ID).
		Str("item_id", itemID).
		Msg("connection unregistered")
}

// Broadcast queues message for every connection registered on itemID.
// Connections that cannot take the message are unregistered; delivery to
// the rest is unaffected. Broadcasting to an item with no viewers is a no-op.
func (cm *ConnectionManager) Broadcast(itemID string, message []byte) DeliveryReport {
	var report DeliveryReport

	v, ok := cm.items.Load(itemID)
	if !ok {
		return report
	}
	entry := v.(*itemEntry)

	// Snapshot so the entry lock isn't held while queueing
	entry.mu.Lock()
	targets := make([]*Connection, 0, len(entry.conns))
	for conn := range entry.conns {
		targets = append(targets, conn)
	}
	entry.mu.Unlock()

	for _, conn := range targets {
		if conn.enqueue(message) {
			report.Delivered++
			continue
		}
		report.Failed = append(report.Failed, conn)
	}

	for _, conn := range report.Failed {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("item_id", itemID).
			Msg("connection could not take broadcast, removing")
		cm.Unregister(conn, itemID)
	}

	cm.metrics.BroadcastDelivered(report.Delivered, len(report.Failed))
	return report
}

// PublishPriceUpdate broadcasts a committed price change to the item's local viewers.
func (cm *ConnectionManager) PublishPriceUpdate(_ context.Context, update models.PriceUpdate) error {
	data, err := json.Marshal(newPriceUpdateFrame(update))
	if err != nil {
		return fmt.Errorf("marshal price update: %w", err)
	}

	report := cm.Broadcast(update.ItemID, data)

	log.Debug().
		Str("item_id", update.ItemID).
		Float64("new_price", update.NewPrice).
		Int("delivered", report.Delivered).
		Int("failed", len(report.Failed)).
		Msg("price update broadcasted")
	return nil
}

// ViewerCount returns how many connections are registered for itemID.
func (cm *ConnectionManager) ViewerCount(itemID string) int {
	v, ok := cm.items.Load(itemID)
	if !ok {
		return 0
	}
	entry := v.(*itemEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.conns)
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	stats := ConnectionStats{ItemConnections: make(map[string]int)}

	cm.items.Range(func(key, value any) bool {
		entry := value.(*itemEntry)
		entry.mu.Lock()
		count := len(entry.conns)
		entry.mu.Unlock()

		if count > 0 {
			stats.TotalConnections += count
			stats.ItemConnections[key.(string)] = count
		}
		return true
	})
	stats.ActiveItems = len(stats.ItemConnections)

	return stats
}

// CloseAll unregisters every connection, used on shutdown.
func (cm *ConnectionManager) CloseAll() {
	cm.items.Range(func(key, value any) bool {
		entry := value.(*itemEntry)
		entry.mu.Lock()
		conns := make([]*Connection, 0, len(entry.conns))
		for conn := range entry.conns {
			conns = append(conns, conn)
		}
		entry.mu.Unlock()

		for _, conn := range conns {
			cm.Unregister(conn, key.(string))
		}
		return true
	})
}

// enqueue hands message to the write pump without blocking.
// It reports false if the connection is closed or its buffer is full.
func (c *Connection) enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// closeSend stops the write pump; it is safe to call more than once.
func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// reply sends a unicast frame to this viewer only. Replies to a viewer that
// has already gone are dropped.
func (c *Connection) reply(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal reply")
		return
	}
	if !c.enqueue(data) {
		log.Debug().
			Str("connection_id", c.ID).
			Msg("reply dropped, connection gone")
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.Unregister(c, c.ItemID)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads share clicks from the viewer until the socket closes.
// Frames are handled one at a time, in arrival order.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.Unregister(c, c.ItemID)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes a frame received from the viewer.
func (c *Connection) handleClientMessage(message []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Msg("ignoring malformed client frame")
		return
	}
	if frame.Action != ActionShareClick {
		return
	}
	if c.Manager.handler == nil {
		log.Error().Msg("share received but no share handler is wired")
		return
	}

	// Not derived from the socket: a viewer leaving mid-share must not cancel
	// store writes already under way.
	ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.ShareTimeout)
	defer cancel()

	if _, err := c.Manager.handler.HandleShare(ctx, c.ItemID, frame.UserID); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Str("item_id", c.ItemID).
			Str("user_id", frame.UserID).
			Msg("share rejected")
		c.reply(replyFor(err))
	}
}
