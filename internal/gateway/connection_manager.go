package gateway

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
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrAlreadyConnected is returned when a player identity already has a
// live connection; each player gets at most one.
var ErrAlreadyConnected = errors.New("player already connected")

// Session binds one live connection to exactly one room and player for
// the connection's lifetime.
type Session struct {
	ConnID     string
	RoomID     string
	PlayerID   string
	PlayerName string
}

// Dispatcher receives inbound session events. The coordinator
// implements it.
type Dispatcher interface {
	HandleConnect(ctx context.Context, sess Session)
	HandleEvent(ctx context.Context, sess Session, env Envelope)
	HandleDisconnect(ctx context.Context, sess Session)
}

// Broadcaster is the abstract emit-to-room / emit-to-connection
// primitive the coordinator talks to.
type Broadcaster interface {
	EmitToRoom(roomID string, event EventType, payload any)
	EmitToOthers(roomID, exceptConnID string, event EventType, payload any)
	EmitToConnection(connID string, event EventType, payload any)
}

// Connection represents one WebSocket client bound to a room seat.
type Connection struct {
	Session Session
	Conn    *websocket.Conn
	Send    chan []byte

	manager *ConnectionManager
	limiter *rate.Limiter

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds WebSocket connection tuning.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool

	// EventsPerSec caps inbound events per connection; liveness pings
	// are exempt. Zero disables limiting.
	EventsPerSec float64
}

// DefaultConnectionConfig returns defaults suitable for small rooms.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		EventsPerSec: 40,
	}
}

type broadcastMessage struct {
	roomID     string
	exceptConn string
	connID     string
	event      EventType
	data       []byte
}

// ConnectionManager owns the per-room connection pools and implements
// Broadcaster on top of them. Admission enforces that the player holds
// a seat in the claimed room and has no other live connection.
type ConnectionManager struct {
	mu        sync.RWMutex
	roomConns map[string]map[*Connection]bool
	byPlayer  map[string]*Connection
	byConnID  map[string]*Connection

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	dispatcher  Dispatcher
	relay       Relay
	broadcastCh chan broadcastMessage
}

// NewConnectionManager creates a manager; the dispatcher is attached
// separately to break the construction cycle with the coordinator.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConns: make(map[string]map[*Connection]bool),
		byPlayer:  make(map[string]*Connection),
		byConnID:  make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 256),
	}
}

// SetDispatcher attaches the inbound event dispatcher.
func (cm *ConnectionManager) SetDispatcher(d Dispatcher) {
	cm.dispatcher = d
}

// SetRelay attaches an optional mirror for room broadcasts.
func (cm *ConnectionManager) SetRelay(r Relay) {
	cm.relay = r
}

// Start processes broadcast messages until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case msg := <-cm.broadcastCh:
			cm.handleBroadcast(msg)
		}
	}
}

// IsPlayerConnected reports whether the player already has a live
// connection. Admission uses this before upgrading; registration
// re-checks under the write lock.
func (cm *ConnectionManager) IsPlayerConnected(playerID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.byPlayer[playerID]
	return ok
}

// Admit upgrades the HTTP request and registers the connection into
// its room pool. The caller has already verified identity and seat
// membership.
func (cm *ConnectionManager) Admit(w http.ResponseWriter, r *http.Request, roomID string, playerID, playerName string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		Session: Session{
			ConnID:     uuid.New().String(),
			RoomID:     roomID,
			PlayerID:   playerID,
			PlayerName: playerName,
		},
		Conn:        conn,
		Send:        make(chan []byte, 64),
		manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}
	if cm.config.EventsPerSec > 0 {
		connection.limiter = rate.NewLimiter(rate.Limit(cm.config.EventsPerSec), int(cm.config.EventsPerSec)*2)
	}

	if err := cm.registerConnection(connection); err != nil {
		conn.Close()
		return err
	}

	go connection.writePump()
	go connection.readPump()

	if cm.dispatcher != nil {
		cm.dispatcher.HandleConnect(context.Background(), connection.Session)
	}

	log.Info().
		Str("connection_id", connection.Session.ConnID).
		Str("player_id", playerID).
		Str("room_id", roomID).
		Msg("connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	// The pre-upgrade duplicate check can race another connect for the
	// same player; the write lock makes this the authoritative one.
	if _, ok := cm.byPlayer[conn.Session.PlayerID]; ok {
		return ErrAlreadyConnected
	}

	if cm.roomConns[conn.Session.RoomID] == nil {
		cm.roomConns[conn.Session.RoomID] = make(map[*Connection]bool)
	}
	cm.roomConns[conn.Session.RoomID][conn] = true
	cm.byPlayer[conn.Session.PlayerID] = conn
	cm.byConnID[conn.Session.ConnID] = conn
	return nil
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conns, ok := cm.roomConns[conn.Session.RoomID]
	if !ok || !conns[conn] {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(cm.roomConns, conn.Session.RoomID)
	}
	delete(cm.byPlayer, conn.Session.PlayerID)
	delete(cm.byConnID, conn.Session.ConnID)
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.Session.ConnID).
		Str("player_id", conn.Session.PlayerID).
		Str("room_id", conn.Session.RoomID).
		Msg("connection unregistered")
}

// EmitToRoom sends an event to every connection in the room.
func (cm *ConnectionManager) EmitToRoom(roomID string, event EventType, payload any) {
	cm.enqueue(broadcastMessage{roomID: roomID, event: event, data: marshalPayload(event, payload)})
}

// EmitToOthers sends an event to every room connection except one.
func (cm *ConnectionManager) EmitToOthers(roomID, exceptConnID string, event EventType, payload any) {
	cm.enqueue(broadcastMessage{roomID: roomID, exceptConn: exceptConnID, event: event, data: marshalPayload(event, payload)})
}

// EmitToConnection sends an event to a single connection.
func (cm *ConnectionManager) EmitToConnection(connID string, event EventType, payload any) {
	cm.enqueue(broadcastMessage{connID: connID, event: event, data: marshalPayload(event, payload)})
}

func marshalPayload(event EventType, payload any) []byte {
	env := Envelope{Type: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("event", string(event)).Msg("failed to marshal event payload")
			return nil
		}
		env.Data = data
	}
	frame, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("failed to marshal event envelope")
		return nil
	}
	return frame
}

func (cm *ConnectionManager) enqueue(msg broadcastMessage) {
	if msg.data == nil {
		return
	}
	select {
	case cm.broadcastCh <- msg:
	default:
		log.Warn().Str("event", string(msg.event)).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(msg broadcastMessage) {
	var targets []*Connection

	cm.mu.RLock()
	if msg.connID != "" {
		if conn, ok := cm.byConnID[msg.connID]; ok {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.roomConns[msg.roomID] {
			if msg.exceptConn != "" && conn.Session.ConnID == msg.exceptConn {
				continue
			}
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.Send <- msg.data:
		default:
			log.Warn().
				Str("connection_id", conn.Session.ConnID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	// Room-wide events are mirrored for external observers.
	if cm.relay != nil && msg.roomID != "" && msg.connID == "" {
		cm.relay.Publish(msg.roomID, msg.event, msg.data)
	}
}

// ConnectionStats summarizes live connection counts per room.
func (cm *ConnectionManager) ConnectionStats() map[string]int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := make(map[string]int, len(cm.roomConns))
	for roomID, conns := range cm.roomConns {
		stats[roomID] = len(conns)
	}
	return stats
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.Session.ConnID).
					Msg("failed to write message")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.manager.unregisterConnection(c)
		c.Conn.Close()
		// The leave protocol runs for every termination cause; a
		// network drop and an explicit close are treated identically.
		if c.manager.dispatcher != nil {
			c.manager.dispatcher.HandleDisconnect(context.Background(), c.Session)
		}
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.Session.ConnID).
					Msg("unexpected close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", c.Session.ConnID).
				Msg("dropping malformed frame")
			continue
		}

		if c.limiter != nil && env.Type != EventPing && !c.limiter.Allow() {
			log.Warn().
				Str("connection_id", c.Session.ConnID).
				Str("event", string(env.Type)).
				Msg("rate limit exceeded, dropping event")
			continue
		}

		if c.manager.dispatcher != nil {
			c.manager.dispatcher.HandleEvent(context.Background(), c.Session, env)
		}
	}
}
