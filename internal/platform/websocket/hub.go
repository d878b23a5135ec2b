// Package websocket pushes theatre and department events to connected clients. It
// implements a hub-and-spoke pattern where every authenticated connection
// joins rooms derived from its role and department, and events are broadcast
// to those rooms. Delivery is at-most-once: clients that reconnect re-fetch
// authoritative state instead of requesting missed events.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
)

// Event represents a real-time notification sent to clients.
type Event struct {
	Type      string          `json:"type"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClientMessage represents an inbound message relayed through the hub.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// departmentMessage is the payload of a department:message relay.
type departmentMessage struct {
	DepartmentID string `json:"department_id"`
	Message      string `json:"message"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single authenticated connection.
type Client struct {
	ID           string
	UserID       string
	Name         string
	Role         string
	DepartmentID string
	Send         chan []byte
	hub          *Hub
	conn         Conn
}

// Rooms returns the broadcast rooms this client belongs to.
func (c *Client) Rooms() []string {
	rooms := []string{RoomAuthenticated, RoleRoom(c.Role)}
	if c.DepartmentID != "" {
		rooms = append(rooms, DepartmentRoom(c.DepartmentID))
	}
	return rooms
}

const RoomAuthenticated = "authenticated"

// RoleRoom names the broadcast room for a staff role.
func RoleRoom(role string) string { return "role:" + role }

// DepartmentRoom names the broadcast room for a department.
func DepartmentRoom(id string) string { return "department:" + id }

// StaffRooms are the rooms that receive theatre events: doctors, nurses and
// admins only.
func StaffRooms() []string {
	return []string{RoleRoom("doctor"), RoleRoom("nurse"), RoleRoom("admin")}
}

// Hub is the central connection manager. All operations are thread-safe via
// sync.RWMutex.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{} // room -> set of clients
	all   map[*Client]struct{}
}

// NewHub creates a Hub ready to manage clients.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		all:   make(map[*Client]struct{}),
	}
}

// Register adds a client to the hub and joins it to its role and department
// rooms.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, room := range client.Rooms() {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]struct{})
		}
		h.rooms[room][client] = struct{}{}
	}
}

// Unregister removes a client from the hub and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, room := range client.Rooms() {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.all, client)
	close(client.Send)
}

// Broadcast sends an event to every client in any of the given rooms. A
// client in several target rooms receives the event once.
func (h *Hub) Broadcast(rooms []string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for _, room := range rooms {
		for client := range h.rooms[room] {
			if _, dup := seen[client]; dup {
				continue
			}
			seen[client] = struct{}{}
			select {
			case client.Send <- data:
			default:
				// Client buffer full; skip to avoid blocking.
			}
		}
	}
}

// BroadcastAll sends an event to every connected client.
func (h *Hub) BroadcastAll(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.all {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// ProcessMessage relays an inbound client message to its audience. Unknown
// events are dropped.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Event {
	case "emergency:alert":
		h.BroadcastAll(Event{Type: "emergency:alert", Sender: client.Name, Timestamp: time.Now(), Data: msg.Data})
	case "department:message":
		var dm departmentMessage
		if err := json.Unmarshal(msg.Data, &dm); err != nil {
			return
		}
		h.Broadcast([]string{DepartmentRoom(dm.DepartmentID)},
			Event{Type: "department:message", Sender: client.Name, Timestamp: time.Now(), Data: msg.Data})
	case "ot:status":
		h.Broadcast(StaffRooms(), Event{Type: "ot:status", Sender: client.Name, Timestamp: time.Now(), Data: msg.Data})
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// RoomCount returns the number of clients in a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ---------------------------------------------------------------------------
// Handler upgrades HTTP requests to WebSocket connections.
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades HTTP connections to WebSocket after validating the same
// JWT credential used by the REST layer.
type Handler struct {
	hub    *Hub
	secret []byte
	logger zerolog.Logger
}

// NewHandler creates a handler bound to the given Hub.
func NewHandler(hub *Hub, secret []byte, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, secret: secret, logger: logger}
}

// RegisterRoutes registers the WebSocket endpoint on the provided Echo group.
func (wh *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", wh.HandleConnect)
}

// HandleConnect authenticates the connection, upgrades it, registers the
// client with the hub, and starts the read/write pumps.
func (wh *Handler) HandleConnect(c echo.Context) error {
	tokenStr := c.QueryParam("token")
	if tokenStr == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	claims, err := auth.ParseToken(tokenStr, wh.secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:           uuid.New().String(),
		UserID:       claims.Subject,
		Name:         claims.Name,
		Role:         claims.Role,
		DepartmentID: claims.DepartmentID,
		Send:         make(chan []byte, 256),
		hub:          wh.hub,
		conn:         &gorillaConnAdapter{ws},
	}

	wh.hub.Register(client)
	wh.logger.Info().
		Str("client_id", client.ID).
		Str("user", client.Name).
		Str("role", client.Role).
		Msg("websocket connected")

	go wh.writePump(client)
	go wh.readPump(client)

	return nil
}

// readPump reads messages from the connection and relays them via the hub.
func (wh *Handler) readPump(client *Client) {
	defer func() {
		wh.hub.Unregister(client)
		client.conn.Close()
		wh.logger.Info().Str("client_id", client.ID).Msg("websocket disconnected")
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}

		wh.hub.ProcessMessage(client, msg)
	}
}

// writePump writes messages from the Send channel to the connection.
func (wh *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
