package websocket

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

// Hub owns the authoritative mapping of room name to live connections
// and delivers composed events to exactly the rooms they address. It is
// constructed explicitly and injected; there is no package-level
// instance.
type Hub struct {
	// clients maps user IDs to their active connections.
	// A single user can have multiple connections (multiple tabs/devices).
	clients map[uuid.UUID]map[*Client]bool

	// rooms maps room names (project:<id>, user:<id>) to joined clients.
	rooms map[string]map[*Client]bool

	// broadcast receives composed events from the observer pipeline.
	broadcast chan domain.Event

	// Register requests from clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// authorizer is consulted before any join is honored.
	authorizer ports.JoinAuthorizer

	// mu protects the clients and rooms maps.
	mu sync.RWMutex

	logger *slog.Logger
}

// Ensure Hub implements the EventBroadcaster interface.
var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub.
func NewHub(authorizer ports.JoinAuthorizer, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan domain.Event, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		authorizer: authorizer,
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Broadcast queues an event for delivery to its rooms. Delivery is
// best-effort: if the hub's queue is full the event is dropped and the
// client-side re-fetch on rejoin bounds the resulting staleness.
// This method implements the ports.EventBroadcaster interface.
func (h *Hub) Broadcast(event domain.Event) error {
	select {
	case h.broadcast <- event:
		return nil
	default:
		h.logger.Warn("broadcast channel full, dropping event",
			"event_name", event.EventName(),
			"rooms", event.Rooms(),
		)
		return nil
	}
}

// Run starts the hub's event loop. This MUST be run as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// registerClient adds a client to the hub.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true

	h.logger.Info("client registered",
		"user_id", client.UserID,
		"total_connections", len(h.clients[client.UserID]),
	)
}

// unregisterClient removes the client from the hub and from every room
// it had joined. After this returns no further event can be delivered
// to the connection.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := client.JoinedRooms()

	if userClients, ok := h.clients[client.UserID]; ok {
		if _, exists := userClients[client]; exists {
			delete(userClients, client)
			if len(userClients) == 0 {
				delete(h.clients, client.UserID)
			}
		}
	}

	for _, room := range rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}

	client.CloseSend()

	h.logger.Info("client unregistered",
		"user_id", client.UserID,
		"rooms_left", len(rooms),
	)
}

// broadcastEvent delivers an event to every connection in its rooms.
// A connection joined to both the project room and a user room targeted
// by the same event receives it once.
func (h *Hub) broadcastEvent(event domain.Event) {
	rooms := event.Rooms()

	h.mu.RLock()
	seen := make(map[*Client]bool)
	clients := make([]*Client, 0)
	for _, room := range rooms {
		for client := range h.rooms[room] {
			if !seen[client] {
				seen[client] = true
				clients = append(clients, client)
			}
		}
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	h.logger.Debug("broadcasting event",
		"event_name", event.EventName(),
		"rooms", rooms,
		"client_count", len(clients),
	)

	msg := WireMessage{Event: event.EventName(), Payload: event}
	for _, client := range clients {
		select {
		case client.Send <- msg:
			// Successfully queued.
		default:
			// Client's send buffer is full; a stalled connection must
			// not stall delivery to others. Drop the connection.
			// Unregister runs inline: this is the Run goroutine, so
			// posting to the Unregister channel would deadlock.
			h.logger.Warn("client send buffer full, unregistering",
				"user_id", client.UserID,
			)
			h.unregisterClient(client)
		}
	}
}

// joinRoom adds a client to a room after the authorizer approves.
// Joining is idempotent.
func (h *Hub) joinRoom(client *Client, room string) bool {
	allowed, err := h.authorizer.AuthorizeJoin(client.ctx, client.UserID, room)
	if err != nil {
		h.logger.Error("join authorization check failed",
			"user_id", client.UserID,
			"room", room,
			"error", err,
		)
		return false
	}
	if !allowed {
		h.logger.Warn("join denied",
			"user_id", client.UserID,
			"room", room,
		)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.addRoom(room)

	h.logger.Debug("client joined room",
		"user_id", client.UserID,
		"room", room,
	)
	return true
}

// leaveRoom removes a client from a room. Leaving is idempotent; a
// leave for a never-joined room is a no-op.
func (h *Hub) leaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.removeRoom(room)

	h.logger.Debug("client left room",
		"user_id", client.UserID,
		"room", room,
	)
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, userClients := range h.clients {
		count += len(userClients)
	}
	return count
}

// RoomCount returns the number of active rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ClientsInRoom returns the number of clients joined to a room.
func (h *Hub) ClientsInRoom(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// IsUserConnected checks if a user has any active connections.
func (h *Hub) IsUserConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.clients[userID]
	return ok && len(clients) > 0
}
