package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// Outbound buffer per connection. When it fills the hub drops the
	// connection rather than queue without bound.
	sendBufferSize = 256
)

// WireMessage is the server-to-client envelope.
type WireMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Client is a middleman between one websocket connection and the hub.
// It owns the set of rooms the connection has joined.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan WireMessage

	// User ID for this client.
	UserID uuid.UUID

	// rooms holds the names of joined rooms.
	rooms map[string]bool

	// ctx scopes authorization checks to the connection's lifetime.
	ctx context.Context

	// closeOnce ensures the Send channel is only closed once.
	closeOnce sync.Once

	// mu protects the rooms map.
	mu sync.RWMutex

	logger *slog.Logger
}

// NewClient creates a new WebSocket client.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, userID uuid.UUID, logger *slog.Logger) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan WireMessage, sendBufferSize),
		UserID: userID,
		rooms:  make(map[string]bool),
		ctx:    ctx,
		logger: logger.With("user_id", userID.String()),
	}
}

// CloseSend safely closes the Send channel exactly once.
func (c *Client) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = true
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

// InRoom checks if the client has joined a room.
func (c *Client) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[room]
}

// JoinedRooms returns a copy of the joined room names.
func (c *Client) JoinedRooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// ReadPump pumps messages from the websocket connection to the hub.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleControlMessage(message)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.writeJSON(msg); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// writeJSON writes a JSON message to the websocket connection.
func (c *Client) writeJSON(msg WireMessage) error {
	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(w).Encode(msg); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// --- Control Message Handling ---

// ControlMessage is the structure for messages sent from the client.
type ControlMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ProjectRoomPayload is the payload for join_project/leave_project.
type ProjectRoomPayload struct {
	ProjectID uuid.UUID `json:"projectId"`
}

// UserRoomPayload is the payload for join_user/leave_user.
type UserRoomPayload struct {
	UserID uuid.UUID `json:"userId"`
}

// handleControlMessage processes room membership requests from the
// client. Room names are derived server-side from the declared IDs;
// clients never name rooms directly.
func (c *Client) handleControlMessage(message []byte) {
	var msg ControlMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal control message", "error", err)
		return
	}

	switch msg.Type {
	case "join_project":
		if projectID, ok := c.projectID(msg.Payload); ok {
			c.Hub.joinRoom(c, domain.ProjectRoom(projectID))
		}

	case "leave_project":
		if projectID, ok := c.projectID(msg.Payload); ok {
			c.Hub.leaveRoom(c, domain.ProjectRoom(projectID))
		}

	case "join_user":
		if userID, ok := c.userID(msg.Payload); ok {
			c.Hub.joinRoom(c, domain.UserRoom(userID))
		}

	case "leave_user":
		if userID, ok := c.userID(msg.Payload); ok {
			c.Hub.leaveRoom(c, domain.UserRoom(userID))
		}

	case "ping":
		// Client-side keep-alive, respond with pong.
		c.sendPong()

	default:
		c.logger.Debug("received unknown control message type", "type", msg.Type)
	}
}

func (c *Client) projectID(payload json.RawMessage) (uuid.UUID, bool) {
	var p ProjectRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal project room payload", "error", err)
		return uuid.Nil, false
	}
	if p.ProjectID == uuid.Nil {
		c.logger.Warn("missing project ID in room request")
		return uuid.Nil, false
	}
	return p.ProjectID, true
}

func (c *Client) userID(payload json.RawMessage) (uuid.UUID, bool) {
	var p UserRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal user room payload", "error", err)
		return uuid.Nil, false
	}
	if p.UserID == uuid.Nil {
		c.logger.Warn("missing user ID in room request")
		return uuid.Nil, false
	}
	return p.UserID, true
}

func (c *Client) sendPong() {
	select {
	case c.Send <- WireMessage{Event: "pong"}:
	default:
		// Channel full, skip pong response.
	}
}
