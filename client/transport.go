package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// wireMessage is the server→client envelope.
type wireMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// controlMessage is the client→server room control envelope.
type controlMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type projectRoomPayload struct {
	ProjectID string `json:"projectId"`
}

type userRoomPayload struct {
	UserID string `json:"userId"`
}

// WSTransport is the gorilla/websocket implementation of Transport. It
// owns one connection, decodes wire events onto the Events channel, and
// serializes outbound control writes.
type WSTransport struct {
	conn   *websocket.Conn
	events chan ServerEvent
	logger *slog.Logger

	// writeMu guards concurrent control writes; gorilla allows only
	// one writer at a time.
	writeMu   sync.Mutex
	closeOnce sync.Once
}

var _ Transport = (*WSTransport)(nil)

// Dial connects to the server's websocket endpoint, authenticating with
// the given JWT via query token, and starts the read loop.
func Dial(ctx context.Context, endpoint, token string, logger *slog.Logger) (*WSTransport, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse websocket endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	t := &WSTransport{
		conn:   conn,
		events: make(chan ServerEvent, 64),
		logger: logger.With("component", "ws_transport"),
	}
	go t.readLoop()
	return t, nil
}

// Events returns the decoded server event stream. The channel closes
// when the connection dies; the reconciler recovers by rejoining.
func (t *WSTransport) Events() <-chan ServerEvent {
	return t.events
}

func (t *WSTransport) readLoop() {
	defer close(t.events)
	for {
		var msg wireMessage
		if err := t.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		event, err := decodeEvent(msg)
		if err != nil {
			t.logger.Warn("undecodable event", "event", msg.Event, "error", err)
			continue
		}
		t.events <- event
	}
}

// decodeEvent maps a wire envelope onto the closed event payload set.
// "task_updated" carries either a task payload or, when tagged with
// type "group", a list-group payload.
func decodeEvent(msg wireMessage) (ServerEvent, error) {
	event := ServerEvent{Name: msg.Event}

	switch msg.Event {
	case "task_updated":
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg.Payload, &probe); err != nil {
			return event, fmt.Errorf("probe payload: %w", err)
		}
		if probe.Type == "group" {
			var payload GroupPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return event, fmt.Errorf("decode group payload: %w", err)
			}
			event.Group = &payload
			return event, nil
		}
		var payload TaskPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return event, fmt.Errorf("decode task payload: %w", err)
		}
		event.Task = &payload
		return event, nil

	case "project_updated":
		var payload ProjectPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return event, fmt.Errorf("decode project payload: %w", err)
		}
		event.Project = &payload
		return event, nil

	default:
		return event, fmt.Errorf("unknown event %q", msg.Event)
	}
}

func (t *WSTransport) writeControl(msg controlMessage) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(msg)
}

// JoinProject subscribes to a project room.
func (t *WSTransport) JoinProject(projectID string) error {
	return t.writeControl(controlMessage{
		Type:    "join_project",
		Payload: projectRoomPayload{ProjectID: projectID},
	})
}

// LeaveProject unsubscribes from a project room.
func (t *WSTransport) LeaveProject(projectID string) error {
	return t.writeControl(controlMessage{
		Type:    "leave_project",
		Payload: projectRoomPayload{ProjectID: projectID},
	})
}

// JoinUser subscribes to a user's assigned-task room.
func (t *WSTransport) JoinUser(userID string) error {
	return t.writeControl(controlMessage{
		Type:    "join_user",
		Payload: userRoomPayload{UserID: userID},
	})
}

// LeaveUser unsubscribes from a user's assigned-task room.
func (t *WSTransport) LeaveUser(userID string) error {
	return t.writeControl(controlMessage{
		Type:    "leave_user",
		Payload: userRoomPayload{UserID: userID},
	})
}

// Close tears down the connection.
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}
