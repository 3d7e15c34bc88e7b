package socket

import (
	"encoding/json"
	"net/http"
	"time"

	"markpad/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows us to connect from the Vite dev server
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	// ID is assigned per socket; it is unique among open connections but
	// may repeat across process restarts.
	ID   string
	Send chan []byte

	// Initial values from the connect query; the registry is
	// authoritative once the connection is registered.
	username   string
	documentID string
}

func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		username = DefaultUsername
	}

	client := &Client{
		Hub:        hub,
		Conn:       conn,
		ID:         uuid.NewString(),
		Send:       make(chan []byte, 256),
		username:   username,
		documentID: r.URL.Query().Get("documentId"),
	}

	client.Hub.Register <- client

	// Start reading and writing in separate goroutines
	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(rawMessage, &env); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message from %s: %v", c.ID, err)
			c.sendError("invalid message frame")
			continue
		}

		c.Hub.inbound <- inboundFrame{client: c, env: env}
	}
}

// sendError pushes a best-effort error event directly onto the send queue.
func (c *Client) sendError(msg string) {
	payload, err := encodeEvent(EventError, ErrorPayload{Error: msg})
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second) // Send ping every 30s
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				// The hub closed the channel on unregister.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)
		// A ticker sends a 'ping' message every 30 seconds to keep the connection alive and detect if it has dropped.
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}
