package socket

import (
	"encoding/json"

	"markpad/pkg/logger"
)

// inboundFrame pairs a decoded wire frame with the connection that sent it.
type inboundFrame struct {
	client *Client
	env    Envelope
}

// Hub owns the presence registry and fans events out to document rooms.
// A single Run goroutine services every register/unregister/inbound/broadcast
// event, so deliveries to a given room happen in submission order. HTTP
// handlers feed their notifications through the same Broadcast channel.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan Event

	inbound  chan inboundFrame
	registry *Registry
	clients  map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Event),
		inbound:    make(chan inboundFrame),
		registry:   NewRegistry(),
		clients:    make(map[string]*Client),
	}
}

// Registry exposes the presence registry for read-side callers.
func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			if err := h.registry.Register(client.ID, client.username, client.documentID); err != nil {
				// Ids are process-local uuids, so this is a programming
				// error rather than a client one. Refuse the connection.
				logger.Sugar.Errorf("Failed to register connection %s: %v", client.ID, err)
				h.emit(client, EventConnectError, ErrorPayload{Error: "connection rejected"})
				client.Conn.Close()
				continue
			}
			h.clients[client.ID] = client
			logger.Sugar.Infof("Connection %s opened (user: %s, document: %s)", client.ID, client.username, client.documentID)
			h.emit(client, EventConnected, ConnectedPayload{Message: "connected"})

		case client := <-h.Unregister:
			if _, ok := h.clients[client.ID]; !ok {
				continue // Already gone, e.g. a rejected registration.
			}
			delete(h.clients, client.ID)
			entry, ok := h.registry.Unregister(client.ID)
			close(client.Send)
			logger.Sugar.Infof("Connection %s closed (user: %s)", client.ID, entry.Username)
			if ok && entry.DocumentID != "" {
				users := h.registry.UsernamesIn(entry.DocumentID)
				h.broadcast(entry.DocumentID, EventUserLeft, UserLeftPayload{
					Users:    users,
					LeftUser: entry.Username,
				}, client.ID)
			}

		case frame := <-h.inbound:
			h.handleInbound(frame)

		case ev := <-h.Broadcast:
			h.broadcast(ev.DocumentID, ev.Name, ev.Data, ev.Exclude)
		}
	}
}

// handleInbound dispatches one client event. Faults are answered with an
// error event to the offending connection only; the loop always survives.
func (h *Hub) handleInbound(frame inboundFrame) {
	switch frame.env.Event {
	case EventJoinDocument:
		var p JoinPayload
		if err := json.Unmarshal(frame.env.Data, &p); err != nil {
			logger.Sugar.Errorf("Invalid join-document payload from %s: %v", frame.client.ID, err)
			h.emit(frame.client, EventError, ErrorPayload{Error: "invalid join-document payload"})
			return
		}
		if p.DocumentID == "" {
			h.emit(frame.client, EventError, ErrorPayload{Error: "documentId is required"})
			return
		}
		if p.Username == "" {
			p.Username = DefaultUsername
		}
		if err := h.registry.Join(frame.client.ID, p.DocumentID, p.Username); err != nil {
			// Tolerate joins from connections we no longer track.
			logger.Sugar.Warnf("Ignoring join from unknown connection %s: %v", frame.client.ID, err)
			return
		}
		logger.Sugar.Infof("User %s joined document %s", p.Username, p.DocumentID)
		users := h.registry.UsernamesIn(p.DocumentID)
		h.broadcast(p.DocumentID, EventUserJoined, UserJoinedPayload{
			Users:   users,
			NewUser: p.Username,
		}, "")

	case EventLeaveDocument:
		var p LeavePayload
		if err := json.Unmarshal(frame.env.Data, &p); err != nil {
			logger.Sugar.Errorf("Invalid leave-document payload from %s: %v", frame.client.ID, err)
			h.emit(frame.client, EventError, ErrorPayload{Error: "invalid leave-document payload"})
			return
		}
		// Voluntary leave is advisory only. Presence cleanup happens on
		// disconnect, which follows almost immediately in practice.
		logger.Sugar.Infof("User %s leaving document %s", p.Username, p.DocumentID)

	default:
		logger.Sugar.Warnf("Unknown event %q from %s", frame.env.Event, frame.client.ID)
		h.emit(frame.client, EventError, ErrorPayload{Error: "unknown event: " + frame.env.Event})
	}
}

// broadcast delivers an event to every connection in the document's room,
// except exclude. Delivery is fire-and-forget: a lagging or half-closed
// client is skipped rather than allowed to stall the dispatcher.
func (h *Hub) broadcast(documentID, name string, data any, exclude string) {
	payload, err := encodeEvent(name, data)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s broadcast: %v", name, err)
		return
	}

	for _, connID := range h.registry.ConnectionsIn(documentID) {
		if connID == exclude {
			continue
		}
		client, ok := h.clients[connID]
		if !ok {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			// Don't unregister here, just log. The pumps will handle
			// unresponsive clients.
			logger.Sugar.Warnf("Connection %s's send buffer was full during %s broadcast.", connID, name)
		}
	}
}

// emit sends one event to a single connection.
func (h *Hub) emit(client *Client, name string, data any) {
	payload, err := encodeEvent(name, data)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s event: %v", name, err)
		return
	}
	select {
	case client.Send <- payload:
	default:
		logger.Sugar.Warnf("Connection %s's send buffer was full during %s emit.", client.ID, name)
	}
}
