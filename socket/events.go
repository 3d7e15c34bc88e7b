package socket

import "encoding/json"

const (
	// Inbound, sent by clients.
	EventJoinDocument  = "join-document"
	EventLeaveDocument = "leave-document"

	// Outbound, sent by the hub.
	EventConnected       = "connected"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventDocumentUpdated = "document_updated"
	EventError           = "error"
	EventConnectError    = "connect_error"
)

// DefaultUsername labels connections that never identify themselves.
const DefaultUsername = "Anonymous"

// Envelope is the wire frame: one JSON object per websocket text message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type JoinPayload struct {
	DocumentID string `json:"documentId"`
	Username   string `json:"username"`
}

type LeavePayload struct {
	DocumentID string `json:"documentId"`
	Username   string `json:"username"`
}

type ConnectedPayload struct {
	Message string `json:"message"`
}

type UserJoinedPayload struct {
	Users   []string `json:"users"`
	NewUser string   `json:"newUser"`
}

type UserLeftPayload struct {
	Users    []string `json:"users"`
	LeftUser string   `json:"leftUser"`
}

type DocumentUpdatedPayload struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// Event is a broadcast request addressed to a document's room.
type Event struct {
	DocumentID string
	Name       string
	Data       any
	// Exclude skips one connection id, typically the sender.
	Exclude string
}

func encodeEvent(name string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: raw})
}
