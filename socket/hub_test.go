package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"markpad/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// Helper to read one event from a WebSocket connection with a timeout.
func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	var env Envelope
	// Set a deadline to avoid tests hanging forever.
	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read event from WebSocket")
	err = json.Unmarshal(p, &env)
	require.NoError(t, err, "Failed to unmarshal event envelope")
	return env
}

func decodeData(t *testing.T, env Envelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func sendEvent(t *testing.T, conn *websocket.Conn, name string, data any) {
	t.Helper()
	payload, err := encodeEvent(name, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func dial(t *testing.T, wsURL, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?"+query, nil)
	require.NoError(t, err, "Failed to connect")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubIntegration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer server.Close()

	// Convert http:// to ws://
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	// --- Alice connects and joins doc-1 ---
	conn1 := dial(t, wsURL, "username=alice")
	env := readEvent(t, conn1)
	assert.Equal(t, EventConnected, env.Event)
	var connected ConnectedPayload
	decodeData(t, env, &connected)
	assert.Equal(t, "connected", connected.Message)

	sendEvent(t, conn1, EventJoinDocument, JoinPayload{DocumentID: "doc-1", Username: "alice"})
	env = readEvent(t, conn1)
	require.Equal(t, EventUserJoined, env.Event)
	var joined UserJoinedPayload
	decodeData(t, env, &joined)
	assert.Equal(t, []string{"alice"}, joined.Users)
	assert.Equal(t, "alice", joined.NewUser)

	// --- Bob joins the same room; both see the full user list ---
	conn2 := dial(t, wsURL, "username=bob")
	require.Equal(t, EventConnected, readEvent(t, conn2).Event)

	sendEvent(t, conn2, EventJoinDocument, JoinPayload{DocumentID: "doc-1", Username: "bob"})
	for _, conn := range []*websocket.Conn{conn1, conn2} {
		env = readEvent(t, conn)
		require.Equal(t, EventUserJoined, env.Event)
		decodeData(t, env, &joined)
		assert.Equal(t, []string{"alice", "bob"}, joined.Users)
		assert.Equal(t, "bob", joined.NewUser)
	}

	// --- Carol sits in a different room ---
	conn3 := dial(t, wsURL, "username=carol")
	require.Equal(t, EventConnected, readEvent(t, conn3).Event)
	sendEvent(t, conn3, EventJoinDocument, JoinPayload{DocumentID: "doc-2", Username: "carol"})
	env = readEvent(t, conn3)
	require.Equal(t, EventUserJoined, env.Event)
	decodeData(t, env, &joined)
	assert.Equal(t, []string{"carol"}, joined.Users)

	// --- A broken frame earns alice an error event, nothing more ---
	require.NoError(t, conn1.WriteMessage(websocket.TextMessage, []byte("{not json")))
	env = readEvent(t, conn1)
	assert.Equal(t, EventError, env.Event)

	// --- Unknown events are answered, not fatal ---
	sendEvent(t, conn1, "no-such-event", map[string]string{})
	env = readEvent(t, conn1)
	assert.Equal(t, EventError, env.Event)

	// --- Voluntary leave is advisory: presence is untouched ---
	sendEvent(t, conn1, EventLeaveDocument, LeavePayload{DocumentID: "doc-1", Username: "alice"})

	// --- Bob disconnects; alice gets user-left, carol gets nothing ---
	conn2.Close()
	env = readEvent(t, conn1)
	require.Equal(t, EventUserLeft, env.Event)
	var left UserLeftPayload
	decodeData(t, env, &left)
	assert.Equal(t, []string{"alice"}, left.Users)
	assert.Equal(t, "bob", left.LeftUser)

	// --- An HTTP-path update reaches the room through the same dispatcher ---
	hub.Broadcast <- Event{
		DocumentID: "doc-1",
		Name:       EventDocumentUpdated,
		Data:       DocumentUpdatedPayload{DocumentID: "doc-1", Content: "# hi", Timestamp: time.Now().Format(time.RFC3339)},
	}
	env = readEvent(t, conn1)
	require.Equal(t, EventDocumentUpdated, env.Event)
	var updated DocumentUpdatedPayload
	decodeData(t, env, &updated)
	assert.Equal(t, "doc-1", updated.DocumentID)
	assert.Equal(t, "# hi", updated.Content)

	// --- Carol's session was never disturbed by any of the above: the
	// next event she receives is her own re-join, not leaked doc-1 traffic ---
	sendEvent(t, conn3, EventJoinDocument, JoinPayload{DocumentID: "doc-2", Username: "carol"})
	env = readEvent(t, conn3)
	require.Equal(t, EventUserJoined, env.Event)
	decodeData(t, env, &joined)
	assert.Equal(t, []string{"carol"}, joined.Users)
}

func TestHubJoinDefaultsUsername(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn := dial(t, wsURL, "")
	require.Equal(t, EventConnected, readEvent(t, conn).Event)

	sendEvent(t, conn, EventJoinDocument, JoinPayload{DocumentID: "doc-1"})
	env := readEvent(t, conn)
	require.Equal(t, EventUserJoined, env.Event)
	var joined UserJoinedPayload
	decodeData(t, env, &joined)
	assert.Equal(t, []string{DefaultUsername}, joined.Users)
	assert.Equal(t, DefaultUsername, joined.NewUser)
}

func TestHubJoinRequiresDocumentID(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn := dial(t, wsURL, "username=alice")
	require.Equal(t, EventConnected, readEvent(t, conn).Event)

	sendEvent(t, conn, EventJoinDocument, JoinPayload{Username: "alice"})
	env := readEvent(t, conn)
	assert.Equal(t, EventError, env.Event)
}

func TestHubConnectQueryParams(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	// documentId in the connect query pre-associates the connection.
	conn := dial(t, wsURL, "documentId=doc-9&username=dana")
	require.Equal(t, EventConnected, readEvent(t, conn).Event)

	require.Eventually(t, func() bool {
		users := hub.Registry().UsernamesIn("doc-9")
		return len(users) == 1 && users[0] == "dana"
	}, time.Second, 10*time.Millisecond)
}
