package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCatchupQuerier implements CatchupQuerier for tests.
type mockCatchupQuerier struct {
	events []LogEvent
}

func (m *mockCatchupQuerier) Since(_ string, sinceID uint64, limit int) []LogEvent {
	var out []LogEvent
	for _, e := range m.events {
		if e.ID > sinceID {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func setupTestManager(t *testing.T, querier CatchupQuerier) (*ConnectionManager, *httptest.Server) {
	t.Helper()

	manager := NewConnectionManager(querier, 5*time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			t.Logf("WebSocket accept error: %v", err)
			return
		}
		manager.HandleConnection(r.Context(), conn)
	}))

	t.Cleanup(func() { server.Close() })
	return manager, server
}

func connectWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func waitForSubscribers(t *testing.T, m *ConnectionManager, channel string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.subscriberCount(channel) == n
	}, 5*time.Second, 10*time.Millisecond)
}

func TestConnectionManager_ConnectionEstablished(t *testing.T) {
	manager, server := setupTestManager(t, nil)
	conn := connectWS(t, server)

	msg := readJSON(t, conn)
	assert.Equal(t, "connection.established", msg["type"])
	assert.NotEmpty(t, msg["connection_id"])

	waitForSubscribers(t, manager, GlobalChannel, 1)
	assert.Equal(t, 1, manager.ActiveConnections())
}

func TestConnectionManager_DeliverToGlobalAndSession(t *testing.T) {
	manager, server := setupTestManager(t, nil)

	global := connectWS(t, server)
	scoped := connectWS(t, server)
	readJSON(t, global)
	readJSON(t, scoped)

	writeJSON(t, scoped, ClientMessage{Action: "subscribe", Channel: SessionChannel("s-1")})
	confirm := readJSON(t, scoped)
	assert.Equal(t, "subscription.confirmed", confirm["type"])
	waitForSubscribers(t, manager, SessionChannel("s-1"), 1)
	waitForSubscribers(t, manager, GlobalChannel, 2)

	manager.Deliver(LogEvent{ID: 7, Kind: KindLog, Type: SourceAI, Message: "hello", Summary: "SQLAgent-R1", SessionID: "s-1"})

	msg := readJSON(t, global)
	assert.Equal(t, "log", msg["event"])
	assert.Equal(t, "ai", msg["type"])
	assert.Equal(t, "hello", msg["message"])
	assert.Equal(t, "SQLAgent-R1", msg["summary"])

	// The scoped client is on both channels and receives the event twice.
	first := readJSON(t, scoped)
	second := readJSON(t, scoped)
	assert.Equal(t, first, second)
}

func TestConnectionManager_Unsubscribe(t *testing.T) {
	manager, server := setupTestManager(t, nil)
	conn := connectWS(t, server)
	readJSON(t, conn)

	ch := SessionChannel("s-2")
	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: ch})
	readJSON(t, conn)
	waitForSubscribers(t, manager, ch, 1)

	writeJSON(t, conn, ClientMessage{Action: "unsubscribe", Channel: ch})
	waitForSubscribers(t, manager, ch, 0)
}

func TestConnectionManager_PingPong(t *testing.T) {
	_, server := setupTestManager(t, nil)
	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: "ping"})

	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestConnectionManager_SubscribeRequiresChannel(t *testing.T) {
	_, server := setupTestManager(t, nil)
	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: "subscribe"})

	msg := readJSON(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestConnectionManager_CatchupOnSubscribe(t *testing.T) {
	querier := &mockCatchupQuerier{events: []LogEvent{
		{ID: 1, Kind: KindLog, Message: "one", SessionID: "s-3"},
		{ID: 2, Kind: KindLog, Message: "two", SessionID: "s-3"},
	}}
	_, server := setupTestManager(t, querier)
	conn := connectWS(t, server)
	readJSON(t, conn)

	lastID := uint64(1)
	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: SessionChannel("s-3"), LastEventID: &lastID})

	assert.Equal(t, "subscription.confirmed", readJSON(t, conn)["type"])
	msg := readJSON(t, conn)
	assert.Equal(t, "two", msg["message"])
}

func TestConnectionManager_CatchupOverflow(t *testing.T) {
	many := make([]LogEvent, catchupLimit+5)
	for i := range many {
		many[i] = LogEvent{ID: uint64(i + 1), Kind: KindLog, Message: "x"}
	}
	_, server := setupTestManager(t, &mockCatchupQuerier{events: many})
	conn := connectWS(t, server)
	readJSON(t, conn)

	zero := uint64(0)
	writeJSON(t, conn, ClientMessage{Action: "catchup", Channel: GlobalChannel, LastEventID: &zero})

	for i := 0; i < catchupLimit; i++ {
		msg := readJSON(t, conn)
		require.Equal(t, "x", msg["message"])
	}
	overflow := readJSON(t, conn)
	assert.Equal(t, "catchup.overflow", overflow["type"])
	assert.Equal(t, true, overflow["has_more"])
}
