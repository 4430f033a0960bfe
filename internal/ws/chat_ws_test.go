package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/auth"
	"chat-backend/internal/models"
	"chat-backend/internal/pipeline"
	"chat-backend/internal/repositories"
)

const testSecret = "test-secret"

type liveServer struct {
	hub    *Hub
	repo   *repositories.MemoryMessageRepo
	server *httptest.Server
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	repo := repositories.NewMemoryMessageRepo()
	p := pipeline.New(repo, hub, nil, nil)
	handler := NewChatWebSocketHandler(hub, p, auth.NewJWTVerifier(testSecret), nil, 16)

	router := gin.New()
	router.GET("/ws", handler.Handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &liveServer{hub: hub, repo: repo, server: server}
}

func (s *liveServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := auth.IssueToken(testSecret, auth.Identity{UserID: userID, Name: userID}, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(inboundFrame{Event: event, Data: raw}))
}

func readEvent(t *testing.T, conn *websocket.Conn) models.RoomEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt models.RoomEvent
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	s := newLiveServer(t)

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketAcceptsTokenQueryParam(t *testing.T) {
	s := newLiveServer(t)
	token, err := auth.IssueToken(testSecret, auth.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.Close()
}

func TestWebSocketFanOutIsScopedToRoom(t *testing.T) {
	s := newLiveServer(t)
	a := s.dial(t, "u1")
	b := s.dial(t, "u2")
	c := s.dial(t, "u3")

	send(t, a, EventJoinRoom, "u1_u2")
	send(t, b, EventJoinRoom, "u1_u2")
	send(t, c, EventJoinRoom, "other")
	require.Eventually(t, func() bool {
		return s.hub.Members("u1_u2") == 2 && s.hub.Members("other") == 1
	}, 2*time.Second, 10*time.Millisecond)

	send(t, a, EventSendMessage, pipeline.InboundEvent{Sender: "u1", Receiver: "u2", Text: "hi", Room: "u1_u2"})

	for _, conn := range []*websocket.Conn{a, b} {
		evt := readEvent(t, conn)
		assert.Equal(t, EventMessage, evt.Event)
		data, ok := evt.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "hi", data["text"])
		assert.Equal(t, "u1_u2", data["room"])
		assert.Equal(t, models.UnknownSenderName, data["senderName"])
		assert.NotEmpty(t, data["_id"])
	}

	require.NoError(t, c.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := c.ReadMessage()
	assert.Error(t, err, "client outside the room must not receive the message")

	stored, err := s.repo.PrivateMessages(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestWebSocketInvalidSendIsDroppedSilently(t *testing.T) {
	s := newLiveServer(t)
	a := s.dial(t, "u1")
	send(t, a, EventJoinRoom, "r1")
	require.Eventually(t, func() bool { return s.hub.Members("r1") == 1 }, 2*time.Second, 10*time.Millisecond)

	send(t, a, EventSendMessage, pipeline.InboundEvent{Sender: "u1", Room: "r1"})
	send(t, a, EventSendMessage, pipeline.InboundEvent{Sender: "u1", Receiver: "u2", Text: "ok", Room: "r1"})

	evt := readEvent(t, a)
	data := evt.Data.(map[string]any)
	assert.Equal(t, "ok", data["text"])
}

func TestWebSocketDisconnectLeavesRooms(t *testing.T) {
	s := newLiveServer(t)
	a := s.dial(t, "u1")
	send(t, a, EventJoinRoom, "r1")
	send(t, a, EventJoinRoom, "r2")
	require.Eventually(t, func() bool { return s.hub.RoomCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	require.Eventually(t, func() bool { return s.hub.RoomCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
