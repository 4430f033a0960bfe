package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-backend/internal/auth"
	"chat-backend/internal/middleware"
	"chat-backend/internal/observability"
	"chat-backend/internal/pipeline"
)

// EventHandler consumes sendMessage events. The outcome is never reported back to the sender.
type EventHandler interface {
	HandleEvent(ctx context.Context, evt pipeline.InboundEvent) pipeline.Outcome
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChatWebSocketHandler serves the live room endpoint.
type ChatWebSocketHandler struct {
	hub        *Hub
	events     EventHandler
	verifier   auth.Verifier
	upgrader   websocket.Upgrader
	sendBuffer int
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, events EventHandler, verifier auth.Verifier, allowedOrigins []string, sendBuffer int) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{
		hub:        hub,
		events:     events,
		verifier:   verifier,
		upgrader:   websocket.Upgrader{CheckOrigin: checkOrigin(allowedOrigins)},
		sendBuffer: sendBuffer,
	}
}

// Handle authenticates, upgrades the connection and starts its reader and writer.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-backend/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	identity, err := h.verifier.Verify(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	var traceID string
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		Identity:    identity,
		ClientMeta:  observability.ClientMetaFromRequest(c.Request, c.GetString(middleware.RequestIDKey)),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, info, h.sendBuffer)

	// The request context ends when Handle returns; the connection outlives it.
	connCtx := context.WithoutCancel(ctx)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publish(connCtx, info, observability.WSEvent{Event: "ws_connect"})
	log.Printf("websocket connected conn_id=%s user_id=%s", info.ConnID, info.UserID)

	go func() {
		if err := client.writePump(); err != nil {
			log.Printf("websocket write error conn_id=%s: %v", info.ConnID, err)
		}
	}()
	go h.readLoop(connCtx, client)
}

func (h *ChatWebSocketHandler) readLoop(ctx context.Context, client *Client) {
	conn := client.conn
	info := client.info
	var closeReason string
	defer func() {
		rooms := h.hub.LeaveAll(client)
		client.Close()
		conn.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publish(ctx, info, observability.WSEvent{
			Event:      "ws_disconnect",
			DurationMS: info.Lifetime().Milliseconds(),
			Reason:     closeReason,
		})
		log.Printf("websocket disconnected conn_id=%s user_id=%s rooms=%v", info.ConnID, info.UserID, rooms)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publish(ctx, info, observability.WSEvent{
					Event:      "ws_error",
					DurationMS: info.Lifetime().Milliseconds(),
					Reason:     closeReason,
				})
			}
			return
		}
		h.dispatch(ctx, client, data)
	}
}

func (h *ChatWebSocketHandler) dispatch(ctx context.Context, client *Client, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("websocket bad frame conn_id=%s: %v", client.ID(), err)
		observability.IncWSEvent("ws_bad_frame")
		return
	}

	switch frame.Event {
	case EventJoinRoom:
		var room string
		if err := json.Unmarshal(frame.Data, &room); err != nil || room == "" {
			log.Printf("websocket joinRoom ignored conn_id=%s: empty or invalid room", client.ID())
			return
		}
		if h.hub.Join(client, room) {
			log.Printf("websocket joined conn_id=%s room=%s", client.ID(), room)
			observability.IncWSEvent("ws_join")
			h.publish(ctx, client.info, observability.WSEvent{Event: "ws_join", Room: room})
		}
	case EventSendMessage:
		var evt pipeline.InboundEvent
		if err := json.Unmarshal(frame.Data, &evt); err != nil {
			log.Printf("websocket sendMessage ignored conn_id=%s: %v", client.ID(), err)
			return
		}
		h.events.HandleEvent(ctx, evt)
	default:
		log.Printf("websocket unknown event conn_id=%s event=%q", client.ID(), frame.Event)
	}
}

func (h *ChatWebSocketHandler) publish(ctx context.Context, info ConnInfo, evt observability.WSEvent) {
	evt.ConnID = info.ConnID
	evt.UserID = info.UserID
	evt.DeviceID = info.DeviceID
	evt.IP = info.IP
	_ = observability.PublishEvent(ctx, observability.RoutingKeyWSEvents, evt.Envelope(),
		observability.BuildHeaders(info.RequestID, info.TraceID))
}
