package observability

const (
	RoutingKeyWSEvents       = "ws_events.rooms"
	RoutingKeyMessageCreated = "chat_events.message_created"
)

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSEvent describes a websocket lifecycle event for a single connection.
type WSEvent struct {
	Event      string
	ConnID     string
	Room       string
	DurationMS int64
	Reason     string
	UserID     string
	DeviceID   string
	IP         string
}

// Envelope wraps the event in the ws_events envelope.
func (e WSEvent) Envelope() EventEnvelope {
	return EventEnvelope{
		EventType: "ws_events",
		EventName: e.Event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "room",
				"room":        e.Room,
				"event":       e.Event,
				"conn_id":     e.ConnID,
				"duration_ms": e.DurationMS,
				"reason":      e.Reason,
			},
			"identity": map[string]interface{}{
				"user_id":   e.UserID,
				"device_id": e.DeviceID,
				"ip":        e.IP,
			},
		},
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
