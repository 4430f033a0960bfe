package ws

import (
	"time"

	"chat-backend/internal/auth"
	"chat-backend/internal/observability"
)

// ConnInfo describes one authenticated live connection.
type ConnInfo struct {
	ConnID string
	auth.Identity
	observability.ClientMeta
	TraceID     string
	ConnectedAt time.Time
}

// Lifetime is how long the connection has been open.
func (i ConnInfo) Lifetime() time.Duration {
	return time.Since(i.ConnectedAt)
}
