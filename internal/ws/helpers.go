package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	EventJoinRoom    = "joinRoom"
	EventSendMessage = "sendMessage"
	EventMessage     = "message"
)

func newConnID() string {
	return uuid.NewString()
}

// checkOrigin allows requests without an Origin header and origins on the allow list.
// An empty list or "*" allows every origin.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 || lo.Contains(allowed, "*") {
			return true
		}
		return lo.Contains(allowed, origin)
	}
}
