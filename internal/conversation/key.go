// Package conversation derives order-independent identities for two-party conversations.
//
// Identifiers are ordered byte-wise (Go string comparison), so keys are stable across
// processes and match the "C" collation used by the Postgres store.
package conversation

import "chat-backend/internal/models"

// GroupRoom is the room every group-channel message is broadcast to.
const GroupRoom = "group"

// Separator joins the two participants of a key.
const Separator = "_"

// Participants returns the pair in canonical order.
func Participants(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Key returns the canonical conversation key for a and b. Key(a, b) == Key(b, a).
func Key(a, b string) string {
	lo, hi := Participants(a, b)
	return lo + Separator + hi
}

// RoomFor returns the room a message from sender to target is broadcast to.
func RoomFor(sender string, target models.Target) string {
	if target.IsGroup() {
		return GroupRoom
	}
	return Key(sender, target.UserID())
}
