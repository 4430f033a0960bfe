package models

import "time"

// UnknownSenderName replaces a blank sender name before a message is stored.
const UnknownSenderName = "Unknown User"

// Message represents a stored chat message. Messages are never updated after creation.
type Message struct {
	ID         string    `db:"id" json:"_id"`
	Sender     string    `db:"sender" json:"sender"`
	SenderName string    `db:"sender_name" json:"senderName"`
	Receiver   Target    `db:"receiver" json:"receiver"`
	Text       string    `db:"text" json:"text"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// MessageDraft is the caller-supplied part of a message, before the store assigns id and timestamp.
type MessageDraft struct {
	Sender     string
	SenderName string
	Receiver   Target
	Text       string
}

// OutboundMessage is broadcast to every connection joined to Room.
type OutboundMessage struct {
	ID         string    `json:"_id"`
	Text       string    `json:"text"`
	Sender     string    `json:"sender"`
	Receiver   Target    `json:"receiver"`
	SenderName string    `json:"senderName"`
	Room       string    `json:"room"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewOutboundMessage formats a stored message for the given room.
func NewOutboundMessage(msg Message, room string) OutboundMessage {
	return OutboundMessage{
		ID:         msg.ID,
		Text:       msg.Text,
		Sender:     msg.Sender,
		Receiver:   msg.Receiver,
		SenderName: msg.SenderName,
		Room:       room,
		CreatedAt:  msg.CreatedAt,
	}
}

// ConversationSummary pairs a private conversation with its most recent message.
type ConversationSummary struct {
	ConversationKey string    `json:"conversationKey"`
	Participants    [2]string `json:"participants"`
	LastMessage     Message   `json:"lastMessage"`
}

// RoomEvent is the frame exchanged over websocket connections.
type RoomEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}
