package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"chat-backend/internal/history"
	"chat-backend/internal/middleware"
	"chat-backend/internal/models"
	"chat-backend/internal/pipeline"
	"chat-backend/internal/repositories"
)

// MessagePublisher persists a posted message and fans it out to its room.
type MessagePublisher interface {
	Publish(ctx context.Context, post pipeline.Post) pipeline.Outcome
}

// ChatHandler serves the message history and posting endpoints.
type ChatHandler struct {
	history   *history.Service
	publisher MessagePublisher
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(history *history.Service, publisher MessagePublisher) *ChatHandler {
	return &ChatHandler{
		history:   history,
		publisher: publisher,
	}
}

type postMessageRequest struct {
	Sender     string        `json:"sender"`
	User       string        `json:"user"`
	SenderName string        `json:"senderName"`
	Receiver   models.Target `json:"receiver"`
	Text       string        `json:"text"`
}

// GroupFeed returns group channel messages, newest first.
func (h *ChatHandler) GroupFeed(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	msgs, err := h.history.GroupFeed(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err, "failed to fetch messages")
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// PostMessage stores a group or private message for the authenticated user and broadcasts it.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	h.post(c, false)
}

// SendPrivateMessage is PostMessage with a mandatory receiver.
func (h *ChatHandler) SendPrivateMessage(c *gin.Context) {
	h.post(c, true)
}

func (h *ChatHandler) post(c *gin.Context, requireReceiver bool) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if requireReceiver && req.Receiver.IsGroup() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sender, receiver, and text are required"})
		return
	}

	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
		return
	}
	// "user" is the field name older clients post the sender under.
	sender, _ := lo.Coalesce(req.Sender, req.User, identity.UserID)
	if sender != identity.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "sender does not match authenticated user"})
		return
	}
	senderName, _ := lo.Coalesce(req.SenderName, identity.Name)

	out := h.publisher.Publish(c.Request.Context(), pipeline.Post{
		Sender:     sender,
		SenderName: senderName,
		Receiver:   req.Receiver,
		Text:       req.Text,
	})
	if out.Err != nil {
		h.fail(c, out.Err, "failed to send message")
		return
	}
	c.JSON(http.StatusCreated, out.Message)
}

// PrivateHistory returns the messages between two users, oldest first.
func (h *ChatHandler) PrivateHistory(c *gin.Context) {
	msgs, err := h.history.PrivateHistory(c.Request.Context(), c.Param("userA"), c.Param("userB"))
	if err != nil {
		h.fail(c, err, "failed to fetch private messages")
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// Conversations lists the private conversations of a user with their latest message.
func (h *ChatHandler) Conversations(c *gin.Context) {
	list, err := h.history.Conversations(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "failed to fetch conversations")
		return
	}
	c.JSON(http.StatusOK, list)
}

// fail maps domain errors to status codes. Storage details are logged, not returned.
func (h *ChatHandler) fail(c *gin.Context, err error, storageMsg string) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidMessage), errors.Is(err, history.ErrMissingUser):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrStorage):
		log.Printf("%s request_id=%s: %v", storageMsg, requestIDFromContext(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": storageMsg})
	default:
		log.Printf("unexpected error request_id=%s: %v", requestIDFromContext(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
