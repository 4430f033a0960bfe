package history

import (
	"context"
	"errors"

	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

// ErrMissingUser is returned when a query names an empty user id.
var ErrMissingUser = errors.New("user id is required")

// Service answers read-only history queries against the message store.
type Service struct {
	repo         repositories.MessageRepository
	defaultLimit int
}

// NewService builds a Service. defaultLimit caps the group feed when callers pass no limit; 0 means unlimited.
func NewService(repo repositories.MessageRepository, defaultLimit int) *Service {
	return &Service{repo: repo, defaultLimit: defaultLimit}
}

// GroupFeed returns group channel messages, newest first.
func (s *Service) GroupFeed(ctx context.Context, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	return s.repo.GroupMessages(ctx, limit)
}

// PrivateHistory returns the conversation between userA and userB, oldest first.
func (s *Service) PrivateHistory(ctx context.Context, userA, userB string) ([]models.Message, error) {
	if userA == "" || userB == "" {
		return nil, ErrMissingUser
	}
	return s.repo.PrivateMessages(ctx, userA, userB)
}

// Conversations lists every private conversation of userID with its latest message.
func (s *Service) Conversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	return s.repo.ConversationSummaries(ctx, userID)
}
