package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"chat-backend/internal/models"
)

// MemoryMessageRepo keeps the message log in process memory.
// It backs local runs without a database and the package tests.
type MemoryMessageRepo struct {
	mu   sync.RWMutex
	msgs []models.Message
	last time.Time
	now  func() time.Time
}

// MemoryOption configures a MemoryMessageRepo.
type MemoryOption func(*MemoryMessageRepo)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(r *MemoryMessageRepo) {
		r.now = now
	}
}

// NewMemoryMessageRepo constructs an empty in-memory repository.
func NewMemoryMessageRepo(opts ...MemoryOption) *MemoryMessageRepo {
	r := &MemoryMessageRepo{
		msgs: make([]models.Message, 0, 256),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append stores a message. Timestamps never go backwards within the repository.
func (r *MemoryMessageRepo) Append(ctx context.Context, draft models.MessageDraft) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, storageErr("append", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	if now.Before(r.last) {
		now = r.last
	}
	r.last = now

	msg := models.Message{
		ID:         newMessageID(),
		Sender:     draft.Sender,
		SenderName: draft.SenderName,
		Receiver:   draft.Receiver,
		Text:       draft.Text,
		CreatedAt:  now,
	}
	r.msgs = append(r.msgs, msg)
	return msg, nil
}

// GroupMessages returns group channel messages, newest first. limit <= 0 returns everything.
func (r *MemoryMessageRepo) GroupMessages(ctx context.Context, limit int) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("group messages", err)
	}
	msgs := r.filter(func(m models.Message) bool { return m.Receiver.IsGroup() })
	sort.SliceStable(msgs, func(i, j int) bool { return newer(msgs[i], msgs[j]) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// PrivateMessages returns messages between the two users in either direction, oldest first.
func (r *MemoryMessageRepo) PrivateMessages(ctx context.Context, userA, userB string) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("private messages", err)
	}
	msgs := r.filter(func(m models.Message) bool {
		if m.Receiver.IsGroup() {
			return false
		}
		to := m.Receiver.UserID()
		return (m.Sender == userA && to == userB) || (m.Sender == userB && to == userA)
	})
	sort.SliceStable(msgs, func(i, j int) bool { return newer(msgs[j], msgs[i]) })
	return msgs, nil
}

// ConversationSummaries returns the latest message of every private conversation of userID.
func (r *MemoryMessageRepo) ConversationSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("conversation summaries", err)
	}
	msgs := r.filter(func(m models.Message) bool {
		return !m.Receiver.IsGroup() && (m.Sender == userID || m.Receiver.UserID() == userID)
	})
	return summarize(msgs), nil
}

// filter copies matching messages out of the log under the read lock.
func (r *MemoryMessageRepo) filter(keep func(models.Message) bool) []models.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Filter(r.msgs, func(m models.Message, _ int) bool { return keep(m) })
}
