package repositories

import (
	"context"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"chat-backend/internal/conversation"
	"chat-backend/internal/models"
)

// MessageRepository is the append-only message log.
type MessageRepository interface {
	Append(ctx context.Context, draft models.MessageDraft) (models.Message, error)
	GroupMessages(ctx context.Context, limit int) ([]models.Message, error)
	PrivateMessages(ctx context.Context, userA, userB string) ([]models.Message, error)
	ConversationSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}

const messageColumns = `id, sender, sender_name, receiver, text, created_at`

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a message. The id is a ULID and created_at comes from the database clock.
func (r *MessageRepo) Append(ctx context.Context, draft models.MessageDraft) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, sender, sender_name, receiver, text)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+messageColumns,
		newMessageID(), draft.Sender, draft.SenderName, draft.Receiver, draft.Text).
		StructScan(&msg)
	if err != nil {
		return models.Message{}, storageErr("append", err)
	}
	return msg, nil
}

// GroupMessages returns group channel messages, newest first. limit <= 0 returns everything.
func (r *MessageRepo) GroupMessages(ctx context.Context, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE receiver IS NULL
        ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, storageErr("group messages", err)
	}
	return msgs, nil
}

// PrivateMessages returns messages exchanged between the two users in either direction, oldest first.
func (r *MessageRepo) PrivateMessages(ctx context.Context, userA, userB string) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE (sender=$1 AND receiver=$2) OR (sender=$2 AND receiver=$1)
        ORDER BY created_at ASC, id ASC`
	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, userA, userB); err != nil {
		return nil, storageErr("private messages", err)
	}
	return msgs, nil
}

// ConversationSummaries returns the latest message of every private conversation of userID,
// most recently active first.
func (r *MessageRepo) ConversationSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	query := `SELECT DISTINCT ON (
            LEAST(sender COLLATE "C", receiver COLLATE "C"),
            GREATEST(sender COLLATE "C", receiver COLLATE "C"))
            ` + messageColumns + `
        FROM messages
        WHERE receiver IS NOT NULL AND (sender=$1 OR receiver=$1)
        ORDER BY LEAST(sender COLLATE "C", receiver COLLATE "C"),
            GREATEST(sender COLLATE "C", receiver COLLATE "C"),
            created_at DESC, id DESC`
	var latest []models.Message
	if err := r.db.SelectContext(ctx, &latest, query, userID); err != nil {
		return nil, storageErr("conversation summaries", err)
	}
	return summarize(latest), nil
}

func newMessageID() string {
	return ulid.Make().String()
}

// newer orders messages by creation time, then id.
func newer(a, b models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// summarize keeps the newest private message per conversation and sorts by last activity.
// Ties on timestamp are broken by conversation key.
func summarize(msgs []models.Message) []models.ConversationSummary {
	latest := map[string]models.Message{}
	for _, m := range msgs {
		if m.Receiver.IsGroup() {
			continue
		}
		key := conversation.Key(m.Sender, m.Receiver.UserID())
		if cur, ok := latest[key]; !ok || newer(m, cur) {
			latest[key] = m
		}
	}

	summaries := make([]models.ConversationSummary, 0, len(latest))
	for key, m := range latest {
		lo, hi := conversation.Participants(m.Sender, m.Receiver.UserID())
		summaries = append(summaries, models.ConversationSummary{
			ConversationKey: key,
			Participants:    [2]string{lo, hi},
			LastMessage:     m,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i].LastMessage.CreatedAt, summaries[j].LastMessage.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return summaries[i].ConversationKey < summaries[j].ConversationKey
	})
	return summaries
}
