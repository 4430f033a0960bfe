package pipeline

import "chat-backend/internal/models"

// Status is the terminal state of one message in the pipeline.
type Status int

const (
	StatusDelivered Status = iota
	StatusRejected
	StatusStorageFailed
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusRejected:
		return "rejected"
	case StatusStorageFailed:
		return "storage_failed"
	default:
		return "unknown"
	}
}

// Outcome records what happened to a message. Live callers never see it; the pipeline logs it.
type Outcome struct {
	Status     Status
	Message    models.Message
	Room       string
	Recipients int
	Err        error
}

// Persisted reports whether the message reached the store.
func (o Outcome) Persisted() bool {
	return o.Status == StatusDelivered
}
