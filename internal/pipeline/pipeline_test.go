package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/repositories"
	"chat-backend/internal/telemetry"
)

func TestHandleEventDefaultsSenderName(t *testing.T) {
	repo := repositories.NewMemoryMessageRepo()
	rooms := &mocks.BroadcasterFake{Recipients: 2}
	p := New(repo, rooms, nil, nil)

	out := p.HandleEvent(context.Background(), InboundEvent{Sender: "u1", Receiver: "u2", Text: "hi", Room: "u1_u2"})

	require.Equal(t, StatusDelivered, out.Status)
	assert.Equal(t, models.UnknownSenderName, out.Message.SenderName)
	assert.Equal(t, 2, out.Recipients)

	calls := rooms.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "u1_u2", calls[0].Room)
	assert.Equal(t, models.DirectTo("u2"), calls[0].Message.Receiver)
	assert.Equal(t, out.Message.ID, calls[0].Message.ID)
	assert.Equal(t, "u1_u2", calls[0].Message.Room)
	assert.Equal(t, models.UnknownSenderName, calls[0].Message.SenderName)

	stored, err := repo.PrivateMessages(context.Background(), "u2", "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.UnknownSenderName, stored[0].SenderName)
}

func TestHandleEventBlankSenderNameIsDefaulted(t *testing.T) {
	repo := repositories.NewMemoryMessageRepo()
	p := New(repo, &mocks.BroadcasterFake{}, nil, nil)

	out := p.HandleEvent(context.Background(), InboundEvent{Sender: "u1", SenderName: "   ", Receiver: "u2", Text: "hi", Room: "r"})

	require.Equal(t, StatusDelivered, out.Status)
	assert.Equal(t, models.UnknownSenderName, out.Message.SenderName)
}

func TestHandleEventKeepsSenderName(t *testing.T) {
	p := New(repositories.NewMemoryMessageRepo(), &mocks.BroadcasterFake{}, nil, nil)

	out := p.HandleEvent(context.Background(), InboundEvent{Sender: "u1", SenderName: "Dr. Who", Receiver: "u2", Text: "hi", Room: "r"})

	assert.Equal(t, "Dr. Who", out.Message.SenderName)
}

func TestHandleEventRejectsInvalidEvents(t *testing.T) {
	valid := InboundEvent{Sender: "u1", Receiver: "u2", Text: "hi", Room: "u1_u2"}
	cases := map[string]func(e *InboundEvent){
		"missing sender":   func(e *InboundEvent) { e.Sender = "" },
		"missing receiver": func(e *InboundEvent) { e.Receiver = "" },
		"missing text":     func(e *InboundEvent) { e.Text = "" },
		"missing room":     func(e *InboundEvent) { e.Room = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := new(mocks.MessageRepositoryMock)
			rooms := &mocks.BroadcasterFake{}
			p := New(repo, rooms, nil, nil)

			evt := valid
			mutate(&evt)
			out := p.HandleEvent(context.Background(), evt)

			assert.Equal(t, StatusRejected, out.Status)
			assert.ErrorIs(t, out.Err, ErrInvalidMessage)
			assert.Empty(t, rooms.Calls())
			repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		})
	}
}

func TestValidationErrorNamesFields(t *testing.T) {
	p := New(new(mocks.MessageRepositoryMock), &mocks.BroadcasterFake{}, nil, nil)

	out := p.HandleEvent(context.Background(), InboundEvent{Sender: "u1"})

	var verr *ValidationError
	require.ErrorAs(t, out.Err, &verr)
	assert.ElementsMatch(t, []string{"receiver", "text", "room"}, verr.Fields)
}

func TestHandleEventStorageFailureSkipsBroadcast(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	rooms := &mocks.BroadcasterFake{}
	audit := new(mocks.PublisherMock)
	p := New(repo, rooms, nil, telemetry.NewAuditEmitter(audit, "audit.chat", "chat-backend", "test"))

	repo.On("Append", mock.Anything, mock.Anything).
		Return(nil, &repositories.StorageError{Op: "append", Err: assert.AnError}).Once()
	audit.On("Publish", mock.Anything, "audit.chat", mock.AnythingOfType("telemetry.AuditEnvelope"), mock.Anything).Return(nil).Once()

	out := p.HandleEvent(context.Background(), InboundEvent{Sender: "u1", Receiver: "u2", Text: "hi", Room: "u1_u2"})

	assert.Equal(t, StatusStorageFailed, out.Status)
	assert.ErrorIs(t, out.Err, repositories.ErrStorage)
	assert.False(t, out.Persisted())
	assert.Empty(t, rooms.Calls())
	repo.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestHandleEventPublishesMessageCreated(t *testing.T) {
	events := new(mocks.PublisherMock)
	p := New(repositories.NewMemoryMessageRepo(), &mocks.BroadcasterFake{Recipients: 1}, events, nil)

	events.On("Publish", mock.Anything, "chat_events.message_created", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	out := p.HandleEvent(context.Background(), InboundEvent{Sender: "u1", Receiver: "u2", Text: "hi", Room: "u1_u2"})

	// A failed event publish never affects delivery.
	assert.Equal(t, StatusDelivered, out.Status)
	events.AssertExpectations(t)

	published := events.Published("chat_events.message_created")
	require.Len(t, published, 1)
	env, ok := published[0].(observability.EventEnvelope)
	require.True(t, ok)
	assert.Equal(t, "message.created", env.EventName)
	created, ok := env.Payload.(MessageCreated)
	require.True(t, ok)
	assert.Equal(t, out.Message.ID, created.Message.ID)
	assert.Equal(t, "u1_u2", created.Room)
}

func TestPublishGroupMessageFansOutToGroupRoom(t *testing.T) {
	repo := repositories.NewMemoryMessageRepo()
	rooms := &mocks.BroadcasterFake{}
	p := New(repo, rooms, nil, nil)

	out := p.Publish(context.Background(), Post{Sender: "u1", Text: "hello all"})

	require.Equal(t, StatusDelivered, out.Status)
	assert.True(t, out.Message.Receiver.IsGroup())
	assert.Equal(t, "group", out.Room)
	require.Len(t, rooms.Calls(), 1)
	assert.Equal(t, "group", rooms.Calls()[0].Room)

	feed, err := repo.GroupMessages(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	private, err := repo.PrivateMessages(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Empty(t, private)
}

func TestPublishPrivateMessageUsesCanonicalRoom(t *testing.T) {
	rooms := &mocks.BroadcasterFake{}
	p := New(repositories.NewMemoryMessageRepo(), rooms, nil, nil)

	out := p.Publish(context.Background(), Post{Sender: "u2", Receiver: models.DirectTo("u1"), Text: "yo"})

	require.Equal(t, StatusDelivered, out.Status)
	assert.Equal(t, "u1_u2", out.Room)
	assert.Equal(t, "u1_u2", rooms.Calls()[0].Message.Room)
}

func TestPublishRejectsMissingText(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	p := New(repo, &mocks.BroadcasterFake{}, nil, nil)

	out := p.Publish(context.Background(), Post{Sender: "u1"})

	assert.Equal(t, StatusRejected, out.Status)
	repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

// orderedBroadcaster records per-room broadcast order.
type orderedBroadcaster struct {
	mu    sync.Mutex
	order map[string][]models.OutboundMessage
}

func (b *orderedBroadcaster) BroadcastMessage(room string, msg models.OutboundMessage) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.order[room] = append(b.order[room], msg)
	return 1
}

func TestBroadcastOrderFollowsCommitOrderPerRoom(t *testing.T) {
	repo := repositories.NewMemoryMessageRepo()
	rooms := &orderedBroadcaster{order: map[string][]models.OutboundMessage{}}
	p := New(repo, rooms, nil, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				room := fmt.Sprintf("room-%d", i%2)
				p.HandleEvent(context.Background(), InboundEvent{
					Sender: fmt.Sprintf("u%d", w), Receiver: "x", Text: "m", Room: room,
				})
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for room, msgs := range rooms.order {
		total += len(msgs)
		for i := 1; i < len(msgs); i++ {
			prev, cur := msgs[i-1], msgs[i]
			assert.False(t, cur.CreatedAt.Before(prev.CreatedAt), "room %s out of order at %d", room, i)
			if cur.CreatedAt.Equal(prev.CreatedAt) {
				assert.Greater(t, cur.ID, prev.ID, "room %s out of order at %d", room, i)
			}
		}
	}
	assert.Equal(t, 200, total)
	assert.Equal(t, 0, p.locks.len())
}

func TestRoomLocksSerializeSameRoom(t *testing.T) {
	locks := newRoomLocks()
	unlock := locks.lock("r1")

	acquired := make(chan struct{})
	go func() {
		u := locks.lock("r1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}

	// Other rooms are independent.
	other := locks.lock("r2")
	other()

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}
