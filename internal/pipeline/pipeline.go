package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chat-backend/internal/conversation"
	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/repositories"
	"chat-backend/internal/telemetry"
)

const (
	SourceLive = "live"
	SourceREST = "rest"
)

// Broadcaster fans a formatted message out to the connections joined to a room.
type Broadcaster interface {
	BroadcastMessage(room string, msg models.OutboundMessage) int
}

// EventPublisher receives a domain event for every delivered message.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// MessageCreated is published after a message has been stored and broadcast.
type MessageCreated struct {
	Source     string         `json:"source"`
	Room       string         `json:"room"`
	Recipients int            `json:"recipients"`
	Message    models.Message `json:"message"`
}

// Pipeline validates, stores and broadcasts chat messages. Storage always completes before fan-out.
type Pipeline struct {
	repo     repositories.MessageRepository
	rooms    Broadcaster
	events   EventPublisher
	audit    *telemetry.AuditEmitter
	validate *validator.Validate
	locks    *roomLocks
}

// New builds a Pipeline. events and audit may be nil.
func New(repo repositories.MessageRepository, rooms Broadcaster, events EventPublisher, audit *telemetry.AuditEmitter) *Pipeline {
	return &Pipeline{
		repo:     repo,
		rooms:    rooms,
		events:   events,
		audit:    audit,
		validate: newValidator(),
		locks:    newRoomLocks(),
	}
}

// HandleEvent runs a live sendMessage event through the pipeline and broadcasts to evt.Room.
func (p *Pipeline) HandleEvent(ctx context.Context, evt InboundEvent) Outcome {
	ctx, span := otel.Tracer("chat-backend/pipeline").Start(ctx, "pipeline.handle_event")
	defer span.End()

	if err := validate(p.validate, evt); err != nil {
		return p.finish(ctx, span, SourceLive, Outcome{Status: StatusRejected, Room: evt.Room, Err: err})
	}

	draft := models.MessageDraft{
		Sender:     evt.Sender,
		SenderName: normalizeSenderName(evt.SenderName),
		Receiver:   models.DirectTo(evt.Receiver),
		Text:       evt.Text,
	}
	return p.finish(ctx, span, SourceLive, p.deliver(ctx, draft, evt.Room))
}

// Publish stores a REST-submitted message and broadcasts it to the message's canonical room.
func (p *Pipeline) Publish(ctx context.Context, post Post) Outcome {
	ctx, span := otel.Tracer("chat-backend/pipeline").Start(ctx, "pipeline.publish")
	defer span.End()

	room := conversation.RoomFor(post.Sender, post.Receiver)
	if err := validate(p.validate, post); err != nil {
		return p.finish(ctx, span, SourceREST, Outcome{Status: StatusRejected, Room: room, Err: err})
	}

	draft := models.MessageDraft{
		Sender:     post.Sender,
		SenderName: normalizeSenderName(post.SenderName),
		Receiver:   post.Receiver,
		Text:       post.Text,
	}
	return p.finish(ctx, span, SourceREST, p.deliver(ctx, draft, room))
}

// deliver appends and broadcasts while holding the room lock.
func (p *Pipeline) deliver(ctx context.Context, draft models.MessageDraft, room string) Outcome {
	unlock := p.locks.lock(room)
	defer unlock()

	msg, err := p.repo.Append(ctx, draft)
	if err != nil {
		return Outcome{Status: StatusStorageFailed, Room: room, Err: err}
	}

	recipients := p.rooms.BroadcastMessage(room, models.NewOutboundMessage(msg, room))
	return Outcome{Status: StatusDelivered, Message: msg, Room: room, Recipients: recipients}
}

func (p *Pipeline) finish(ctx context.Context, span trace.Span, source string, out Outcome) Outcome {
	observability.IncPipelineOutcome(source, out.Status.String())
	span.SetAttributes(
		attribute.String("chat.source", source),
		attribute.String("chat.room", out.Room),
		attribute.String("chat.outcome", out.Status.String()),
	)

	switch out.Status {
	case StatusDelivered:
		observability.ObserveBroadcastRecipients(out.Recipients)
		log.Printf("message delivered source=%s id=%s room=%s recipients=%d", source, out.Message.ID, out.Room, out.Recipients)
		p.publishCreated(ctx, span, source, out)
	case StatusRejected:
		log.Printf("message rejected source=%s room=%q: %v", source, out.Room, out.Err)
		p.emitAudit(ctx, telemetry.LevelWarn, "message rejected", source, out)
	case StatusStorageFailed:
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "store message")
		log.Printf("message dropped source=%s room=%q: %v", source, out.Room, out.Err)
		p.emitAudit(ctx, telemetry.LevelError, "message not stored", source, out)
	}
	return out
}

func (p *Pipeline) publishCreated(ctx context.Context, span trace.Span, source string, out Outcome) {
	if p.events == nil {
		return
	}
	event := observability.EventEnvelope{
		EventType: "chat_events",
		EventName: "message.created",
		Payload: MessageCreated{
			Source:     source,
			Room:       out.Room,
			Recipients: out.Recipients,
			Message:    out.Message,
		},
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	var traceID string
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	headers := observability.BuildHeaders("", traceID)
	if err := p.events.Publish(pubCtx, observability.RoutingKeyMessageCreated, event, headers); err != nil {
		observability.IncAMQPPublishError()
		log.Printf("message.created publish failed id=%s: %v", out.Message.ID, err)
	}
}

func (p *Pipeline) emitAudit(ctx context.Context, level telemetry.Level, text, source string, out Outcome) {
	fields := map[string]any{
		"source":  source,
		"room":    out.Room,
		"outcome": out.Status.String(),
	}
	var verr *ValidationError
	if errors.As(out.Err, &verr) {
		fields["missing"] = verr.Fields
	} else if out.Err != nil {
		fields["error"] = out.Err.Error()
	}
	p.audit.Emit(ctx, telemetry.Record{Level: level, Text: text, Fields: fields})
}
