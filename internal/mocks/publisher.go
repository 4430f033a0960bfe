package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-backend/internal/telemetry"
)

// PublisherMock stands in for the AMQP publisher behind events and audit records.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

// Published returns the events sent with routingKey, in call order.
func (m *PublisherMock) Published(routingKey string) []any {
	var events []any
	for _, call := range m.Calls {
		if call.Method == "Publish" && call.Arguments.String(1) == routingKey {
			events = append(events, call.Arguments.Get(2))
		}
	}
	return events
}

var _ telemetry.Publisher = (*PublisherMock)(nil)
