// Package stream provides a mock StreamProducer for tests exercising the
// JobRunner's optional lifecycle-event publication, kept out of
// production code per the testify mock convention.
package stream

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vncatalog/dedup-engine/pkg/events"
	"github.com/vncatalog/dedup-engine/pkg/interfaces"
)

// MockProducer is a mock implementation of interfaces.StreamProducer.
type MockProducer struct {
	mock.Mock
}

var _ interfaces.StreamProducer = (*MockProducer)(nil)

// PublishEvent mocks the PublishEvent method.
func (m *MockProducer) PublishEvent(ctx context.Context, streamName string, e *events.Event) error {
	args := m.Called(ctx, streamName, e)
	return args.Error(0)
}

// NewMockProducerWithSuccess returns a MockProducer that always succeeds.
func NewMockProducerWithSuccess() *MockProducer {
	m := new(MockProducer)
	m.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return m
}

// NewMockProducerWithError returns a MockProducer that always fails.
func NewMockProducerWithError(err error) *MockProducer {
	m := new(MockProducer)
	m.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything).Return(err)
	return m
}
