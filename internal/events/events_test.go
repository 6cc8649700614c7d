package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventHandler records the events it receives.
type MockEventHandler struct {
	LastEvent    *Event
	HandlerError error
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *Event) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestNewEvent_BatchPayloadRoundTrip(t *testing.T) {
	taskID := uuid.New()
	in := BatchEvent{BatchID: uuid.New(), UserID: uuid.New(), TaskID: &taskID, Status: "FAILED"}

	event, err := NewEvent(TaskCompleted, in)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, TaskCompleted, event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	out, err := event.BatchPayload()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNewEvent_UnmarshalablePayload(t *testing.T) {
	_, err := NewEvent(BatchCreated, make(chan int))
	assert.Error(t, err)
}

func TestHandlerFunc(t *testing.T) {
	var got string
	h := HandlerFunc(func(ctx context.Context, e *Event) error {
		got = e.Type
		return errors.New("nope")
	})

	err := h.HandleEvent(context.Background(), &Event{Type: BatchFinished})
	assert.EqualError(t, err, "nope")
	assert.Equal(t, BatchFinished, got)
	assert.NoError(t, NopEmitter{}.EmitEvent(context.Background(), &Event{}))
}
