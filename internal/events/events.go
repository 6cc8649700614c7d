package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the batch runner.
const (
	// BatchCreated is emitted after a batch and its tasks are committed.
	BatchCreated = "batch.created"
	// TaskCompleted is emitted after a RUNNING task reached a terminal status.
	TaskCompleted = "task.completed"
	// BatchFinished is emitted when a batch reaches a terminal status.
	BatchFinished = "batch.finished"
)

// BatchEvent is the payload of every batch lifecycle event.
type BatchEvent struct {
	BatchID uuid.UUID  `json:"batch_id"`
	UserID  uuid.UUID  `json:"user_id"`
	TaskID  *uuid.UUID `json:"task_id,omitempty"`
	// Status is the task status for TaskCompleted and the batch status otherwise.
	Status string `json:"status"`
}

// Event is a lifecycle notification. It carries no reference to the
// packages producing it so consumers stay decoupled from the runner.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the event type constants
	Type string `json:"type"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// BatchPayload decodes the payload as a BatchEvent.
func (e *Event) BatchPayload() (BatchEvent, error) {
	var p BatchEvent
	err := e.UnmarshalPayload(&p)
	return p, err
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the runner to publish events without knowing its consumers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// NopEmitter drops every event.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, *Event) error { return nil }
