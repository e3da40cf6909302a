// Package events publishes domain events (appointment booked, cancelled,
// completed; vaccination recorded) to a message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	AppointmentCreated   = "appointment.created"
	AppointmentCancelled = "appointment.cancelled"
	AppointmentCompleted = "appointment.completed"
	VaccinationRecorded  = "vaccination.recorded"
)

// Event is the envelope written to the broker.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Publisher delivers one event.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Emitter is what domain services depend on. Emit never fails the caller.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{})
}

// NewEvent wraps payload in an envelope.
func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}, nil
}

// Bus adapts a Publisher to Emitter, logging delivery failures instead of
// returning them.
type Bus struct {
	pub    Publisher
	logger zerolog.Logger
}

func NewBus(pub Publisher, logger zerolog.Logger) *Bus {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Bus{pub: pub, logger: logger}
}

func (b *Bus) Emit(ctx context.Context, eventType string, payload interface{}) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		b.logger.Error().Err(err).Str("event_type", eventType).Msg("event encode failed")
		return
	}
	if err := b.pub.Publish(ctx, evt); err != nil {
		b.logger.Warn().Err(err).
			Str("event_type", eventType).
			Str("event_id", evt.ID).
			Msg("event publish failed")
	}
}

func (b *Bus) Close() error { return b.pub.Close() }

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, eventType string, payload interface{}) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Types returns the recorded event types in emission order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
