// Package events publishes appointment domain events.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	AppointmentCreated       = "appointment.created"
	AppointmentScheduled     = "appointment.scheduled"
	AppointmentUpdated       = "appointment.updated"
	AppointmentStatusChanged = "appointment.status_changed"
	AppointmentDeleted       = "appointment.deleted"
)

// Event is the payload written to the bus. AppointmentID doubles as the
// partition key so events for one appointment stay ordered.
type Event struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	AppointmentID   string    `json:"appointmentId"`
	PropertyAddress string    `json:"propertyAddress"`
	Status          string    `json:"status"`
	PreviousStatus  string    `json:"previousStatus,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType, appointmentID, address, status string) Event {
	return Event{
		ID:              uuid.NewString(),
		Type:            eventType,
		AppointmentID:   appointmentID,
		PropertyAddress: address,
		Status:          status,
		OccurredAt:      time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the event types in publish order.
func (r *Recorder) Types() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}
