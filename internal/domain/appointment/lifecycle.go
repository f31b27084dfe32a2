package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/estate/estate/internal/platform/events"
	"github.com/estate/estate/internal/platform/lock"
	"github.com/estate/estate/internal/platform/telemetry"
)

// TransitionPolicy decides whether an appointment may move from one status
// to another. Both statuses are already known to be valid.
type TransitionPolicy interface {
	Check(from, to Status) error
}

// PermissivePolicy accepts every transition between valid statuses.
type PermissivePolicy struct{}

func (PermissivePolicy) Check(Status, Status) error { return nil }

// StrictPolicy enforces the staff transition table. Completed and Cancelled
// are terminal; re-entering the current status is always allowed.
type StrictPolicy struct{}

var strictTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true, StatusVirtual: true, StatusVisit: true,
		StatusCompleted: true, StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusVirtual: true, StatusVisit: true,
		StatusCompleted: true, StatusCancelled: true,
	},
	StatusVirtual: {StatusCompleted: true, StatusCancelled: true},
	StatusVisit:   {StatusCompleted: true, StatusCancelled: true},
}

func (StrictPolicy) Check(from, to Status) error {
	if from == to {
		return nil
	}
	if !strictTransitions[from][to] {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// PolicyFor returns StrictPolicy when enforce is set and PermissivePolicy
// otherwise.
func PolicyFor(enforce bool) TransitionPolicy {
	if enforce {
		return StrictPolicy{}
	}
	return PermissivePolicy{}
}

// LifecycleManager applies patches and status transitions through the
// configured policy, recording a metric and an event for each change.
type LifecycleManager struct {
	store   Store
	policy  TransitionPolicy
	locker  lock.Locker
	metrics *telemetry.Metrics
	notify  *notifier
	log     zerolog.Logger
}

// NewLifecycleManager wires a manager. A nil policy is permissive and a nil
// locker is an in-process lock.
func NewLifecycleManager(store Store, policy TransitionPolicy, locker lock.Locker, metrics *telemetry.Metrics, pub events.Publisher, log zerolog.Logger) *LifecycleManager {
	if policy == nil {
		policy = PermissivePolicy{}
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &LifecycleManager{
		store:   store,
		policy:  policy,
		locker:  locker,
		metrics: metrics,
		notify:  newNotifier(pub, metrics, log),
		log:     log,
	}
}

// Transition moves the appointment to status to.
func (m *LifecycleManager) Transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if !to.Valid() {
		v := newValidationError("Invalid status")
		v.add("status", fmt.Sprintf("invalid appointment status: %q", to))
		return nil, v
	}
	return m.Apply(ctx, id, Patch{Status: &to})
}

// Apply writes a partial update. A status change in p is checked against the
// policy before anything is written. The read, the check and the write hold
// the appointment's lock so two transitions cannot both pass against the
// same stored status.
func (m *LifecycleManager) Apply(ctx context.Context, id uuid.UUID, p Patch) (*Appointment, error) {
	unlock, err := m.locker.Lock(ctx, appointmentKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != nil {
		if err := m.policy.Check(cur.Status, *p.Status); err != nil {
			return nil, err
		}
	}

	updated, err := m.store.UpdateByID(ctx, id, p)
	if err != nil {
		return nil, err
	}

	if updated.Status != cur.Status {
		m.metrics.ObserveTransition(string(cur.Status), string(updated.Status))
		m.log.Info().
			Str("appointment_id", id.String()).
			Str("from", string(cur.Status)).
			Str("to", string(updated.Status)).
			Msg("appointment status changed")
		m.notify.emit(ctx, events.AppointmentStatusChanged, updated, cur.Status)
		return updated, nil
	}

	m.log.Info().
		Str("appointment_id", id.String()).
		Str("property_address", updated.PropertyAddress).
		Msg("appointment updated")
	m.notify.emit(ctx, events.AppointmentUpdated, updated, "")
	return updated, nil
}

func appointmentKey(id uuid.UUID) string {
	return "appointment:" + id.String()
}

// notifier publishes domain events. Failures are logged and counted; the
// store mutation that produced the event has already happened.
type notifier struct {
	pub     events.Publisher
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

func newNotifier(pub events.Publisher, metrics *telemetry.Metrics, log zerolog.Logger) *notifier {
	if pub == nil {
		pub = events.Nop{}
	}
	return &notifier{pub: pub, metrics: metrics, log: log}
}

func (n *notifier) emit(ctx context.Context, eventType string, a *Appointment, prev Status) {
	ev := events.New(eventType, a.ID.String(), a.PropertyAddress, string(a.Status))
	ev.PreviousStatus = string(prev)
	if err := n.pub.Publish(ctx, ev); err != nil {
		n.metrics.ObserveEventFailure(eventType)
		n.log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", ev.AppointmentID).
			Msg("publish appointment event")
	}
}
