package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/estate/estate/internal/platform/events"
	"github.com/estate/estate/internal/platform/lock"
	"github.com/estate/estate/internal/platform/telemetry"
)

var tracer = otel.Tracer("estate.internal.appointment")

// Scheduling outcomes recorded on estate_scheduling_requests_total.
const (
	OutcomeScheduled = "scheduled"
	OutcomeConflict  = "conflict"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// ServiceConfig carries the optional collaborators of Service. Zero values
// select an in-process lock, no events, no metrics and the local zone.
type ServiceConfig struct {
	Locker      lock.Locker
	Publisher   events.Publisher
	Metrics     *telemetry.Metrics
	Properties  PropertyLookup
	Logger      zerolog.Logger
	Location    *time.Location
	Conflicts   ConflictPolicy
	Transitions TransitionPolicy
}

type Service struct {
	store      Store
	checker    *AvailabilityChecker
	lifecycle  *LifecycleManager
	locker     lock.Locker
	properties PropertyLookup
	metrics    *telemetry.Metrics
	notify     *notifier
	log        zerolog.Logger
	loc        *time.Location
}

func NewService(store Store, cfg ServiceConfig) *Service {
	if cfg.Locker == nil {
		cfg.Locker = lock.NewLocal()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		store:      store,
		checker:    NewAvailabilityChecker(store, cfg.Conflicts, cfg.Location),
		lifecycle:  NewLifecycleManager(store, cfg.Transitions, cfg.Locker, cfg.Metrics, cfg.Publisher, cfg.Logger),
		locker:     cfg.Locker,
		properties: cfg.Properties,
		metrics:    cfg.Metrics,
		notify:     newNotifier(cfg.Publisher, cfg.Metrics, cfg.Logger),
		log:        cfg.Logger,
		loc:        cfg.Location,
	}
}

// Create is the direct booking path: no availability check, status defaults
// to Pending.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	status, err := req.initialStatus()
	if err != nil {
		return nil, err
	}
	a, err := req.build(status, s.loc)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("appointment_id", a.ID.String()).
		Str("property_address", a.PropertyAddress).
		Str("status", string(a.Status)).
		Msg("appointment created")
	s.notify.emit(ctx, events.AppointmentCreated, a, "")
	return a, nil
}

// Schedule books the property only if no appointment already exists at the
// same address on the same calendar day. The check and the create run under
// a lock on (address, day). On success the appointment is Confirmed.
func (s *Service) Schedule(ctx context.Context, req CreateRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Schedule")
	defer span.End()

	a, err := s.schedule(ctx, req)
	switch {
	case err == nil:
		s.metrics.ObserveScheduling(OutcomeScheduled)
		span.SetAttributes(attribute.String("appointment.id", a.ID.String()))
	case errors.Is(err, ErrConflict):
		s.metrics.ObserveScheduling(OutcomeConflict)
		span.SetAttributes(attribute.Bool("appointment.conflict", true))
	case errors.Is(err, ErrValidation):
		s.metrics.ObserveScheduling(OutcomeInvalid)
	default:
		s.metrics.ObserveScheduling(OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return a, err
}

func (s *Service) schedule(ctx context.Context, req CreateRequest) (*Appointment, error) {
	if strings.TrimSpace(req.PropertyAddress) == "" && req.PropertyID != "" && s.properties != nil {
		addr, err := s.properties.PropertyAddress(ctx, req.PropertyID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		req.PropertyAddress = addr
	}
	if strings.TrimSpace(req.AppointmentDate) == "" || strings.TrimSpace(req.PropertyAddress) == "" {
		v := newValidationError("Appointment date and property address are required")
		if strings.TrimSpace(req.AppointmentDate) == "" {
			v.add("appointmentDate", "appointment date is required")
		}
		if strings.TrimSpace(req.PropertyAddress) == "" {
			v.add("propertyAddress", "property address is required")
		}
		return nil, v
	}

	// Only the date and address take part in the availability decision; the
	// rest of the record is validated once the day is known to be free.
	at, err := ParseDate(req.AppointmentDate, s.loc)
	if err != nil {
		v := newValidationError("Appointment validation failed")
		v.add("appointmentDate", err.Error())
		return nil, v
	}
	address := strings.TrimSpace(req.PropertyAddress)

	unlock, err := s.locker.Lock(ctx, dayKey(address, at, s.loc))
	if err != nil {
		return nil, err
	}
	defer unlock()

	conflicts, err := s.checker.Conflicts(ctx, address, at)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.log.Info().
			Str("property_address", address).
			Int("conflicts", len(conflicts)).
			Msg("appointment slot unavailable")
		return nil, &ConflictError{PropertyAddress: address, Conflicts: conflicts}
	}

	a, err := req.build(StatusConfirmed, s.loc)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("appointment_id", a.ID.String()).
		Str("property_address", a.PropertyAddress).
		Str("status", string(a.Status)).
		Msg("appointment scheduled")
	s.notify.emit(ctx, events.AppointmentScheduled, a, "")
	return a, nil
}

// Availability returns the appointments that would block scheduling address
// on the day of date.
func (s *Service) Availability(ctx context.Context, address, date string) ([]*Appointment, error) {
	v := newValidationError("Property address and date are required")
	if strings.TrimSpace(address) == "" {
		v.add("propertyAddress", "property address is required")
	}
	var at time.Time
	if strings.TrimSpace(date) == "" {
		v.add("date", "date is required")
	} else {
		t, err := ParseDate(date, s.loc)
		if err != nil {
			v.add("date", err.Error())
		}
		at = t
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}
	return s.checker.Conflicts(ctx, strings.TrimSpace(address), at)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	return s.store.FindAll(ctx, f)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.store.FindByID(ctx, id)
}

// Update applies a partial edit. A status change goes through the lifecycle
// policy; date or address edits are not re-checked for conflicts.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	p, err := req.patch(s.loc)
	if err != nil {
		return nil, err
	}
	return s.lifecycle.Apply(ctx, id, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.log.Info().
		Str("appointment_id", id.String()).
		Str("property_address", a.PropertyAddress).
		Msg("appointment deleted")
	s.notify.emit(ctx, events.AppointmentDeleted, a, "")
	return nil
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.lifecycle.Transition(ctx, id, StatusConfirmed)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.lifecycle.Transition(ctx, id, StatusCancelled)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.lifecycle.Transition(ctx, id, StatusCompleted)
}

// Location is the zone used for calendar-day arithmetic.
func (s *Service) Location() *time.Location {
	return s.loc
}
