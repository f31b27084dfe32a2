package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/estate/estate/internal/platform/telemetry"
)

type instrumentedStore struct {
	next    Store
	metrics *telemetry.Metrics
}

// Instrument wraps a Store so every call is timed on
// estate_store_duration_seconds and traced as a child span.
func Instrument(next Store, metrics *telemetry.Metrics) Store {
	return &instrumentedStore{next: next, metrics: metrics}
}

func (s *instrumentedStore) start(ctx context.Context, op string) (context.Context, trace.Span, time.Time) {
	ctx, span := tracer.Start(ctx, "appointment.store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("store.op", op)))
	return ctx, span, time.Now()
}

func (s *instrumentedStore) end(span trace.Span, op string, started time.Time, err error) {
	s.metrics.ObserveStore(op, time.Since(started))
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrValidation) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *instrumentedStore) Create(ctx context.Context, a *Appointment) (err error) {
	ctx, span, t := s.start(ctx, "create")
	defer func() { s.end(span, "create", t, err) }()
	return s.next.Create(ctx, a)
}

func (s *instrumentedStore) FindAll(ctx context.Context, f Filter) (items []*Appointment, err error) {
	ctx, span, t := s.start(ctx, "find_all")
	defer func() {
		span.SetAttributes(attribute.Int("store.rows", len(items)))
		s.end(span, "find_all", t, err)
	}()
	return s.next.FindAll(ctx, f)
}

func (s *instrumentedStore) FindByID(ctx context.Context, id uuid.UUID) (a *Appointment, err error) {
	ctx, span, t := s.start(ctx, "find_by_id")
	defer func() { s.end(span, "find_by_id", t, err) }()
	return s.next.FindByID(ctx, id)
}

func (s *instrumentedStore) UpdateByID(ctx context.Context, id uuid.UUID, p Patch) (a *Appointment, err error) {
	ctx, span, t := s.start(ctx, "update_by_id")
	defer func() { s.end(span, "update_by_id", t, err) }()
	return s.next.UpdateByID(ctx, id, p)
}

func (s *instrumentedStore) DeleteByID(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span, t := s.start(ctx, "delete_by_id")
	defer func() { s.end(span, "delete_by_id", t, err) }()
	return s.next.DeleteByID(ctx, id)
}
