package appointment

import (
	"context"
	"strings"
	"time"
)

// ConflictPolicy decides which existing appointments block a day. The zero
// value counts every status, Cancelled included.
type ConflictPolicy struct {
	ExcludeCancelled bool
}

// DayBounds returns the first and last millisecond of the calendar day of t
// in loc. Both bounds are inclusive.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, 999_000_000, loc)
	return start, end
}

// AvailabilityChecker answers "is this property free on this day".
type AvailabilityChecker struct {
	store  Store
	policy ConflictPolicy
	loc    *time.Location
}

func NewAvailabilityChecker(store Store, policy ConflictPolicy, loc *time.Location) *AvailabilityChecker {
	if loc == nil {
		loc = time.Local
	}
	return &AvailabilityChecker{store: store, policy: policy, loc: loc}
}

// Conflicts returns every appointment at address whose date falls on the
// same calendar day as at, ordered by date. An empty slice means free.
func (c *AvailabilityChecker) Conflicts(ctx context.Context, address string, at time.Time) ([]*Appointment, error) {
	start, end := DayBounds(at, c.loc)
	f := Filter{
		PropertyAddress: address,
		From:            &start,
		To:              &end,
	}
	if c.policy.ExcludeCancelled {
		f.ExcludeStatuses = []Status{StatusCancelled}
	}
	return c.store.FindAll(ctx, f)
}

// dayKey names the (property, day) pair a booking contends on.
func dayKey(address string, at time.Time, loc *time.Location) string {
	return "property:" + strings.ToLower(strings.TrimSpace(address)) + ":" + at.In(loc).Format("2006-01-02")
}
