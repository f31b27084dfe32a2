package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store kept in process memory. It backs development runs
// without DATABASE_URL and the package tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Appointment
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[uuid.UUID]*Appointment),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(_ context.Context, a *Appointment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	a.ID = uuid.New()
	a.CreatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[a.ID] = a.Clone()
	return nil
}

func (s *MemoryStore) FindAll(_ context.Context, f Filter) ([]*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Appointment, 0, len(s.items))
	for _, a := range s.items {
		if f.Matches(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppointmentDate.Equal(out[j].AppointmentDate) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].AppointmentDate.Before(out[j].AppointmentDate)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*Appointment{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) UpdateByID(_ context.Context, id uuid.UUID, p Patch) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := cur.Clone()
	p.Apply(next)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	s.items[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}
