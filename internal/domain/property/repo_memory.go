package property

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepo serves a fixed listing from memory.
type MemoryRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Property
}

func NewMemoryRepo(seed ...*Property) *MemoryRepo {
	r := &MemoryRepo{items: make(map[uuid.UUID]*Property)}
	for _, p := range seed {
		r.Put(p)
	}
	return r
}

// Put stores a copy of p, assigning an id when it has none.
func (r *MemoryRepo) Put(p *Property) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.mu.Lock()
	r.items[p.ID] = &cp
	r.mu.Unlock()
}

func (r *MemoryRepo) List(_ context.Context, limit, offset int) ([]*Property, error) {
	r.mu.RLock()
	out := make([]*Property, 0, len(r.items))
	for _, p := range r.items {
		cp := *p
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EventDate.Equal(out[j].EventDate) {
			return out[i].PropertyName < out[j].PropertyName
		}
		return out[i].EventDate.Before(out[j].EventDate)
	})
	if offset >= len(out) {
		return []*Property{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}
