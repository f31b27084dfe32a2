package property

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Lookup resolves a property id to the address appointments are booked
// under.
type Lookup struct {
	repo Repository
}

func NewLookup(repo Repository) *Lookup {
	return &Lookup{repo: repo}
}

// PropertyAddress returns "" for malformed or unknown ids.
func (l *Lookup) PropertyAddress(ctx context.Context, propertyID string) (string, error) {
	id, err := uuid.Parse(propertyID)
	if err != nil {
		return "", nil
	}
	p, err := l.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return p.PropertyName, nil
}
