package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Store persists appointment records. Create assigns ID and CreatedAt and
// rejects records that fail Validate. FindByID, UpdateByID and DeleteByID
// return ErrNotFound for unknown ids.
type Store interface {
	Create(ctx context.Context, a *Appointment) error
	FindAll(ctx context.Context, f Filter) ([]*Appointment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateByID(ctx context.Context, id uuid.UUID, p Patch) (*Appointment, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// PropertyLookup resolves a listed property to the address string
// appointments are keyed by. Unknown properties yield "" and a nil error.
type PropertyLookup interface {
	PropertyAddress(ctx context.Context, propertyID string) (string, error)
}
