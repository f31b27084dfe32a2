package property

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("property not found")

// Repository is the read side of the property listing. Property writes and
// photo uploads are handled elsewhere.
type Repository interface {
	List(ctx context.Context, limit, offset int) ([]*Property, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Property, error)
}
