package property

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is the read subset of *pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	db Querier
}

func NewRepoPG(db Querier) Repository {
	return &repoPG{db: db}
}

const propCols = `id, property_name, seller_name, contact_number, price_negotiable,
	COALESCE(property_photos, ''), description, available_time, event_date`

func scanProperty(row pgx.Row) (*Property, error) {
	var (
		p  Property
		id string
	)
	err := row.Scan(&id, &p.PropertyName, &p.SellerName, &p.ContactNumber, &p.PriceNegotiable,
		&p.PropertyPhotos, &p.Description, &p.AvailableTime, &p.EventDate)
	if err != nil {
		return nil, err
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse property id: %w", err)
	}
	return &p, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Property, error) {
	query := `SELECT ` + propCols + ` FROM properties ORDER BY event_date ASC, property_name ASC`
	var args []interface{}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	items := []*Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Property, error) {
	p, err := scanProperty(r.db.QueryRow(ctx, `SELECT `+propCols+` FROM properties WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	return p, nil
}
