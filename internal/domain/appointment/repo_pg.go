package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool the Postgres store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type storePG struct {
	db  Querier
	now func() time.Time
}

func NewStorePG(db Querier) Store {
	return &storePG{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const apptCols = `id, client_name, appointment_date, property_address, property_type,
	contact_email, phone_number, message, status, created_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a            Appointment
		id           string
		propertyType string
		status       string
	)
	err := row.Scan(&id, &a.ClientName, &a.AppointmentDate, &a.PropertyAddress, &propertyType,
		&a.ContactEmail, &a.PhoneNumber, &a.Message, &status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse appointment id: %w", err)
	}
	a.PropertyType = PropertyType(propertyType)
	a.Status = Status(status)
	return &a, nil
}

func (r *storePG) Create(ctx context.Context, a *Appointment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	a.ID = uuid.New()
	a.CreatedAt = r.now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (id, client_name, appointment_date, property_address, property_type,
			contact_email, phone_number, message, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.ClientName, a.AppointmentDate, a.PropertyAddress, string(a.PropertyType),
		a.ContactEmail, a.PhoneNumber, a.Message, string(a.Status), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *storePG) FindAll(ctx context.Context, f Filter) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointments WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PropertyAddress != "" {
		query += fmt.Sprintf(` AND property_address = $%d`, idx)
		args = append(args, f.PropertyAddress)
		idx++
	}
	if f.From != nil {
		query += fmt.Sprintf(` AND appointment_date >= $%d`, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		query += fmt.Sprintf(` AND appointment_date <= $%d`, idx)
		args = append(args, *f.To)
		idx++
	}
	if len(f.Statuses) > 0 {
		query += fmt.Sprintf(` AND status = ANY($%d)`, idx)
		args = append(args, statusStrings(f.Statuses))
		idx++
	}
	if len(f.ExcludeStatuses) > 0 {
		query += fmt.Sprintf(` AND NOT (status = ANY($%d))`, idx)
		args = append(args, statusStrings(f.ExcludeStatuses))
		idx++
	}

	query += ` ORDER BY appointment_date ASC, created_at ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, idx)
		args = append(args, f.Limit)
		idx++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, idx)
		args = append(args, f.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	items := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return items, nil
}

func (r *storePG) FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// UpdateByID validates the merged record before writing so the enum and
// required-field invariants hold for every stored row.
func (r *storePG) UpdateByID(ctx context.Context, id uuid.UUID, p Patch) (*Appointment, error) {
	cur, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return cur, nil
	}
	next := cur.Clone()
	p.Apply(next)
	if err := next.Validate(); err != nil {
		return nil, err
	}

	sets, args := patchClauses(p)
	args = append([]interface{}{id}, args...)
	a, err := scanAppointment(r.db.QueryRow(ctx,
		`UPDATE appointments SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+apptCols,
		args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return a, nil
}

func (r *storePG) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// patchClauses numbers placeholders from $2; $1 is the id.
func patchClauses(p Patch) ([]string, []interface{}) {
	var sets []string
	var args []interface{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)+1))
	}
	if p.ClientName != nil {
		add("client_name", *p.ClientName)
	}
	if p.AppointmentDate != nil {
		add("appointment_date", *p.AppointmentDate)
	}
	if p.PropertyAddress != nil {
		add("property_address", *p.PropertyAddress)
	}
	if p.PropertyType != nil {
		add("property_type", string(*p.PropertyType))
	}
	if p.ContactEmail != nil {
		add("contact_email", *p.ContactEmail)
	}
	if p.PhoneNumber != nil {
		add("phone_number", *p.PhoneNumber)
	}
	if p.Message != nil {
		add("message", *p.Message)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	return sets, args
}

func statusStrings(in []Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
