package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when the referenced person does not exist.
var ErrNotFound = errors.New("not found")

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the PostgreSQL-backed directory. It satisfies both
// PatientDirectory and StaffDirectory.
func NewRepoPG(pool *pgxpool.Pool) *repoPG { return &repoPG{pool: pool} }

func (r *repoPG) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, age, gender, created_at FROM patient WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	var s Staff
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, role, department_id, created_at FROM staff WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Role, &s.DepartmentID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
