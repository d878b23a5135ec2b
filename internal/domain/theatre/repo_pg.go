package theatre

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the PostgreSQL-backed theatre repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const theatreCols = `id, ot_number, status, surgery_type, patient_id, patient_name, doctor_id,
	department_id, scheduled_start, scheduled_end, duration_minutes,
	actual_start, actual_end, emergency_level, notes, created_at, updated_at`

func scanTheatre(row pgx.Row) (*Theatre, error) {
	var t Theatre
	err := row.Scan(&t.ID, &t.OTNumber, &t.Status, &t.SurgeryType, &t.PatientID, &t.PatientName,
		&t.DoctorID, &t.DepartmentID, &t.ScheduledStart, &t.ScheduledEnd, &t.DurationMinutes,
		&t.ActualStart, &t.ActualEnd, &t.EmergencyLevel, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

func (r *repoPG) Create(ctx context.Context, t *Theatre) error {
	t.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO theatre (id, ot_number, status, duration_minutes, emergency_level)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.OTNumber, t.Status, t.DurationMinutes, t.EmergencyLevel)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Theatre, error) {
	return scanTheatre(r.pool.QueryRow(ctx, `SELECT `+theatreCols+` FROM theatre WHERE id = $1`, id))
}

func (r *repoPG) GetByNumber(ctx context.Context, otNumber string) (*Theatre, error) {
	return scanTheatre(r.pool.QueryRow(ctx, `SELECT `+theatreCols+` FROM theatre WHERE ot_number = $1`, otNumber))
}

func (r *repoPG) List(ctx context.Context) ([]*Theatre, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+theatreCols+` FROM theatre ORDER BY ot_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) ListActiveBetween(ctx context.Context, start, end time.Time, exclude uuid.UUID) ([]*Theatre, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+theatreCols+` FROM theatre
		WHERE id <> $1
		  AND status IN ('scheduled', 'in-use')
		  AND scheduled_start < $3
		  AND scheduled_end > $2
		ORDER BY ot_number`,
		exclude, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// UpdateIfStatus is the conditional write that closes the check-then-write
// race: the row is only updated if its stored status still matches one of
// the expected source statuses.
func (r *repoPG) UpdateIfStatus(ctx context.Context, t *Theatre, expect ...Status) (bool, error) {
	statuses := make([]string, len(expect))
	for i, s := range expect {
		statuses[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE theatre SET status=$2, surgery_type=$3, patient_id=$4, patient_name=$5,
			doctor_id=$6, department_id=$7, scheduled_start=$8, scheduled_end=$9,
			duration_minutes=$10, actual_start=$11, actual_end=$12,
			emergency_level=$13, notes=$14, updated_at=NOW()
		WHERE id = $1 AND status = ANY($15)`,
		t.ID, t.Status, t.SurgeryType, t.PatientID, t.PatientName,
		t.DoctorID, t.DepartmentID, t.ScheduledStart, t.ScheduledEnd,
		t.DurationMinutes, t.ActualStart, t.ActualEnd,
		t.EmergencyLevel, t.Notes, statuses)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM theatre WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collect(rows pgx.Rows) ([]*Theatre, error) {
	var items []*Theatre
	for rows.Next() {
		t, err := scanTheatre(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}
