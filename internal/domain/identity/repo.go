package identity

import (
	"context"

	"github.com/google/uuid"
)

// PatientDirectory looks up patients by id.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// StaffDirectory looks up staff members by id.
type StaffDirectory interface {
	GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error)
}
