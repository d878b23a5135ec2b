// Package identity resolves patient and staff references for the scheduling
// core. It is a read-only boundary: registration and staff administration
// live elsewhere.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Age       *int      `db:"age" json:"age,omitempty"`
	Gender    *string   `db:"gender" json:"gender,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Staff maps to the staff table. Role is one of admin, doctor, nurse,
// pharmacist, receptionist.
type Staff struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Role         string     `db:"role" json:"role"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

const RoleDoctor = "doctor"
