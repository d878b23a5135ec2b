package theatre

import (
	"time"

	"github.com/google/uuid"
)

// Theatre maps to the theatre table. A theatre carries at most one active
// booking at a time; the booking fields below are cleared when the theatre
// returns to available.
type Theatre struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	OTNumber        string     `db:"ot_number" json:"ot_number"`
	Status          Status     `db:"status" json:"status"`
	SurgeryType     *string    `db:"surgery_type" json:"surgery_type,omitempty"`
	PatientID       *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	PatientName     *string    `db:"patient_name" json:"patient_name,omitempty"`
	DoctorID        *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	DepartmentID    *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	ScheduledStart  *time.Time `db:"scheduled_start" json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time `db:"scheduled_end" json:"scheduled_end,omitempty"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	ActualStart     *time.Time `db:"actual_start" json:"actual_start,omitempty"`
	ActualEnd       *time.Time `db:"actual_end" json:"actual_end,omitempty"`
	EmergencyLevel  int        `db:"emergency_level" json:"emergency_level"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// HasActiveBooking reports whether the theatre currently carries a booking
// that occupies it (anything other than sitting idle or cancelled).
func (t *Theatre) HasActiveBooking() bool {
	return t.Status != StatusAvailable && t.Status != StatusCancelled
}

// Window returns the scheduled [start, end) window. ok is false when the
// theatre has no scheduled window.
func (t *Theatre) Window() (start, end time.Time, ok bool) {
	if t.ScheduledStart == nil || t.ScheduledEnd == nil {
		return time.Time{}, time.Time{}, false
	}
	return *t.ScheduledStart, *t.ScheduledEnd, true
}

// Overlaps reports whether the theatre's scheduled window overlaps the
// half-open interval [start, end). Windows that merely touch do not overlap.
func (t *Theatre) Overlaps(start, end time.Time) bool {
	s, e, ok := t.Window()
	if !ok {
		return false
	}
	return s.Before(end) && e.After(start)
}

// clearBooking resets every booking field. Called on cancel.
func (t *Theatre) clearBooking() {
	t.SurgeryType = nil
	t.PatientID = nil
	t.PatientName = nil
	t.DoctorID = nil
	t.DepartmentID = nil
	t.ScheduledStart = nil
	t.ScheduledEnd = nil
	t.ActualStart = nil
	t.ActualEnd = nil
	t.EmergencyLevel = 0
}

// TheatreDetail is the single-theatre view with patient and doctor references
// resolved to display names.
type TheatreDetail struct {
	Theatre
	PatientDisplay *string `json:"patient_display,omitempty"`
	DoctorDisplay  *string `json:"doctor_display,omitempty"`
}

// Event identifies a real-time theatre notification.
const (
	EventTheatreNew    = "ot:new"
	EventTheatreUpdate = "ot:update"
	EventTheatreDelete = "ot:delete"
)
