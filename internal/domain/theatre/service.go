package theatre

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/metrics"
)

// Notifier publishes a theatre change event to connected clients. Delivery is
// at-most-once and best-effort; implementations must never fail the
// originating request.
type Notifier interface {
	TheatrePublished(ctx context.Context, event string, t *Theatre)
}

// Service orchestrates validation, conflict checking, the status state
// machine, and persistence for theatre operations. It is the only writer of
// theatre status and booking fields.
type Service struct {
	repo     Repository
	patients identity.PatientDirectory
	staff    identity.StaffDirectory
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients identity.PatientDirectory, staff identity.StaffDirectory, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		staff:    staff,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// DefaultDurationMinutes is assumed when a schedule request omits duration.
const DefaultDurationMinutes = 60

// MinDurationMinutes is the shortest bookable procedure.
const MinDurationMinutes = 15

// ScheduleRequest is the payload for scheduling a surgery into a theatre.
type ScheduleRequest struct {
	PatientID       *uuid.UUID `json:"patient_id,omitempty"`
	PatientName     string     `json:"patient_name,omitempty"`
	SurgeryType     string     `json:"surgery_type"`
	ScheduledStart  time.Time  `json:"scheduled_start"`
	DurationMinutes int        `json:"duration"`
	DoctorID        *uuid.UUID `json:"doctor_id,omitempty"`
	DepartmentID    *uuid.UUID `json:"department,omitempty"`
	Theatre         string     `json:"theatre,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

func (s *Service) validateSchedule(req *ScheduleRequest) error {
	if req.SurgeryType == "" {
		return &ValidationError{Field: "surgery_type", Reason: "required"}
	}
	if req.ScheduledStart.IsZero() {
		return &ValidationError{Field: "scheduled_start", Reason: "required"}
	}
	if req.ScheduledStart.Before(s.now().Add(-time.Minute)) {
		return &ValidationError{Field: "scheduled_start", Reason: "must not be in the past"}
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = DefaultDurationMinutes
	}
	if req.DurationMinutes < MinDurationMinutes {
		return &ValidationError{Field: "duration", Reason: fmt.Sprintf("must be at least %d minutes", MinDurationMinutes)}
	}
	if req.PatientID == nil && req.PatientName == "" {
		return &ValidationError{Field: "patient", Reason: "either patient_id or patient_name is required"}
	}
	return nil
}

// Schedule books a surgery into the theatre identified by id. When the
// request names a different theatre, that theatre is resolved instead.
func (s *Service) Schedule(ctx context.Context, id uuid.UUID, req ScheduleRequest) (*Theatre, error) {
	if err := s.validateSchedule(&req); err != nil {
		metrics.IncSchedule("invalid")
		return nil, err
	}

	resolve := func(ctx context.Context) (*Theatre, error) {
		target, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if req.Theatre != "" && req.Theatre != target.OTNumber {
			if target, err = s.repo.GetByNumber(ctx, req.Theatre); err != nil {
				return nil, err
			}
		}
		if target.Status != StatusAvailable && target.Status != StatusMaintenance {
			return nil, &InvalidTransitionError{From: target.Status, Event: EventSchedule}
		}
		return target, nil
	}

	return s.scheduleInto(ctx, resolve, req)
}

// ScheduleAny books a surgery into the first available, non-overlapping
// theatre in registry order.
func (s *Service) ScheduleAny(ctx context.Context, req ScheduleRequest) (*Theatre, error) {
	if err := s.validateSchedule(&req); err != nil {
		metrics.IncSchedule("invalid")
		return nil, err
	}

	end := req.ScheduledStart.Add(time.Duration(req.DurationMinutes) * time.Minute)
	resolve := func(ctx context.Context) (*Theatre, error) {
		registry, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		target := PickAvailable(registry, req.ScheduledStart, end)
		if target == nil {
			return nil, ErrNoTheatreAvailable
		}
		return target, nil
	}

	return s.scheduleInto(ctx, resolve, req)
}

// scheduleInto runs the resolve -> conflict-check -> transition -> conditional
// persist sequence. A lost optimistic-concurrency race is retried once
// against a freshly resolved theatre before surfacing ConflictError.
func (s *Service) scheduleInto(ctx context.Context, resolve func(context.Context) (*Theatre, error), req ScheduleRequest) (*Theatre, error) {
	start := req.ScheduledStart
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)

	var lastTarget *Theatre
	for attempt := 0; attempt < 2; attempt++ {
		target, err := resolve(ctx)
		if err != nil {
			// A theatre that stopped being eligible between attempts was
			// claimed by a concurrent request; report that as a conflict.
			var ite *InvalidTransitionError
			if attempt > 0 && errors.As(err, &ite) && lastTarget != nil {
				metrics.IncSchedule("conflict")
				return nil, &ConflictError{OTNumber: lastTarget.OTNumber}
			}
			metrics.IncSchedule("rejected")
			return nil, err
		}
		lastTarget = target

		active, err := s.repo.ListActiveBetween(ctx, start, end, target.ID)
		if err != nil {
			metrics.IncSchedule("error")
			return nil, fmt.Errorf("conflict check: %w", err)
		}
		if c := FindConflict(active, target.OTNumber, start, end, target.ID); c != nil {
			metrics.IncSchedule("conflict")
			cs, ce, _ := c.Window()
			return nil, &ConflictError{OTNumber: c.OTNumber, Start: cs, End: ce}
		}

		if err := s.resolveReferences(ctx, target, req); err != nil {
			metrics.IncSchedule("rejected")
			return nil, err
		}

		if err := ApplyTransition(target, EventSchedule, s.now()); err != nil {
			metrics.IncSchedule("rejected")
			return nil, err
		}
		target.SurgeryType = &req.SurgeryType
		target.ScheduledStart = &start
		target.ScheduledEnd = &end
		target.DurationMinutes = req.DurationMinutes
		if req.PatientName != "" {
			target.PatientName = &req.PatientName
		}
		if req.DepartmentID != nil {
			target.DepartmentID = req.DepartmentID
		}
		if req.Notes != "" {
			target.Notes = &req.Notes
		}

		ok, err := s.repo.UpdateIfStatus(ctx, target, StatusAvailable, StatusMaintenance)
		if err != nil {
			metrics.IncSchedule("error")
			return nil, fmt.Errorf("persist schedule: %w", err)
		}
		if !ok {
			// Another writer claimed the theatre between our read and write.
			s.logger.Warn().Str("ot_number", target.OTNumber).Msg("lost scheduling race, retrying")
			continue
		}

		metrics.IncSchedule("scheduled")
		metrics.IncTransition(string(EventSchedule))
		s.publish(ctx, EventTheatreUpdate, target)
		return target, nil
	}

	metrics.IncSchedule("conflict")
	return nil, &ConflictError{OTNumber: lastTarget.OTNumber}
}

func (s *Service) resolveReferences(ctx context.Context, target *Theatre, req ScheduleRequest) error {
	if req.PatientID != nil {
		if _, err := s.patients.GetPatient(ctx, *req.PatientID); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return fmt.Errorf("patient %s: %w", req.PatientID, ErrNotFound)
			}
			return fmt.Errorf("resolve patient: %w", err)
		}
		target.PatientID = req.PatientID
	}
	if req.DoctorID != nil {
		doctor, err := s.staff.GetStaff(ctx, *req.DoctorID)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return fmt.Errorf("doctor %s: %w", req.DoctorID, ErrNotFound)
			}
			return fmt.Errorf("resolve doctor: %w", err)
		}
		if doctor.Role != identity.RoleDoctor {
			return fmt.Errorf("doctor %s: %w", req.DoctorID, ErrNotFound)
		}
		target.DoctorID = req.DoctorID
	}
	return nil
}

// transition loads a theatre, applies ev, and persists with a conditional
// write keyed on the event's legal source statuses. mutate, when non-nil,
// runs after the transition succeeds and before persisting.
func (s *Service) transition(ctx context.Context, id uuid.UUID, ev Event, expect []Status, mutate func(*Theatre)) (*Theatre, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ApplyTransition(t, ev, s.now()); err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(t)
	}
	ok, err := s.repo.UpdateIfStatus(ctx, t, expect...)
	if err != nil {
		return nil, fmt.Errorf("persist %s: %w", ev, err)
	}
	if !ok {
		return nil, &ConflictError{OTNumber: t.OTNumber}
	}
	metrics.IncTransition(string(ev))
	s.publish(ctx, EventTheatreUpdate, t)
	return t, nil
}

// Start begins the procedure, recording the actual start time.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Theatre, error) {
	return s.transition(ctx, id, EventStart,
		[]Status{StatusScheduled, StatusEmergency}, nil)
}

// End finishes the procedure and moves the theatre to cleaning.
func (s *Service) End(ctx context.Context, id uuid.UUID) (*Theatre, error) {
	return s.transition(ctx, id, EventEnd, []Status{StatusInUse}, nil)
}

// Cancel aborts the current booking and returns the theatre to available,
// clearing all booking fields. Notes are replaced by the cancellation notes,
// or cleared when none are given. Cancelling an available theatre is rejected
// as an invalid transition.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, notes string) (*Theatre, error) {
	return s.transition(ctx, id, EventCancel,
		[]Status{StatusScheduled, StatusInUse, StatusEmergency},
		func(t *Theatre) {
			t.Notes = nil
			if notes != "" {
				t.Notes = &notes
			}
		})
}

// ReturnToService brings a theatre back to available after cleaning or
// maintenance.
func (s *Service) ReturnToService(ctx context.Context, id uuid.UUID) (*Theatre, error) {
	return s.transition(ctx, id, EventReturnToService,
		[]Status{StatusCleaning, StatusMaintenance},
		func(t *Theatre) { t.clearBooking() })
}

var allStatuses = []Status{
	StatusAvailable, StatusScheduled, StatusInUse, StatusCleaning,
	StatusMaintenance, StatusEmergency, StatusCompleted, StatusCancelled,
}

// SetEmergency flags the theatre for emergency use, overriding any in-flight
// scheduling. Level defaults to the highest when not given.
func (s *Service) SetEmergency(ctx context.Context, id uuid.UUID, level int, notes string) (*Theatre, error) {
	if level < 0 || level > 5 {
		return nil, &ValidationError{Field: "emergency_level", Reason: "must be between 0 and 5"}
	}
	if level == 0 {
		level = 5
	}
	return s.transition(ctx, id, EventEmergency, allStatuses, func(t *Theatre) {
		t.EmergencyLevel = level
		if notes != "" {
			t.Notes = &notes
		}
	})
}

// SetStatus is the staff-level direct override. It bypasses the transition
// table but still rejects unknown statuses; moving to available clears the
// booking.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status, emergencyLevel int) (*Theatre, error) {
	if !ValidStatus(status) {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if emergencyLevel < 0 || emergencyLevel > 5 {
		return nil, &ValidationError{Field: "emergency_level", Reason: "must be between 0 and 5"}
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Status = status
	t.EmergencyLevel = emergencyLevel
	if status == StatusAvailable {
		t.clearBooking()
	}
	t.UpdatedAt = s.now()
	ok, err := s.repo.UpdateIfStatus(ctx, t, allStatuses...)
	if err != nil {
		return nil, fmt.Errorf("persist status override: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.publish(ctx, EventTheatreUpdate, t)
	return t, nil
}

// Create registers a new theatre by label. The theatre starts available.
func (s *Service) Create(ctx context.Context, otNumber string) (*Theatre, error) {
	if otNumber == "" {
		return nil, &ValidationError{Field: "ot_number", Reason: "required"}
	}
	if _, err := s.repo.GetByNumber(ctx, otNumber); err == nil {
		return nil, &ValidationError{Field: "ot_number", Reason: "a theatre with this number already exists"}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check ot_number: %w", err)
	}

	t := &Theatre{
		OTNumber:        otNumber,
		Status:          StatusAvailable,
		DurationMinutes: DefaultDurationMinutes,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create theatre: %w", err)
	}
	s.publish(ctx, EventTheatreNew, t)
	return t, nil
}

// Delete decommissions a theatre. A theatre carrying an active booking cannot
// be removed; cancel it first.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != StatusAvailable && t.Status != StatusMaintenance {
		return &InvalidTransitionError{From: t.Status, Event: "delete"}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, EventTheatreDelete, t)
	return nil
}

// List returns every theatre in registry order.
func (s *Service) List(ctx context.Context) ([]*Theatre, error) {
	return s.repo.List(ctx)
}

// Get returns a single theatre with patient and doctor references resolved to
// display names. Resolution failures degrade to the bare record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*TheatreDetail, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &TheatreDetail{Theatre: *t}
	if t.PatientID != nil {
		if p, err := s.patients.GetPatient(ctx, *t.PatientID); err == nil {
			detail.PatientDisplay = &p.Name
		} else {
			s.logger.Warn().Err(err).Str("patient_id", t.PatientID.String()).Msg("failed to resolve patient")
		}
	}
	if t.DoctorID != nil {
		if d, err := s.staff.GetStaff(ctx, *t.DoctorID); err == nil {
			detail.DoctorDisplay = &d.Name
		} else {
			s.logger.Warn().Err(err).Str("doctor_id", t.DoctorID.String()).Msg("failed to resolve doctor")
		}
	}
	return detail, nil
}

// publish fans the event out. Failures never propagate to the caller; the
// mutation has already been persisted and the event is only a hint to
// refresh.
func (s *Service) publish(ctx context.Context, event string, t *Theatre) {
	if s.notifier == nil {
		return
	}
	s.notifier.TheatrePublished(ctx, event, t)
	metrics.IncEventPublished(event)
}
