package theatre

import "time"

// Status is the lifecycle state of a theatre.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusScheduled   Status = "scheduled"
	StatusInUse       Status = "in-use"
	StatusCleaning    Status = "cleaning"
	StatusMaintenance Status = "maintenance"
	StatusEmergency   Status = "emergency"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// ValidStatus reports whether s is one of the known theatre statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusAvailable, StatusScheduled, StatusInUse, StatusCleaning,
		StatusMaintenance, StatusEmergency, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Event is a requested status transition.
type Event string

const (
	EventSchedule        Event = "schedule"
	EventStart           Event = "start"
	EventEnd             Event = "end"
	EventCancel          Event = "cancel"
	EventEmergency       Event = "emergency"
	EventReturnToService Event = "return-to-service"
)

// transitions lists, per event, the statuses the event may fire from and the
// status it lands in. EventEmergency is legal from any state and is handled
// separately in ApplyTransition.
var transitions = map[Event]struct {
	from []Status
	to   Status
}{
	EventSchedule:        {from: []Status{StatusAvailable, StatusMaintenance}, to: StatusScheduled},
	EventStart:           {from: []Status{StatusScheduled, StatusEmergency}, to: StatusInUse},
	EventEnd:             {from: []Status{StatusInUse}, to: StatusCleaning},
	EventCancel:          {from: []Status{StatusScheduled, StatusInUse, StatusEmergency}, to: StatusAvailable},
	EventReturnToService: {from: []Status{StatusCleaning, StatusMaintenance}, to: StatusAvailable},
}

// CanTransition reports whether ev is legal from the given status.
func CanTransition(from Status, ev Event) bool {
	if ev == EventEmergency {
		return true
	}
	rule, ok := transitions[ev]
	if !ok {
		return false
	}
	for _, s := range rule.from {
		if s == from {
			return true
		}
	}
	return false
}

// ApplyTransition mutates t according to ev, or returns an
// InvalidTransitionError leaving t untouched. Side effects per event:
//
//	start: actual_start = now
//	end: actual_end = now
//	cancel: booking fields cleared
//	emergency: status forced to emergency; caller sets the level
func ApplyTransition(t *Theatre, ev Event, now time.Time) error {
	if !CanTransition(t.Status, ev) {
		return &InvalidTransitionError{From: t.Status, Event: ev}
	}

	if ev == EventEmergency {
		t.Status = StatusEmergency
		if t.EmergencyLevel < 1 {
			t.EmergencyLevel = 1
		}
		t.UpdatedAt = now
		return nil
	}

	rule := transitions[ev]
	switch ev {
	case EventStart:
		t.ActualStart = &now
	case EventEnd:
		t.ActualEnd = &now
	case EventCancel:
		t.clearBooking()
	}
	t.Status = rule.to
	t.UpdatedAt = now
	return nil
}
