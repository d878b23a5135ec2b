package theatre

import (
	"time"

	"github.com/google/uuid"
)

// FindConflict scans active bookings for one whose scheduled window overlaps
// the half-open interval [start, end). When otNumber is non-empty the search
// is narrowed to that exact theatre; a conflict on a different theatre does
// not block scheduling there. Returns nil when no conflict exists.
func FindConflict(active []*Theatre, otNumber string, start, end time.Time, exclude uuid.UUID) *Theatre {
	for _, t := range active {
		if t.ID == exclude {
			continue
		}
		if t.Status != StatusScheduled && t.Status != StatusInUse {
			continue
		}
		if otNumber != "" && t.OTNumber != otNumber {
			continue
		}
		if t.Overlaps(start, end) {
			return t
		}
	}
	return nil
}

// PickAvailable returns the first theatre, in registry order, that is
// available and whose scheduled window (if any) does not overlap [start, end).
// Returns nil when every theatre is occupied or overlapping.
func PickAvailable(registry []*Theatre, start, end time.Time) *Theatre {
	for _, t := range registry {
		if t.Status != StatusAvailable {
			continue
		}
		if t.Overlaps(start, end) {
			continue
		}
		return t
	}
	return nil
}
