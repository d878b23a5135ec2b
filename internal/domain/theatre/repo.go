package theatre

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the single write path for theatre records. Every read goes to
// the authoritative store; there is no caching layer, since a stale read here
// would directly cause a double-booking.
type Repository interface {
	Create(ctx context.Context, t *Theatre) error
	GetByID(ctx context.Context, id uuid.UUID) (*Theatre, error)
	GetByNumber(ctx context.Context, otNumber string) (*Theatre, error)
	// List returns all theatres ordered by ot_number.
	List(ctx context.Context) ([]*Theatre, error)
	// ListActiveBetween returns theatres in {scheduled, in-use} whose
	// scheduled window overlaps [start, end), excluding the given id.
	ListActiveBetween(ctx context.Context, start, end time.Time, exclude uuid.UUID) ([]*Theatre, error)
	// UpdateIfStatus persists t only if the stored row still has one of the
	// expected statuses. Returns false (and no error) when another writer got
	// there first; the caller treats that as a lost optimistic-concurrency
	// race.
	UpdateIfStatus(ctx context.Context, t *Theatre, expect ...Status) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
