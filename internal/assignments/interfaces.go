package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/foodway/foodway-backend/pkg/db/models"
)

// Store persists assignments. Claim, MarkDelivered and ExpireDue are check-and-set operations
// scoped to one assignment; implementations must not serialize unrelated assignments.
type Store interface {
	Insert(ctx context.Context, a *models.DeliveryAssignment) error
	Get(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error)
	// ListAvailable returns available assignments whose dispatch deadline is after now,
	// oldest first.
	ListAvailable(ctx context.Context, now time.Time) ([]models.DeliveryAssignment, error)
	ListClaimedBy(ctx context.Context, workerID string) ([]models.DeliveryAssignment, error)
	// Claim fails with ErrNotAvailable once the dispatch deadline has passed, swept or not.
	Claim(ctx context.Context, id uuid.UUID, workerID string, at time.Time) (*models.DeliveryAssignment, error)
	// MarkDelivered moves a claimed assignment to delivered and bumps the claimant's
	// lifetime counter plus the supplied month bucket.
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time, monthBucket string) (*models.DeliveryAssignment, error)
	// ExpireDue expires available assignments whose dispatch deadline is at or before now.
	ExpireDue(ctx context.Context, now time.Time) ([]models.DeliveryAssignment, error)
	// ListDelivered returns the worker's deliveries in [from, to), most recent first.
	ListDelivered(ctx context.Context, workerID string, from, to time.Time) ([]models.DeliveryAssignment, error)
	Counters(ctx context.Context, workerID string, buckets ...string) (map[string]int64, error)
}

// claimRejection maps the state observed after a failed claim to the caller-facing error.
func claimRejection(a *models.DeliveryAssignment) error {
	if a == nil {
		return ErrNotFound
	}
	if a.ClaimedBy != nil && !a.State.IsTerminal() {
		return ErrAlreadyClaimed
	}
	return ErrNotAvailable
}
