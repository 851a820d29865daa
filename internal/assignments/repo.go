package assignments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foodway/foodway-backend/internal/repo"
	"github.com/foodway/foodway-backend/pkg/db"
	"github.com/foodway/foodway-backend/pkg/db/models"
	"github.com/foodway/foodway-backend/pkg/enums"
)

// Repository is the SQL-backed Store. Claim is a conditional UPDATE so the database arbitrates races.
type Repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

func (r *Repository) Insert(ctx context.Context, a *models.DeliveryAssignment) error {
	err := r.DB(ctx).Create(a).Error
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicate
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error) {
	return r.get(r.DB(ctx), id)
}

func (r *Repository) get(tx *gorm.DB, id uuid.UUID) (*models.DeliveryAssignment, error) {
	var row models.DeliveryAssignment
	err := tx.Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) ListAvailable(ctx context.Context, now time.Time) ([]models.DeliveryAssignment, error) {
	var rows []models.DeliveryAssignment
	err := r.DB(ctx).
		Where("state = ? AND dispatch_deadline > ?", enums.AssignmentStateAvailable, now.UTC()).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListClaimedBy(ctx context.Context, workerID string) ([]models.DeliveryAssignment, error) {
	var rows []models.DeliveryAssignment
	err := r.DB(ctx).
		Where("state = ? AND claimed_by = ?", enums.AssignmentStateClaimed, workerID).
		Order("claimed_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Claim(ctx context.Context, id uuid.UUID, workerID string, at time.Time) (*models.DeliveryAssignment, error) {
	at = at.UTC()
	affected, err := repo.Affected(r.DB(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("id = ? AND state = ? AND claimed_by IS NULL AND dispatch_deadline > ?", id, enums.AssignmentStateAvailable, at).
		Updates(map[string]any{
			"state":      enums.AssignmentStateClaimed,
			"claimed_by": workerID,
			"claimed_at": at,
			"updated_at": at,
		}))
	if err != nil {
		return nil, err
	}

	row, err := r.Get(ctx, id)
	if affected == 1 {
		return row, err
	}
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return nil, claimRejection(row)
}

func (r *Repository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time, monthBucket string) (*models.DeliveryAssignment, error) {
	at = at.UTC()
	var out *models.DeliveryAssignment
	err := r.InTx(ctx, func(tx *gorm.DB) error {
		affected, err := repo.Affected(tx.Model(&models.DeliveryAssignment{}).
			Where("id = ? AND state = ?", id, enums.AssignmentStateClaimed).
			Updates(map[string]any{
				"state":        enums.AssignmentStateDelivered,
				"delivered_at": at,
				"updated_at":   at,
			}))
		if err != nil {
			return err
		}
		row, err := r.get(tx, id)
		if err != nil {
			return err
		}
		if affected != 1 {
			return ErrNotClaimed
		}
		for _, bucket := range []string{models.CounterBucketTotal, monthBucket} {
			if err := incrementCounter(tx, *row.ClaimedBy, bucket, at); err != nil {
				return err
			}
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func incrementCounter(tx *gorm.DB, workerID, bucket string, at time.Time) error {
	row := models.WorkerDeliveryCounter{WorkerID: workerID, Bucket: bucket, Count: 1, UpdatedAt: at}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "worker_id"}, {Name: "bucket"}},
		DoUpdates: clause.Assignments(map[string]any{
			"count":      gorm.Expr("worker_delivery_counters.count + 1"),
			"updated_at": at,
		}),
	}).Create(&row).Error
}

func (r *Repository) ExpireDue(ctx context.Context, now time.Time) ([]models.DeliveryAssignment, error) {
	now = now.UTC()
	var candidates []uuid.UUID
	err := r.DB(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("state = ? AND dispatch_deadline <= ?", enums.AssignmentStateAvailable, now).
		Order("created_at ASC").
		Pluck("id", &candidates).Error
	if err != nil {
		return nil, err
	}

	var expired []models.DeliveryAssignment
	for _, id := range candidates {
		affected, err := repo.Affected(r.DB(ctx).
			Model(&models.DeliveryAssignment{}).
			Where("id = ? AND state = ?", id, enums.AssignmentStateAvailable).
			Updates(map[string]any{
				"state":      enums.AssignmentStateExpired,
				"expired_at": now,
				"updated_at": now,
			}))
		if err != nil {
			return expired, err
		}
		// a concurrent claim won the row
		if affected == 0 {
			continue
		}
		row, err := r.Get(ctx, id)
		if err != nil {
			return expired, err
		}
		expired = append(expired, *row)
	}
	return expired, nil
}

func (r *Repository) ListDelivered(ctx context.Context, workerID string, from, to time.Time) ([]models.DeliveryAssignment, error) {
	var rows []models.DeliveryAssignment
	err := r.DB(ctx).
		Where("state = ? AND claimed_by = ?", enums.AssignmentStateDelivered, workerID).
		Where("delivered_at >= ? AND delivered_at < ?", from.UTC(), to.UTC()).
		Order("delivered_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Counters(ctx context.Context, workerID string, buckets ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		out[b] = 0
	}
	if len(buckets) == 0 {
		return out, nil
	}
	var rows []models.WorkerDeliveryCounter
	err := r.DB(ctx).
		Where("worker_id = ? AND bucket IN ?", workerID, buckets).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.Bucket] = row.Count
	}
	return out, nil
}
