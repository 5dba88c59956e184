package ledger

import (
	"context"
	"time"

	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for delivery assignment ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.DeliveryAssignment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error)
	// MarkCompleted flips an assigned entry to completed. It reports false when
	// no assigned entry with that id exists.
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ReleaseOpen closes any assigned entry for the shop order without completing it.
	ReleaseOpen(ctx context.Context, shopOrderID uuid.UUID, at time.Time) (int64, error)
	ListByShopOrder(ctx context.Context, shopOrderID uuid.UUID) ([]models.DeliveryAssignment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.DeliveryAssignment) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error) {
	var entry models.DeliveryAssignment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("id = ? AND status = ?", id, enums.AssignmentStatusAssigned).
		Updates(map[string]any{
			"status":       enums.AssignmentStatusCompleted,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ReleaseOpen(ctx context.Context, shopOrderID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("shop_order_id = ? AND status = ?", shopOrderID, enums.AssignmentStatusAssigned).
		Updates(map[string]any{
			"status":       enums.AssignmentStatusReleased,
			"completed_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ListByShopOrder(ctx context.Context, shopOrderID uuid.UUID) ([]models.DeliveryAssignment, error) {
	var entries []models.DeliveryAssignment
	if err := r.db.WithContext(ctx).
		Where("shop_order_id = ?", shopOrderID).
		Order("accepted_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
