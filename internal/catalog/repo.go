package catalog

import (
	"context"

	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the read side of the shop/item catalog consulted at order placement.
type Repository interface {
	ShopsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Shop, error)
	ItemsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ShopsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Shop, error) {
	out := make(map[uuid.UUID]models.Shop, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Shop
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *repository) ItemsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error) {
	out := make(map[uuid.UUID]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
