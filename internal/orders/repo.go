package orders

import (
	"context"

	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := withShopOrders(r.db.WithContext(ctx)).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindShopOrder(ctx context.Context, orderID, shopOrderID uuid.UUID) (*models.ShopOrder, error) {
	var shopOrder models.ShopOrder
	err := r.db.WithContext(ctx).
		Preload("Items", orderByPosition).
		Preload("Rejections").
		Where("id = ? AND order_id = ?", shopOrderID, orderID).
		First(&shopOrder).Error
	if err != nil {
		return nil, err
	}
	return &shopOrder, nil
}

func (r *repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := withShopOrders(r.db.WithContext(ctx)).Where("user_id = ?", userID)
	return r.page(query, cursor, limit)
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	owned := r.db.Model(&models.ShopOrder{}).Select("order_id").Where("owner_id = ?", ownerID)
	query := withShopOrders(r.db.WithContext(ctx)).Where("id IN (?)", owned)
	return r.page(query, cursor, limit)
}

func (r *repository) UpdateShopOrder(ctx context.Context, shopOrderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ShopOrder{}).
		Where("id = ?", shopOrderID).
		Updates(updates).Error
}

func (r *repository) page(query *gorm.DB, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := query.Scopes(pagination.Keyset("", cursor, limit)).Find(&rows).Error
	return rows, err
}

func withShopOrders(db *gorm.DB) *gorm.DB {
	return db.
		Preload("ShopOrders", orderByPosition).
		Preload("ShopOrders.Items", orderByPosition).
		Preload("ShopOrders.Rejections")
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
