package delivery

import (
	"context"
	"time"

	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	"github.com/foodbowl/foodbowl-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository holds the shop order queries the delivery flow needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	OrderExists(ctx context.Context, orderID uuid.UUID) (bool, error)
	FindShopOrder(ctx context.Context, orderID, shopOrderID uuid.UUID) (*models.ShopOrder, error)
	OrdersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Order, error)
	ListAvailable(ctx context.Context, workerID uuid.UUID, limit int) ([]models.ShopOrder, error)
	ListAssigned(ctx context.Context, workerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ShopOrder, error)
	CountActive(ctx context.Context, workerID uuid.UUID) (int64, error)
	// Claim binds the worker to a ready, unassigned shop order. It reports
	// false when the row no longer matches.
	Claim(ctx context.Context, orderID, shopOrderID, workerID uuid.UUID, at time.Time) (bool, error)
	LinkAssignment(ctx context.Context, shopOrderID, assignmentID uuid.UUID) error
	AddRejection(ctx context.Context, shopOrderID, workerID uuid.UUID) error
	ResetAssignment(ctx context.Context, shopOrderID uuid.UUID) error
	MarkDelivered(ctx context.Context, shopOrderID, workerID uuid.UUID, at time.Time) (bool, error)
	Counts(ctx context.Context, workerID uuid.UUID, since time.Time) (Counts, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a delivery repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) OrderExists(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindShopOrder(ctx context.Context, orderID, shopOrderID uuid.UUID) (*models.ShopOrder, error) {
	var shopOrder models.ShopOrder
	err := r.db.WithContext(ctx).
		Where("id = ? AND order_id = ?", shopOrderID, orderID).
		First(&shopOrder).Error
	if err != nil {
		return nil, err
	}
	return &shopOrder, nil
}

func (r *repository) OrdersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Order, error) {
	out := make(map[uuid.UUID]models.Order, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Order
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *repository) ListAvailable(ctx context.Context, workerID uuid.UUID, limit int) ([]models.ShopOrder, error) {
	rejected := r.db.Model(&models.ShopOrderRejection{}).
		Select("1").
		Where("shop_order_rejections.shop_order_id = shop_orders.id AND shop_order_rejections.worker_id = ?", workerID)

	var rows []models.ShopOrder
	err := r.db.WithContext(ctx).
		Preload("Items", byPosition).
		Where("shop_orders.status = ? AND shop_orders.assigned_delivery_boy IS NULL", enums.ShopOrderStatusReady).
		Where("NOT EXISTS (?)", rejected).
		Order("shop_orders.created_at DESC").
		Order("shop_orders.position ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListAssigned(ctx context.Context, workerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ShopOrder, error) {
	query := r.db.WithContext(ctx).
		Preload("Items", byPosition).
		Where("assigned_delivery_boy = ? AND status IN ?", workerID, []enums.ShopOrderStatus{
			enums.ShopOrderStatusOutForDelivery,
			enums.ShopOrderStatusDelivered,
		})
	var rows []models.ShopOrder
	err := query.Scopes(pagination.Keyset("", cursor, limit)).Find(&rows).Error
	return rows, err
}

func (r *repository) CountActive(ctx context.Context, workerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ShopOrder{}).
		Where("assigned_delivery_boy = ? AND status IN ?", workerID, []enums.ShopOrderStatus{
			enums.ShopOrderStatusOutForDelivery,
			enums.ShopOrderStatusReady,
		}).
		Count(&count).Error
	return count, err
}

func (r *repository) Claim(ctx context.Context, orderID, shopOrderID, workerID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ShopOrder{}).
		Where("id = ? AND order_id = ? AND assigned_delivery_boy IS NULL AND status = ?", shopOrderID, orderID, enums.ShopOrderStatusReady).
		Updates(map[string]any{
			"assigned_delivery_boy":    workerID,
			"delivery_boy_response":    enums.DeliveryResponseAccepted,
			"delivery_boy_response_at": at,
			"status":                   enums.ShopOrderStatusOutForDelivery,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) LinkAssignment(ctx context.Context, shopOrderID, assignmentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ShopOrder{}).
		Where("id = ?", shopOrderID).
		Update("assignment_id", assignmentID).Error
}

func (r *repository) AddRejection(ctx context.Context, shopOrderID, workerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ShopOrderRejection{ShopOrderID: shopOrderID, WorkerID: workerID}).Error
}

func (r *repository) ResetAssignment(ctx context.Context, shopOrderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ShopOrder{}).
		Where("id = ?", shopOrderID).
		Updates(map[string]any{
			"assigned_delivery_boy":    nil,
			"delivery_boy_response":    enums.DeliveryResponsePending,
			"delivery_boy_response_at": nil,
			"assignment_id":            nil,
		}).Error
}

func (r *repository) MarkDelivered(ctx context.Context, shopOrderID, workerID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ShopOrder{}).
		Where("id = ? AND assigned_delivery_boy = ? AND status = ?", shopOrderID, workerID, enums.ShopOrderStatusOutForDelivery).
		Updates(map[string]any{
			"status":       enums.ShopOrderStatusDelivered,
			"delivered_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Counts(ctx context.Context, workerID uuid.UUID, since time.Time) (Counts, error) {
	var out Counts
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.ShopOrder{}).Where("assigned_delivery_boy = ?", workerID)
	}
	if err := base().Where("status = ?", enums.ShopOrderStatusDelivered).Count(&out.Total).Error; err != nil {
		return out, err
	}
	if err := base().Where("status = ? AND delivered_at >= ?", enums.ShopOrderStatusDelivered, since).Count(&out.Today).Error; err != nil {
		return out, err
	}
	if err := base().Where("status = ?", enums.ShopOrderStatusOutForDelivery).Count(&out.Pending).Error; err != nil {
		return out, err
	}
	return out, nil
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
