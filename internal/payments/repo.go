package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists the payment fields of the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	SaveGatewayOrder(ctx context.Context, orderID uuid.UUID, gatewayOrderID string, raw json.RawMessage, at time.Time) error
	// MarkPaid records a verified payment against the order's own gateway order.
	// Only created or failed payments move to paid.
	MarkPaid(ctx context.Context, orderID uuid.UUID, gatewayOrderID, paymentID, signature string, at time.Time) (bool, error)
	ListStaleCreated(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	// MarkFailed moves a still-created gateway payment to failed.
	MarkFailed(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) SaveGatewayOrder(ctx context.Context, orderID uuid.UUID, gatewayOrderID string, raw json.RawMessage, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"gateway_order_id":   gatewayOrderID,
			"gateway_order":      raw,
			"gateway_created_at": at,
			"payment_status":     enums.PaymentStatusCreated,
		}).Error
}

func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID, gatewayOrderID, paymentID, signature string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND gateway_order_id = ? AND payment_status IN ?", orderID, gatewayOrderID,
			[]enums.PaymentStatus{enums.PaymentStatusCreated, enums.PaymentStatusFailed}).
		Updates(map[string]any{
			"payment_status":     enums.PaymentStatusPaid,
			"status":             enums.OrderStatusConfirmed,
			"gateway_payment_id": paymentID,
			"gateway_signature":  signature,
			"paid_at":            at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListStaleCreated(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ? AND gateway_created_at IS NOT NULL AND gateway_created_at < ?", enums.PaymentStatusCreated, cutoff).
		Order("gateway_created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *repository) MarkFailed(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND gateway_created_at < ?", orderID, enums.PaymentStatusCreated, cutoff).
		Update("payment_status", enums.PaymentStatusFailed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
