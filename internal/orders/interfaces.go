package orders

import (
	"context"

	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for the order aggregate and its shop orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindShopOrder(ctx context.Context, orderID, shopOrderID uuid.UUID) (*models.ShopOrder, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	UpdateShopOrder(ctx context.Context, shopOrderID uuid.UUID, updates map[string]any) error
}

// ContactLookup resolves user contact details for rendering.
type ContactLookup interface {
	ContactsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error)
}

// ShopLookup resolves shop details for rendering.
type ShopLookup interface {
	ShopsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Shop, error)
}
