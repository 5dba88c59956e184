package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foodbowl/foodbowl-backend/pkg/db"
	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
)

// OpenSQLite opens a private in-memory SQLite database with the full schema.
// The pool is pinned to one connection so transactions serialise the way row
// locks would in Postgres.
func OpenSQLite(t *testing.T) *db.Client {
	t.Helper()
	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(models.All()...))
	return db.FromGorm(conn)
}

func SeedUser(t *testing.T, client *db.Client, role enums.UserRole) models.User {
	t.Helper()
	id := uuid.New()
	user := models.User{
		ID:       id,
		FullName: "User " + id.String()[:8],
		Email:    id.String() + "@foodbowl.test",
		Mobile:   "98765" + id.String()[:5],
		Role:     role,
	}
	require.NoError(t, client.DB().Create(&user).Error)
	return user
}

func SeedShop(t *testing.T, client *db.Client, ownerID uuid.UUID) models.Shop {
	t.Helper()
	shop := models.Shop{ID: uuid.New(), Name: "Spice Route", OwnerID: ownerID, City: "Pune", Address: "FC Road"}
	require.NoError(t, client.DB().Create(&shop).Error)
	return shop
}

func SeedItem(t *testing.T, client *db.Client, shopID uuid.UUID, name, price string) models.Item {
	t.Helper()
	item := models.Item{ID: uuid.New(), ShopID: shopID, Name: name, Price: decimal.RequireFromString(price)}
	require.NoError(t, client.DB().Create(&item).Error)
	return item
}

// Fixture is a placed single-shop order ready for delivery tests.
type Fixture struct {
	Customer  models.User
	Owner     models.User
	Shop      models.Shop
	Order     models.Order
	ShopOrder models.ShopOrder
}

// SeedOrder writes an order with one shop order in the given status.
func SeedOrder(t *testing.T, client *db.Client, status enums.ShopOrderStatus) Fixture {
	t.Helper()
	customer := SeedUser(t, client, enums.UserRoleUser)
	owner := SeedUser(t, client, enums.UserRoleOwner)
	shop := SeedShop(t, client, owner.ID)
	return SeedOrderFor(t, client, customer, owner, shop, status)
}

// SeedOrderFor writes an order for existing actors, letting tests share a shop.
func SeedOrderFor(t *testing.T, client *db.Client, customer, owner models.User, shop models.Shop, status enums.ShopOrderStatus) Fixture {
	t.Helper()
	price := decimal.RequireFromString("129.5")

	order := models.Order{
		ID:            uuid.New(),
		UserID:        customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		DeliveryAddress: models.DeliveryAddress{
			Text:      "12 MG Road",
			Latitude:  18.5204,
			Longitude: 73.8567,
		},
		Status:        enums.OrderStatusPending,
		TotalAmount:   price,
		PaymentStatus: enums.PaymentStatusPending,
	}
	require.NoError(t, client.DB().Omit("ShopOrders").Create(&order).Error)

	shopOrder := models.ShopOrder{
		ID:                  uuid.New(),
		OrderID:             order.ID,
		ShopID:              shop.ID,
		OwnerID:             owner.ID,
		Subtotal:            price,
		Status:              status,
		DeliveryBoyResponse: enums.DeliveryResponsePending,
	}
	require.NoError(t, client.DB().Omit("Items", "Rejections").Create(&shopOrder).Error)

	line := models.ShopOrderItem{
		ID:          uuid.New(),
		ShopOrderID: shopOrder.ID,
		ItemID:      uuid.New(),
		Name:        "Paneer Tikka",
		Price:       price,
		Quantity:    1,
	}
	require.NoError(t, client.DB().Create(&line).Error)

	// keep created_at strictly increasing so newest-first ordering is stable
	time.Sleep(2 * time.Millisecond)

	return Fixture{Customer: customer, Owner: owner, Shop: shop, Order: order, ShopOrder: shopOrder}
}
