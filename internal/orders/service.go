package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foodbowl/foodbowl-backend/internal/catalog"
	"github.com/foodbowl/foodbowl-backend/internal/ledger"
	"github.com/foodbowl/foodbowl-backend/internal/payments"
	"github.com/foodbowl/foodbowl-backend/pkg/db"
	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
	"github.com/foodbowl/foodbowl-backend/pkg/outbox"
	"github.com/foodbowl/foodbowl-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// GatewayOrderCreator opens a payment gateway order for an app order.
type GatewayOrderCreator interface {
	CreateGatewayOrder(ctx context.Context, appOrderID uuid.UUID) (*payments.GatewayOrderResult, error)
}

// Service exposes customer and owner order operations.
type Service interface {
	PlaceOrder(ctx context.Context, actorID uuid.UUID, input PlaceOrderInput) (*PlacedOrder, error)
	ApplyStatusChange(ctx context.Context, actorID uuid.UUID, input StatusChangeInput) (*OrderView, error)
	GetOrder(ctx context.Context, actorID, orderID uuid.UUID) (*OrderView, error)
	ListUserOrders(ctx context.Context, actorID uuid.UUID, params pagination.Params) (*pagination.Page[OrderView], error)
	ListOwnerOrders(ctx context.Context, actorID uuid.UUID, params pagination.Params) (*pagination.Page[OrderView], error)
}

type service struct {
	repo      Repository
	tx        txRunner
	catalog   catalog.Repository
	presenter *Presenter
	ledger    ledger.Service
	outbox    outboxPublisher
	gateway   GatewayOrderCreator
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the orders service. gateway may be nil when online
// payments are disabled.
func NewService(
	repo Repository,
	tx txRunner,
	catalogRepo catalog.Repository,
	presenter *Presenter,
	ledgerSvc ledger.Service,
	publisher outboxPublisher,
	gateway GatewayOrderCreator,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if presenter == nil {
		return nil, fmt.Errorf("presenter required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      repo,
		tx:        tx,
		catalog:   catalogRepo,
		presenter: presenter,
		ledger:    ledgerSvc,
		outbox:    publisher,
		gateway:   gateway,
		logg:      logg,
		now:       time.Now,
	}, nil
}

type shopGroup struct {
	shopID uuid.UUID
	lines  []CartItemInput
}

// groupByShop splits the cart by shop in first-seen order and merges repeated items.
func groupByShop(items []CartItemInput) []shopGroup {
	var groups []shopGroup
	index := map[uuid.UUID]int{}
	for _, item := range items {
		pos, ok := index[item.ShopID]
		if !ok {
			pos = len(groups)
			index[item.ShopID] = pos
			groups = append(groups, shopGroup{shopID: item.ShopID})
		}
		merged := false
		for i := range groups[pos].lines {
			if groups[pos].lines[i].ItemID == item.ItemID {
				groups[pos].lines[i].Quantity += item.Quantity
				merged = true
				break
			}
		}
		if !merged {
			groups[pos].lines = append(groups[pos].lines, item)
		}
	}
	return groups
}

func validatePlacement(input PlaceOrderInput) (enums.PaymentMethod, error) {
	if len(input.CartItems) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if strings.TrimSpace(input.DeliveryAddress.Text) == "" || input.DeliveryAddress.Latitude == nil || input.DeliveryAddress.Longitude == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "complete delivery address required")
	}
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(input.PaymentMethod))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	for i, item := range input.CartItems {
		if item.ItemID == uuid.Nil || item.ShopID == uuid.Nil {
			return "", pkgerrors.Newf(pkgerrors.CodeValidation, "cart item %d is missing item or shop", i)
		}
		if item.Quantity < 1 {
			return "", pkgerrors.Newf(pkgerrors.CodeValidation, "cart item %d quantity must be at least 1", i)
		}
	}
	return method, nil
}

func (s *service) PlaceOrder(ctx context.Context, actorID uuid.UUID, input PlaceOrderInput) (*PlacedOrder, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	method, err := validatePlacement(input)
	if err != nil {
		return nil, err
	}
	groups := groupByShop(input.CartItems)

	shopIDs := make([]uuid.UUID, 0, len(groups))
	var itemIDs []uuid.UUID
	for _, group := range groups {
		shopIDs = append(shopIDs, group.shopID)
		for _, line := range group.lines {
			itemIDs = append(itemIDs, line.ItemID)
		}
	}

	var (
		shops map[uuid.UUID]models.Shop
		items map[uuid.UUID]models.Item
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		shops, err = s.catalog.ShopsByIDs(gctx, shopIDs)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.catalog.ItemsByIDs(gctx, itemIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "load catalog")
	}

	order := &models.Order{
		ID:            uuid.New(),
		UserID:        actorID,
		PaymentMethod: method,
		DeliveryAddress: models.DeliveryAddress{
			Text:      strings.TrimSpace(input.DeliveryAddress.Text),
			Latitude:  *input.DeliveryAddress.Latitude,
			Longitude: *input.DeliveryAddress.Longitude,
		},
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusCreated,
	}
	if method == enums.PaymentMethodCash {
		order.PaymentStatus = enums.PaymentStatusPending
	}

	total := decimal.Zero
	for pos, group := range groups {
		shop, ok := shops[group.shopID]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "shop %s not found", group.shopID)
		}
		shopOrder := models.ShopOrder{
			ID:                  uuid.New(),
			OrderID:             order.ID,
			ShopID:              shop.ID,
			OwnerID:             shop.OwnerID,
			Status:              enums.ShopOrderStatusPending,
			DeliveryBoyResponse: enums.DeliveryResponsePending,
			Position:            pos,
		}
		subtotal := decimal.Zero
		for linePos, line := range group.lines {
			item, ok := items[line.ItemID]
			if !ok || item.ShopID != shop.ID {
				return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "item %s not found in shop %s", line.ItemID, shop.ID)
			}
			subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
			shopOrder.Items = append(shopOrder.Items, models.ShopOrderItem{
				ID:          uuid.New(),
				ShopOrderID: shopOrder.ID,
				ItemID:      item.ID,
				Name:        item.Name,
				Price:       item.Price,
				Quantity:    line.Quantity,
				Position:    linePos,
			})
		}
		shopOrder.Subtotal = subtotal
		total = total.Add(subtotal)
		order.ShopOrders = append(order.ShopOrders, shopOrder)
	}

	if input.TotalAmount != nil && !input.TotalAmount.Equal(total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total amount does not match cart").
			WithDetails(map[string]string{"expected": total.StringFixed(2), "received": input.TotalAmount.StringFixed(2)})
	}
	order.TotalAmount = total

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		refs := make([]ShopOrderRef, 0, len(order.ShopOrders))
		for _, so := range order.ShopOrders {
			refs = append(refs, ShopOrderRef{ShopOrderID: so.ID, ShopID: so.ShopID, OwnerID: so.OwnerID})
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.Actor(actorID, enums.UserRoleUser),
			Data: OrderPlacedEvent{
				OrderID:          order.ID,
				UserID:           actorID,
				PaymentMethod:    method,
				TotalAmountPaise: order.TotalAmountPaise,
				ShopOrders:       refs,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "place order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"shop_orders":  len(order.ShopOrders),
		"amount_paise": order.TotalAmountPaise,
	})
	s.logg.Info(logCtx, "order placed")

	placed := &PlacedOrder{}
	if method.UsesGateway() && s.gateway != nil {
		result, err := s.gateway.CreateGatewayOrder(ctx, order.ID)
		if err != nil {
			// the order stands; the client retries gateway creation on its own
			s.logg.Error(logCtx, "gateway order creation failed", err)
		} else {
			placed.Payment = result
			order.GatewayOrderID = &result.GatewayOrderID
		}
	}

	view, err := s.presenter.Order(ctx, *order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "render order")
	}
	placed.OrderView = *view
	return placed, nil
}

func (s *service) ApplyStatusChange(ctx context.Context, actorID uuid.UUID, input StatusChangeInput) (*OrderView, error) {
	if input.OrderID == uuid.Nil || input.ShopOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId and shopOrderId are required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	next, err := enums.ParseShopOrderStatus(strings.TrimSpace(input.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.Exists(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "load order")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		shopOrder, err := repo.FindShopOrder(ctx, input.OrderID, input.ShopOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "shop order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "load shop order")
		}
		if shopOrder.OwnerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not authorized to update this order")
		}

		now := s.now().UTC()
		updates := map[string]any{"status": next}
		// ready re-opens the shop order for the pool; the rejection set survives
		reopen := next == enums.ShopOrderStatusReady ||
			(shopOrder.AssignedDeliveryBoy != nil && !next.AllowsAssignment())
		if reopen {
			updates["assigned_delivery_boy"] = nil
			updates["delivery_boy_response"] = enums.DeliveryResponsePending
			updates["delivery_boy_response_at"] = nil
			updates["assignment_id"] = nil
			if shopOrder.AssignmentID != nil {
				if _, err := s.ledger.WithTx(tx).Release(ctx, shopOrder.ID); err != nil {
					return err
				}
			}
		}
		if next == enums.ShopOrderStatusDelivered && shopOrder.Status != enums.ShopOrderStatusDelivered {
			if shopOrder.DeliveredAt == nil {
				updates["delivered_at"] = now
			}
			if shopOrder.AssignmentID != nil {
				if err := s.ledger.WithTx(tx).Complete(ctx, *shopOrder.AssignmentID); err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
					return err
				}
			}
		}

		if err := repo.UpdateShopOrder(ctx, shopOrder.ID, updates); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "assigned delivery worker already holds an active order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "update shop order")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShopOrderStatusChanged,
			AggregateType: enums.AggregateShopOrder,
			AggregateID:   shopOrder.ID,
			Actor:         outbox.Actor(actorID, enums.UserRoleOwner),
			Data: StatusChangedEvent{
				OrderID:     input.OrderID,
				ShopOrderID: shopOrder.ID,
				From:        shopOrder.Status,
				To:          next,
				Reopened:    reopen,
			},
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "emit status change")
		}

		order, err = repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":      input.OrderID.String(),
		"shop_order_id": input.ShopOrderID.String(),
		"status":        next.String(),
	})
	s.logg.Info(logCtx, "shop order status changed")

	view, err := s.presenter.Order(ctx, *order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "render order")
	}
	return view, nil
}

func (s *service) GetOrder(ctx context.Context, actorID, orderID uuid.UUID) (*OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "load order")
	}
	if !canView(order, actorID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not authorized to view this order")
	}
	view, err := s.presenter.Order(ctx, *order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "render order")
	}
	return view, nil
}

func canView(order *models.Order, actorID uuid.UUID) bool {
	if order.UserID == actorID {
		return true
	}
	for _, so := range order.ShopOrders {
		if so.OwnerID == actorID {
			return true
		}
		if so.AssignedDeliveryBoy != nil && *so.AssignedDeliveryBoy == actorID {
			return true
		}
	}
	return false
}

func (s *service) ListUserOrders(ctx context.Context, actorID uuid.UUID, params pagination.Params) (*pagination.Page[OrderView], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByUser(ctx, actorID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "list user orders")
	}
	return s.renderPage(ctx, rows, params.Limit, nil)
}

func (s *service) ListOwnerOrders(ctx context.Context, actorID uuid.UUID, params pagination.Params) (*pagination.Page[OrderView], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByOwner(ctx, actorID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "list owner orders")
	}
	return s.renderPage(ctx, rows, params.Limit, func(so models.ShopOrder) bool {
		return so.OwnerID == actorID
	})
}

func (s *service) renderPage(ctx context.Context, rows []models.Order, limit int, keep func(models.ShopOrder) bool) (*pagination.Page[OrderView], error) {
	page := pagination.Trim(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	views, err := s.presenter.Orders(ctx, page.Items, keep)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "render orders")
	}
	return &pagination.Page[OrderView]{Items: views, NextCursor: page.NextCursor}, nil
}
