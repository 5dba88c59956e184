package orders

import (
	"context"

	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Presenter denormalises orders for clients by joining in user and shop details.
type Presenter struct {
	users ContactLookup
	shops ShopLookup
}

// NewPresenter wires a presenter over the identity and catalog read models.
func NewPresenter(users ContactLookup, shops ShopLookup) *Presenter {
	return &Presenter{users: users, shops: shops}
}

// Directory is a resolved set of users and shops.
type Directory struct {
	users map[uuid.UUID]models.User
	shops map[uuid.UUID]models.Shop
}

// Resolve loads the referenced users and shops concurrently.
func (p *Presenter) Resolve(ctx context.Context, userIDs, shopIDs []uuid.UUID) (*Directory, error) {
	dir := &Directory{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := p.users.ContactsByIDs(gctx, dedupe(userIDs))
		dir.users = users
		return err
	})
	g.Go(func() error {
		shops, err := p.shops.ShopsByIDs(gctx, dedupe(shopIDs))
		dir.shops = shops
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dir, nil
}

// Contact returns the contact view for id, or nil when unknown.
func (d *Directory) Contact(id *uuid.UUID) *ContactView {
	if d == nil || id == nil {
		return nil
	}
	user, ok := d.users[*id]
	if !ok {
		return &ContactView{ID: *id}
	}
	return &ContactView{ID: user.ID, FullName: user.FullName, Email: user.Email, Mobile: user.Mobile}
}

// Shop returns the shop view for id. Unknown shops render with only their id.
func (d *Directory) Shop(id uuid.UUID) ShopView {
	if d == nil {
		return ShopView{ID: id}
	}
	shop, ok := d.shops[id]
	if !ok {
		return ShopView{ID: id}
	}
	return ShopView{ID: shop.ID, Name: shop.Name, City: shop.City, Address: shop.Address}
}

// Items renders the snapshotted line items of a shop order.
func Items(shopOrder models.ShopOrder) []LineItemView {
	items := make([]LineItemView, 0, len(shopOrder.Items))
	for _, item := range shopOrder.Items {
		items = append(items, LineItemView{
			ItemID:    item.ItemID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			LineTotal: item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return items
}

// Orders renders orders keeping only the shop orders accepted by keep. A nil
// keep renders every shop order. Orders left with no shop orders are dropped.
func (p *Presenter) Orders(ctx context.Context, orders []models.Order, keep func(models.ShopOrder) bool) ([]OrderView, error) {
	var userIDs, shopIDs []uuid.UUID
	for _, order := range orders {
		userIDs = append(userIDs, order.UserID)
		for _, so := range order.ShopOrders {
			userIDs = append(userIDs, so.OwnerID)
			if so.AssignedDeliveryBoy != nil {
				userIDs = append(userIDs, *so.AssignedDeliveryBoy)
			}
			shopIDs = append(shopIDs, so.ShopID)
		}
	}
	dir, err := p.Resolve(ctx, userIDs, shopIDs)
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		view := dir.order(order, keep)
		if len(view.ShopOrders) == 0 && len(order.ShopOrders) > 0 {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

// Order renders a single order with all its shop orders.
func (p *Presenter) Order(ctx context.Context, order models.Order) (*OrderView, error) {
	views, err := p.Orders(ctx, []models.Order{order}, nil)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (d *Directory) order(order models.Order, keep func(models.ShopOrder) bool) OrderView {
	customerID := order.UserID
	view := OrderView{
		ID:               order.ID,
		Customer:         d.Contact(&customerID),
		PaymentMethod:    order.PaymentMethod,
		DeliveryAddress:  order.DeliveryAddress,
		Status:           order.Status,
		TotalAmount:      order.TotalAmount,
		TotalAmountPaise: order.TotalAmountPaise,
		PaymentStatus:    order.PaymentStatus,
		GatewayOrderID:   order.GatewayOrderID,
		ShopOrders:       make([]ShopOrderView, 0, len(order.ShopOrders)),
		CreatedAt:        order.CreatedAt,
	}
	for _, so := range order.ShopOrders {
		if keep != nil && !keep(so) {
			continue
		}
		view.ShopOrders = append(view.ShopOrders, d.ShopOrder(so))
	}
	return view
}

// ShopOrder renders one shop order.
func (d *Directory) ShopOrder(so models.ShopOrder) ShopOrderView {
	ownerID := so.OwnerID
	return ShopOrderView{
		ID:                    so.ID,
		Shop:                  d.Shop(so.ShopID),
		Owner:                 d.Contact(&ownerID),
		Subtotal:              so.Subtotal,
		Status:                so.Status,
		AssignedDeliveryBoy:   d.Contact(so.AssignedDeliveryBoy),
		DeliveryBoyResponse:   so.DeliveryBoyResponse,
		DeliveryBoyResponseAt: so.DeliveryBoyResponseAt,
		DeliveredAt:           so.DeliveredAt,
		AssignmentID:          so.AssignmentID,
		Items:                 Items(so),
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
