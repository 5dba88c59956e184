package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
	"github.com/foodbowl/foodbowl-backend/pkg/outbox"
	"github.com/foodbowl/foodbowl-backend/pkg/razorpay"
	"github.com/foodbowl/foodbowl-backend/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const defaultGatewayTimeout = 10 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Gateway is the payment gateway surface the service depends on.
type Gateway interface {
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
	KeyID() string
}

// Service reconciles gateway payment state with app orders.
type Service interface {
	CreateGatewayOrder(ctx context.Context, appOrderID uuid.UUID) (*GatewayOrderResult, error)
	CreateGatewayOrderFor(ctx context.Context, actorID, appOrderID uuid.UUID) (*GatewayOrderResult, error)
	VerifyPayment(ctx context.Context, input VerifyInput) (*VerifyResult, error)
	ExpireStale(ctx context.Context, ttl time.Duration, limit int) (int, error)
}

// Config carries gateway settings resolved at startup.
type Config struct {
	KeySecret string
	Currency  string
	Timeout   time.Duration
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	gateway Gateway
	cfg     Config
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the payment reconciliation service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, gateway Gateway, cfg Config, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, fmt.Errorf("gateway key secret required")
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGatewayTimeout
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  publisher,
		gateway: gateway,
		cfg:     cfg,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) CreateGatewayOrderFor(ctx context.Context, actorID, appOrderID uuid.UUID) (*GatewayOrderResult, error) {
	order, err := s.loadOrder(ctx, appOrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return s.createForOrder(ctx, order)
}

func (s *service) CreateGatewayOrder(ctx context.Context, appOrderID uuid.UUID) (*GatewayOrderResult, error) {
	order, err := s.loadOrder(ctx, appOrderID)
	if err != nil {
		return nil, err
	}
	return s.createForOrder(ctx, order)
}

func (s *service) createForOrder(ctx context.Context, order *models.Order) (*GatewayOrderResult, error) {
	if !order.PaymentMethod.UsesGateway() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cash orders are settled on delivery")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
	}

	amount := order.TotalAmountPaise
	if amount == 0 {
		amount = types.MinorUnits(order.TotalAmount)
	}
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeAmount, "order amount must be positive").
			WithDetails(map[string]any{"amountPaise": amount})
	}

	// a gateway order that has not expired can be reopened by the checkout sheet
	if order.GatewayOrderID != nil && order.PaymentStatus == enums.PaymentStatusCreated {
		return s.result(order, *order.GatewayOrderID, amount), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	gatewayOrder, err := s.gateway.CreateOrder(callCtx, razorpay.CreateOrderRequest{
		Amount:   amount,
		Currency: s.cfg.Currency,
		Receipt:  order.ID.String(),
		Notes:    map[string]string{"appOrderId": order.ID.String()},
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "create gateway order")
	}

	createdAt := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).SaveGatewayOrder(ctx, order.ID, gatewayOrder.ID, gatewayOrder.Raw, createdAt); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGatewayOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: PaymentEvent{
				OrderID:        order.ID,
				PaymentStatus:  enums.PaymentStatusCreated,
				GatewayOrderID: gatewayOrder.ID,
				AmountPaise:    amount,
			},
			OccurredAt: createdAt,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "persist gateway order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":         order.ID.String(),
		"gateway_order_id": gatewayOrder.ID,
		"amount_paise":     amount,
	})
	s.logg.Info(logCtx, "gateway order created")

	return s.result(order, gatewayOrder.ID, amount), nil
}

func (s *service) result(order *models.Order, gatewayOrderID string, amount int64) *GatewayOrderResult {
	return &GatewayOrderResult{
		AppOrderID:     order.ID,
		GatewayOrderID: gatewayOrderID,
		Amount:         amount,
		Currency:       s.cfg.Currency,
		KeyID:          s.gateway.KeyID(),
		PaymentStatus:  enums.PaymentStatusCreated,
	}
}

func (s *service) VerifyPayment(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	input.GatewayOrderID = strings.TrimSpace(input.GatewayOrderID)
	input.GatewayPaymentID = strings.TrimSpace(input.GatewayPaymentID)
	input.GatewaySignature = strings.TrimSpace(input.GatewaySignature)
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.GatewaySignature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing payment verification fields")
	}
	var appOrderID uuid.UUID
	if raw := strings.TrimSpace(input.AppOrderID); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid appOrderId")
		}
		appOrderID = parsed
	}

	if !razorpay.VerifyPaymentSignature(s.cfg.KeySecret, input.GatewayOrderID, input.GatewayPaymentID, input.GatewaySignature) {
		s.logg.Warn(s.logg.WithField(ctx, "gateway_order_id", input.GatewayOrderID), "payment signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "payment signature mismatch")
	}

	result := &VerifyResult{Verified: true}
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := s.resolveOrder(ctx, repo, appOrderID, input.GatewayOrderID)
		if err != nil || found == nil {
			return err
		}
		order = found

		if !order.PaymentMethod.UsesGateway() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cash orders are settled on delivery")
		}
		if order.GatewayOrderID == nil || *order.GatewayOrderID != input.GatewayOrderID {
			return pkgerrors.New(pkgerrors.CodeValidation, "gateway order does not match app order")
		}
		switch order.PaymentStatus {
		case enums.PaymentStatusPaid:
			if order.GatewayPaymentID != nil && *order.GatewayPaymentID == input.GatewayPaymentID {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid by another payment")
		case enums.PaymentStatusCreated, enums.PaymentStatusFailed:
			// failed covers a capture that lands after the expiry job gave up
		default:
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment status %s cannot move to paid", order.PaymentStatus)
		}

		paidAt := s.now().UTC()
		updated, err := repo.MarkPaid(ctx, order.ID, input.GatewayOrderID, input.GatewayPaymentID, input.GatewaySignature, paidAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "mark order paid")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order payment changed concurrently")
		}
		order.PaymentStatus = enums.PaymentStatusPaid
		order.Status = enums.OrderStatusConfirmed

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: PaymentEvent{
				OrderID:          order.ID,
				PaymentStatus:    enums.PaymentStatusPaid,
				GatewayOrderID:   input.GatewayOrderID,
				GatewayPaymentID: input.GatewayPaymentID,
				AmountPaise:      order.TotalAmountPaise,
			},
			OccurredAt: paidAt,
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "verify payment")
	}

	if order == nil {
		s.logg.Warn(s.logg.WithField(ctx, "gateway_order_id", input.GatewayOrderID), "verified payment has no matching order")
		return result, nil
	}
	id := order.ID
	result.AppOrderID = &id
	result.PaymentStatus = order.PaymentStatus
	result.OrderStatus = order.Status
	return result, nil
}

// resolveOrder prefers the app order id and falls back to the gateway order id.
// A nil order with nil error means nothing matched.
func (s *service) resolveOrder(ctx context.Context, repo Repository, appOrderID uuid.UUID, gatewayOrderID string) (*models.Order, error) {
	if appOrderID != uuid.Nil {
		order, err := repo.FindOrder(ctx, appOrderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "load order")
		}
	}
	order, err := repo.FindOrderByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "load order by gateway order")
	}
	return order, nil
}

func (s *service) ExpireStale(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	if ttl <= 0 {
		return 0, fmt.Errorf("ttl must be positive")
	}
	if limit <= 0 {
		limit = 100
	}
	cutoff := s.now().UTC().Add(-ttl)
	stale, err := s.repo.ListStaleCreated(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStore, err, "list stale gateway orders")
	}

	var (
		expired int
		errs    error
	)
	for i := range stale {
		order := stale[i]
		var updated bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			updated, err = s.repo.WithTx(tx).MarkFailed(ctx, order.ID, cutoff)
			if err != nil || !updated {
				return err
			}
			data := PaymentEvent{
				OrderID:       order.ID,
				PaymentStatus: enums.PaymentStatusFailed,
				AmountPaise:   order.TotalAmountPaise,
			}
			if order.GatewayOrderID != nil {
				data.GatewayOrderID = *order.GatewayOrderID
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentFailed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data:          data,
			})
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if updated {
			expired++
		}
	}
	if errs != nil {
		return expired, pkgerrors.Wrap(pkgerrors.CodeStore, errs, "expire gateway orders")
	}
	return expired, nil
}

func (s *service) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appOrderId is required")
	}
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "load order")
	}
	return order, nil
}
