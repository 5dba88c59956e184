package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodbowl/foodbowl-backend/internal/ledger"
	"github.com/foodbowl/foodbowl-backend/internal/orders"
	"github.com/foodbowl/foodbowl-backend/pkg/db"
	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
	"github.com/foodbowl/foodbowl-backend/pkg/metrics"
	"github.com/foodbowl/foodbowl-backend/pkg/outbox"
	"github.com/foodbowl/foodbowl-backend/pkg/pagination"
	"github.com/foodbowl/foodbowl-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

const availableLimit = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service coordinates the delivery pool and exclusive worker assignment.
type Service interface {
	ListAvailable(ctx context.Context, workerID uuid.UUID) ([]View, error)
	Accept(ctx context.Context, workerID uuid.UUID, input ShopOrderInput) (*AcceptResult, error)
	Reject(ctx context.Context, workerID uuid.UUID, input ShopOrderInput) error
	MyDeliveries(ctx context.Context, workerID uuid.UUID, params pagination.Params) (*pagination.Page[View], error)
	MarkDelivered(ctx context.Context, workerID uuid.UUID, input ShopOrderInput) (*DeliveredResult, error)
	ComputeStats(ctx context.Context, workerID uuid.UUID, asOf time.Time) (*Stats, error)
}

// Config holds the delivery tunables resolved at startup.
type Config struct {
	EarningsPerDeliveryPaise int64
	Location                 *time.Location
	AcceptMaxRetries         uint64
	AcceptRetryBase          time.Duration
}

type service struct {
	repo      Repository
	tx        txRunner
	ledger    ledger.Service
	presenter *orders.Presenter
	outbox    outboxPublisher
	metrics   *metrics.DeliveryMetrics
	cfg       Config
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the delivery coordinator.
func NewService(
	repo Repository,
	tx txRunner,
	ledgerSvc ledger.Service,
	presenter *orders.Presenter,
	publisher outboxPublisher,
	deliveryMetrics *metrics.DeliveryMetrics,
	cfg Config,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if presenter == nil {
		return nil, fmt.Errorf("presenter required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.AcceptRetryBase <= 0 {
		cfg.AcceptRetryBase = 25 * time.Millisecond
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      repo,
		tx:        tx,
		ledger:    ledgerSvc,
		presenter: presenter,
		outbox:    publisher,
		metrics:   deliveryMetrics,
		cfg:       cfg,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) ListAvailable(ctx context.Context, workerID uuid.UUID) ([]View, error) {
	if workerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "worker required")
	}
	rows, err := s.repo.ListAvailable(ctx, workerID, availableLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "list available shop orders")
	}
	return s.render(ctx, rows)
}

func (s *service) MyDeliveries(ctx context.Context, workerID uuid.UUID, params pagination.Params) (*pagination.Page[View], error) {
	if workerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "worker required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListAssigned(ctx, workerID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "list assigned shop orders")
	}
	page := pagination.Trim(rows, params.Limit, func(so models.ShopOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: so.CreatedAt, ID: so.ID}
	})
	views, err := s.render(ctx, page.Items)
	if err != nil {
		return nil, err
	}
	return &pagination.Page[View]{Items: views, NextCursor: page.NextCursor}, nil
}

func (s *service) render(ctx context.Context, rows []models.ShopOrder) ([]View, error) {
	views := make([]View, 0, len(rows))
	if len(rows) == 0 {
		return views, nil
	}
	orderIDs := make([]uuid.UUID, 0, len(rows))
	for _, so := range rows {
		orderIDs = append(orderIDs, so.OrderID)
	}
	parents, err := s.repo.OrdersByIDs(ctx, orderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "load orders")
	}

	var userIDs, shopIDs []uuid.UUID
	for _, so := range rows {
		userIDs = append(userIDs, so.OwnerID, parents[so.OrderID].UserID)
		shopIDs = append(shopIDs, so.ShopID)
	}
	dir, err := s.presenter.Resolve(ctx, userIDs, shopIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "resolve contacts")
	}

	for _, so := range rows {
		parent := parents[so.OrderID]
		customerID := parent.UserID
		ownerID := so.OwnerID
		views = append(views, View{
			OrderID:         so.OrderID,
			ShopOrderID:     so.ID,
			Customer:        dir.Contact(&customerID),
			Shop:            dir.Shop(so.ShopID),
			ShopOwner:       dir.Contact(&ownerID),
			Items:           orders.Items(so),
			Subtotal:        so.Subtotal,
			Status:          so.Status,
			PaymentMethod:   parent.PaymentMethod,
			DeliveryAddress: parent.DeliveryAddress,
			AcceptedAt:      so.DeliveryBoyResponseAt,
			DeliveredAt:     so.DeliveredAt,
			CreatedAt:       parent.CreatedAt,
		})
	}
	return views, nil
}

func validateTarget(workerID uuid.UUID, input ShopOrderInput) error {
	if workerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "worker required")
	}
	if input.OrderID == uuid.Nil || input.ShopOrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "orderId and shopOrderId are required")
	}
	return nil
}

// Accept claims a ready shop order for the worker. The worker exclusivity
// check, the claim, the ledger entry and its back-link commit together; a
// serialization abort replays the whole unit.
func (s *service) Accept(ctx context.Context, workerID uuid.UUID, input ShopOrderInput) (*AcceptResult, error) {
	if err := validateTarget(workerID, input); err != nil {
		return nil, err
	}

	backoff := retry.WithMaxRetries(s.cfg.AcceptMaxRetries, retry.NewExponential(s.cfg.AcceptRetryBase))
	var (
		result   *AcceptResult
		attempts int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		res, err := s.acceptOnce(ctx, workerID, input)
		if err != nil {
			if db.IsRetryableTxAbort(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = res
		return nil
	})
	s.metrics.ObserveAccept(acceptOutcome(err), attempts-1)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"worker_id":     workerID.String(),
		"order_id":      input.OrderID.String(),
		"shop_order_id": input.ShopOrderID.String(),
		"attempts":      attempts,
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeStore, err, "accept shop order")
		}
		if pkgerrors.IsRetryable(err) {
			s.logg.Error(logCtx, "accept failed", err)
		} else {
			s.logg.Warn(logCtx, "accept rejected: "+err.Error())
		}
		return nil, err
	}
	s.logg.Info(s.logg.WithField(logCtx, "assignment_id", result.AssignmentID.String()), "shop order accepted")
	return result, nil
}

// acceptOnce returns store errors unwrapped so retryable aborts stay detectable.
func (s *service) acceptOnce(ctx context.Context, workerID uuid.UUID, input ShopOrderInput) (*AcceptResult, error) {
	var result *AcceptResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		active, err := repo.CountActive(ctx, workerID)
		if err != nil {
			return err
		}
		if active > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "already assigned elsewhere")
		}

		exists, err := repo.OrderExists(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		shopOrder, err := repo.FindShopOrder(ctx, input.OrderID, input.ShopOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "shop order not found")
			}
			return err
		}

		now := s.now().UTC()
		claimed, err := repo.Claim(ctx, input.OrderID, input.ShopOrderID, workerID, now)
		if err != nil {
			// the only unique index a claim can trip is the one-active-order-per-worker index
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "already assigned elsewhere")
			}
			return err
		}
		if !claimed {
			current, err := repo.FindShopOrder(ctx, input.OrderID, input.ShopOrderID)
			if err != nil {
				return err
			}
			if current.AssignedDeliveryBoy != nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "already assigned to another worker")
			}
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "shop order is %s, not ready", current.Status)
		}

		entry, err := s.ledger.WithTx(tx).RecordAssignment(ctx, ledger.RecordAssignmentInput{
			OrderID:     input.OrderID,
			ShopID:      shopOrder.ShopID,
			ShopOrderID: shopOrder.ID,
			WorkerID:    workerID,
			AcceptedAt:  now,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "already assigned to another worker")
			}
			return err
		}
		if err := repo.LinkAssignment(ctx, shopOrder.ID, entry.ID); err != nil {
			return err
		}

		assignmentID := entry.ID
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryAssigned,
			AggregateType: enums.AggregateShopOrder,
			AggregateID:   shopOrder.ID,
			Actor:         outbox.Actor(workerID, enums.UserRoleDeliveryBoy),
			Data: AssignmentEvent{
				OrderID:      input.OrderID,
				ShopOrderID:  shopOrder.ID,
				WorkerID:     workerID,
				AssignmentID: &assignmentID,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		result = &AcceptResult{
			AssignmentID: entry.ID,
			OrderID:      input.OrderID,
			ShopOrderID:  shopOrder.ID,
			AcceptedAt:   now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func acceptOutcome(err error) string {
	if err == nil {
		return metrics.AcceptOutcomeAccepted
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeConflict:
		return metrics.AcceptOutcomeConflict
	case pkgerrors.CodeStateConflict:
		return metrics.AcceptOutcomeInvalidState
	case pkgerrors.CodeNotFound:
		return metrics.AcceptOutcomeNotFound
	default:
		return metrics.AcceptOutcomeError
	}
}

// Reject excludes the worker from the shop order for good and returns the
// shop order to the open pool.
func (s *service) Reject(ctx context.Context, workerID uuid.UUID, input ShopOrderInput) error {
	if err := validateTarget(workerID, input); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.OrderExists(ctx, input.OrderID)
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

		if err := repo.AddRejection(ctx, shopOrder.ID, workerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "record rejection")
		}
		if err := repo.ResetAssignment(ctx, shopOrder.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "reset assignment")
		}
		if shopOrder.AssignmentID != nil {
			if _, err := s.ledger.WithTx(tx).Release(ctx, shopOrder.ID); err != nil {
				return err
			}
		}

		event := AssignmentEvent{
			OrderID:          input.OrderID,
			ShopOrderID:      shopOrder.ID,
			WorkerID:         workerID,
			AssignmentID:     shopOrder.AssignmentID,
			PreviousWorkerID: shopOrder.AssignedDeliveryBoy,
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryRejected,
			AggregateType: enums.AggregateShopOrder,
			AggregateID:   shopOrder.ID,
			Actor:         outbox.Actor(workerID, enums.UserRoleDeliveryBoy),
			Data:          event,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "emit rejection")
		}
		return nil
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"worker_id":     workerID.String(),
		"shop_order_id": input.ShopOrderID.String(),
	})
	s.logg.Info(logCtx, "shop order rejected")
	return nil
}

func (s *service) MarkDelivered(ctx context.Context, workerID uuid.UUID, input ShopOrderInput) (*DeliveredResult, error) {
	if err := validateTarget(workerID, input); err != nil {
		return nil, err
	}

	var (
		shopOrder *models.ShopOrder
		at        = s.now().UTC()
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.OrderExists(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "load order")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		found, err := repo.FindShopOrder(ctx, input.OrderID, input.ShopOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "shop order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "load shop order")
		}
		if found.AssignedDeliveryBoy == nil || *found.AssignedDeliveryBoy != workerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "you are not assigned to this order")
		}
		if found.Status != enums.ShopOrderStatusOutForDelivery {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not out for delivery")
		}

		updated, err := repo.MarkDelivered(ctx, found.ID, workerID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "mark delivered")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not out for delivery")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryCompleted,
			AggregateType: enums.AggregateShopOrder,
			AggregateID:   found.ID,
			Actor:         outbox.Actor(workerID, enums.UserRoleDeliveryBoy),
			Data: AssignmentEvent{
				OrderID:      input.OrderID,
				ShopOrderID:  found.ID,
				WorkerID:     workerID,
				AssignmentID: found.AssignmentID,
			},
			OccurredAt: at,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStore, err, "emit delivery completed")
		}
		shopOrder = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &DeliveredResult{
		OrderID:      input.OrderID,
		ShopOrderID:  shopOrder.ID,
		DeliveredAt:  at,
		AssignmentID: shopOrder.AssignmentID,
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"worker_id":     workerID.String(),
		"shop_order_id": shopOrder.ID.String(),
	})

	// the ledger update is best effort; the delivered status already stands
	if shopOrder.AssignmentID != nil {
		if err := s.ledger.Complete(ctx, *shopOrder.AssignmentID); err != nil {
			s.logg.Error(logCtx, "failed to complete assignment ledger entry", err)
		} else {
			result.LedgerClosed = true
		}
	}
	s.metrics.ObserveDelivered(result.LedgerClosed)
	s.logg.Info(logCtx, "shop order delivered")
	return result, nil
}

// ComputeStats never fails for a worker without history; it returns zeros.
func (s *service) ComputeStats(ctx context.Context, workerID uuid.UUID, asOf time.Time) (*Stats, error) {
	if workerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "worker required")
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	local := asOf.In(s.cfg.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)

	counts, err := s.repo.Counts(ctx, workerID, dayStart.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "compute delivery stats")
	}

	rate := s.cfg.EarningsPerDeliveryPaise
	return &Stats{
		TodayDeliveries:    counts.Today,
		TotalDeliveries:    counts.Total,
		PendingDeliveries:  counts.Pending,
		TodayEarnings:      types.FromMinorUnits(counts.Today * rate),
		TotalEarnings:      types.FromMinorUnits(counts.Total * rate),
		TodayEarningsPaise: counts.Today * rate,
		TotalEarningsPaise: counts.Total * rate,
		DayStart:           dayStart,
	}, nil
}
