package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodbowl/foodbowl-backend/pkg/db/models"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service records worker-to-shop-order bindings. Entries are created once per
// accepted claim and completed once on delivery; they are never deleted.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordAssignment(ctx context.Context, input RecordAssignmentInput) (*models.DeliveryAssignment, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Release(ctx context.Context, shopOrderID uuid.UUID) (int64, error)
	History(ctx context.Context, shopOrderID uuid.UUID) ([]models.DeliveryAssignment, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// RecordAssignmentInput captures the data an assignment entry requires.
type RecordAssignmentInput struct {
	OrderID     uuid.UUID
	ShopID      uuid.UUID
	ShopOrderID uuid.UUID
	WorkerID    uuid.UUID
	AcceptedAt  time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

func (s *service) RecordAssignment(ctx context.Context, input RecordAssignmentInput) (*models.DeliveryAssignment, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if input.ShopID == uuid.Nil {
		return nil, fmt.Errorf("shop id is required")
	}
	if input.ShopOrderID == uuid.Nil {
		return nil, fmt.Errorf("shop order id is required")
	}
	if input.WorkerID == uuid.Nil {
		return nil, fmt.Errorf("worker id is required")
	}
	acceptedAt := input.AcceptedAt
	if acceptedAt.IsZero() {
		acceptedAt = s.now()
	}

	entry := &models.DeliveryAssignment{
		ID:          uuid.New(),
		OrderID:     input.OrderID,
		ShopID:      input.ShopID,
		ShopOrderID: input.ShopOrderID,
		AssignedTo:  input.WorkerID,
		Status:      enums.AssignmentStatusAssigned,
		AcceptedAt:  acceptedAt.UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Complete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("assignment id is required")
	}
	updated, err := s.repo.MarkCompleted(ctx, id, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStore, err, "complete assignment")
	}
	if updated {
		return nil
	}

	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeStore, err, "load assignment")
	}
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "assignment already %s", entry.Status)
}

// Release withdraws the open binding of a shop order that went back to the pool.
func (s *service) Release(ctx context.Context, shopOrderID uuid.UUID) (int64, error) {
	if shopOrderID == uuid.Nil {
		return 0, fmt.Errorf("shop order id is required")
	}
	released, err := s.repo.ReleaseOpen(ctx, shopOrderID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStore, err, "release assignment")
	}
	return released, nil
}

func (s *service) History(ctx context.Context, shopOrderID uuid.UUID) ([]models.DeliveryAssignment, error) {
	if shopOrderID == uuid.Nil {
		return nil, fmt.Errorf("shop order id is required")
	}
	entries, err := s.repo.ListByShopOrder(ctx, shopOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStore, err, "list assignments")
	}
	return entries, nil
}
