package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

// NotificationRepository abstracts notification persistence.
type NotificationRepository interface {
	WithTx(tx *gorm.DB) NotificationRepository
	Create(ctx context.Context, row *models.Notification) (*models.Notification, error)
	ListForRecipient(ctx context.Context, recipient string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID, recipient string, at time.Time) error
	RewriteCartCorrelation(ctx context.Context, fromCartID, toCartID uuid.UUID) error
	ExistsForCartAndMessage(ctx context.Context, cartID uuid.UUID, recipient, message string) (bool, error)
}

// Service is the fire-and-forget notification sink the lifecycle components
// call. The feed itself is rendered elsewhere; this only persists rows.
type Service interface {
	Enqueue(ctx context.Context, input EnqueueInput) error
	EnqueueTx(ctx context.Context, tx *gorm.DB, input EnqueueInput) error
	List(ctx context.Context, recipient string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID, recipient string) error
	RewriteCartCorrelation(ctx context.Context, tx *gorm.DB, fromCartID, toCartID uuid.UUID) error
}

// EnqueueInput is the notification payload. Recipient is a member id or the
// broadcast sentinel; Actor is a member id or types.SystemActor.
type EnqueueInput struct {
	Recipient string
	Actor     string
	Message   string
	CartID    *uuid.UUID

	// DedupeOnCart suppresses the insert when an identical cart-correlated
	// notice already exists. Eviction notices use this to stay idempotent.
	DedupeOnCart bool
}

type service struct {
	repo NotificationRepository
	logg *logger.Logger
}

// NewService builds the notification service.
func NewService(repo NotificationRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notification repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Enqueue(ctx context.Context, input EnqueueInput) error {
	return s.enqueue(ctx, s.repo, input)
}

// EnqueueTx writes the notification inside the caller's transaction so it
// commits or rolls back with the state change it describes.
func (s *service) EnqueueTx(ctx context.Context, tx *gorm.DB, input EnqueueInput) error {
	return s.enqueue(ctx, s.repo.WithTx(tx), input)
}

func (s *service) enqueue(ctx context.Context, repo NotificationRepository, input EnqueueInput) error {
	recipient := strings.TrimSpace(input.Recipient)
	if recipient == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification recipient is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification message is required")
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		actor = types.SystemActor
	}

	if input.DedupeOnCart && input.CartID != nil {
		exists, err := repo.ExistsForCartAndMessage(ctx, *input.CartID, recipient, input.Message)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check duplicate notification")
		}
		if exists {
			return nil
		}
	}

	row := &models.Notification{
		Recipient: recipient,
		CreatedBy: actor,
		Message:   input.Message,
		CartID:    input.CartID,
	}
	if _, err := repo.Create(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

func (s *service) List(ctx context.Context, recipient string, limit int) ([]models.Notification, error) {
	if strings.TrimSpace(recipient) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient is required")
	}
	rows, err := s.repo.ListForRecipient(ctx, recipient, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return rows, nil
}

func (s *service) MarkRead(ctx context.Context, id uuid.UUID, recipient string) error {
	if err := s.repo.MarkRead(ctx, id, recipient, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	return nil
}

func (s *service) RewriteCartCorrelation(ctx context.Context, tx *gorm.DB, fromCartID, toCartID uuid.UUID) error {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	if err := repo.RewriteCartCorrelation(ctx, fromCartID, toCartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rewrite cart correlation")
	}
	return nil
}
