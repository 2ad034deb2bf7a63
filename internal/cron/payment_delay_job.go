package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/internal/carts"
	"github.com/campusdesk/campusdesk-backend/internal/fulfillment"
	"github.com/campusdesk/campusdesk-backend/internal/notifications"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/outbox"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

const (
	defaultPaymentDelayDays = 7
	paymentDelayReason      = "Payment delay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type notifier interface {
	EnqueueTx(ctx context.Context, tx *gorm.DB, input notifications.EnqueueInput) error
}

type pendingSnapshotReader interface {
	ListAwaitingPayment(ctx context.Context) ([]models.PlacedCart, error)
}

type snapshotCanceller interface {
	TransitionCart(ctx context.Context, placedCartID uuid.UUID, input fulfillment.TransitionCartInput, actor string) (*models.PlacedCart, error)
}

type cartAllocator interface {
	CreateEmptyCart(ctx context.Context, tx *gorm.DB, userID uuid.UUID, actor string) (*models.Cart, error)
}

// PaymentDelayJobParams configure the payment-delay sweep.
type PaymentDelayJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	LiveCarts carts.CartRepository
	Snapshots pendingSnapshotReader
	Fulfill   snapshotCanceller
	Allocator cartAllocator
	Users     userReader
	Notifier  notifier
	Outbox    outboxEmitter
	DelayDays int
}

// NewPaymentDelayJob builds the job that cancels carts stuck awaiting
// payment past the delay window and reminds the ones still inside it.
func NewPaymentDelayJob(params PaymentDelayJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.LiveCarts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Snapshots == nil {
		return nil, fmt.Errorf("placed snapshot reader required")
	}
	if params.Fulfill == nil {
		return nil, fmt.Errorf("fulfillment service required")
	}
	if params.Allocator == nil {
		return nil, fmt.Errorf("cart allocator required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	delayDays := params.DelayDays
	if delayDays <= 0 {
		delayDays = defaultPaymentDelayDays
	}
	return &paymentDelayJob{
		logg:      params.Logger,
		db:        params.DB,
		live:      params.LiveCarts,
		snapshots: params.Snapshots,
		fulfill:   params.Fulfill,
		alloc:     params.Allocator,
		users:     params.Users,
		notify:    params.Notifier,
		outbox:    params.Outbox,
		delayDays: delayDays,
		now:       time.Now,
	}, nil
}

type paymentDelayJob struct {
	logg      *logger.Logger
	db        txRunner
	live      carts.CartRepository
	snapshots pendingSnapshotReader
	fulfill   snapshotCanceller
	alloc     cartAllocator
	users     userReader
	notify    notifier
	outbox    outboxEmitter
	delayDays int
	now       func() time.Time
}

func (j *paymentDelayJob) Name() string { return "payment-delay" }

// Run sweeps both payment-pending populations: live carts whose online
// attempt failed, and placed snapshots still waiting on an offline payment.
// A failure on one cart is collected and the rest of the batch continues.
func (j *paymentDelayJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.sweepFailedOnline(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.sweepPendingOffline(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *paymentDelayJob) sweepFailedOnline(ctx context.Context) error {
	stuck, err := j.live.ListStuckCarts(ctx, []enums.CartStatus{enums.CartStatusPaymentFailed})
	if err != nil {
		return fmt.Errorf("query payment-failed carts: %w", err)
	}

	var errs []error
	cancelled, reminded := 0, 0
	for i := range stuck {
		cart := &stuck[i]
		daysLeft := j.daysRemaining(j.failedSince(cart))
		if daysLeft <= 0 {
			if err := j.cancelLiveCart(ctx, cart); err != nil {
				errs = append(errs, fmt.Errorf("cancel cart %s: %w", cart.ID, err))
				continue
			}
			cancelled++
			continue
		}
		if err := j.remind(ctx, enums.AggregateCart, cart.ID, cart.OrderCode, cart.RequestedBy, daysLeft); err != nil {
			errs = append(errs, fmt.Errorf("remind cart %s: %w", cart.ID, err))
			continue
		}
		reminded++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"population": "online",
		"cancelled":  cancelled,
		"reminded":   reminded,
	})
	j.logg.Info(logCtx, "payment delay sweep complete")
	return multierr.Combine(errs...)
}

func (j *paymentDelayJob) sweepPendingOffline(ctx context.Context) error {
	pending, err := j.snapshots.ListAwaitingPayment(ctx)
	if err != nil {
		return fmt.Errorf("query offline-pending snapshots: %w", err)
	}

	var errs []error
	cancelled, reminded := 0, 0
	for i := range pending {
		cart := &pending[i]
		daysLeft := j.daysRemaining(cart.PlacedAt)
		if daysLeft <= 0 {
			if err := j.cancelSnapshot(ctx, cart); err != nil {
				errs = append(errs, fmt.Errorf("cancel snapshot %s: %w", cart.ID, err))
				continue
			}
			cancelled++
			continue
		}
		if err := j.remind(ctx, enums.AggregatePlacedCart, cart.ID, cart.OrderCode, cart.RequestedBy, daysLeft); err != nil {
			errs = append(errs, fmt.Errorf("remind snapshot %s: %w", cart.ID, err))
			continue
		}
		reminded++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"population": "offline",
		"cancelled":  cancelled,
		"reminded":   reminded,
	})
	j.logg.Info(logCtx, "payment delay sweep complete")
	return multierr.Combine(errs...)
}

// failedSince is the moment the cart first entered paymentFailed. The
// timeline survives revalidation saves, so it does not reset the clock the
// way updated_at would.
func (j *paymentDelayJob) failedSince(cart *models.Cart) time.Time {
	if stamp, ok := cart.StatusTimeline.At(enums.CartStatusPaymentFailed.String()); ok {
		return stamp.Time
	}
	return cart.UpdatedAt
}

func (j *paymentDelayJob) daysRemaining(since time.Time) int {
	elapsed := int(j.now().UTC().Sub(since.UTC()).Hours() / 24)
	return j.delayDays - elapsed
}

// cancelLiveCart moves a payment-failed cart to cancelled and hands the
// user a fresh empty cart. The in-tx status re-check plus CAS means a cart
// the user already moved (retried payment, placed) is skipped untouched.
func (j *paymentDelayJob) cancelLiveCart(ctx context.Context, cart *models.Cart) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.live.WithTx(tx)
		current, err := repo.FindByID(ctx, cart.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if current.Status != enums.CartStatusPaymentFailed {
			return nil
		}

		moved, err := repo.UpdateStatusCAS(ctx, current.ID, enums.CartStatusPaymentFailed, enums.CartStatusCancelled, nil)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}

		now := j.now().UTC()
		reason := paymentDelayReason
		current.Status = enums.CartStatusCancelled
		current.CancelReason = &reason
		current.StatusTimeline.Record(enums.CartStatusCancelled.String(), types.SystemActor, now)
		if _, err := repo.Save(ctx, current); err != nil {
			return err
		}

		if _, err := j.alloc.CreateEmptyCart(ctx, tx, current.RequestedBy, types.SystemActor); err != nil {
			return err
		}

		user, err := j.users.FindByID(ctx, current.RequestedBy)
		if err != nil {
			return err
		}
		if err := j.notify.EnqueueTx(ctx, tx, notifications.EnqueueInput{
			Recipient: user.MemberID,
			Actor:     types.SystemActor,
			Message:   fmt.Sprintf("Order %s was cancelled: the payment was not completed in time.", current.OrderCode),
			CartID:    &current.ID,
		}); err != nil {
			return err
		}
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartCancelled,
			AggregateType: enums.AggregateCart,
			AggregateID:   current.ID,
			Actor:         types.SystemActor,
			Version:       1,
			OccurredAt:    now,
			Data: map[string]any{
				"orderCode": current.OrderCode,
				"memberId":  user.MemberID,
				"email":     user.Email,
				"reason":    reason,
			},
		})
	})
}

// cancelSnapshot runs the full fulfillment cancel cascade on an offline
// snapshot. A snapshot the admin confirmed meanwhile fails the transition
// check; that is the skip, not an error.
func (j *paymentDelayJob) cancelSnapshot(ctx context.Context, cart *models.PlacedCart) error {
	reason := paymentDelayReason
	_, err := j.fulfill.TransitionCart(ctx, cart.ID, fulfillment.TransitionCartInput{
		To:     enums.CartStatusCancelled,
		Reason: &reason,
	}, types.SystemActor)
	if err != nil && pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		return nil
	}
	return err
}

func (j *paymentDelayJob) remind(ctx context.Context, aggregate enums.OutboxAggregateType, cartID uuid.UUID, orderCode string, userID uuid.UUID, daysLeft int) error {
	user, err := j.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := j.notify.EnqueueTx(ctx, tx, notifications.EnqueueInput{
			Recipient:    user.MemberID,
			Actor:        types.SystemActor,
			Message:      fmt.Sprintf("Order %s is awaiting payment and will be cancelled in %d day(s).", orderCode, daysLeft),
			CartID:       &cartID,
			DedupeOnCart: true,
		}); err != nil {
			return err
		}
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartReminder,
			AggregateType: aggregate,
			AggregateID:   cartID,
			Actor:         types.SystemActor,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: map[string]any{
				"orderCode": orderCode,
				"memberId":  user.MemberID,
				"email":     user.Email,
				"daysLeft":  daysLeft,
			},
		})
	})
}
