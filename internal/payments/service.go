package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/internal/carts"
	"github.com/campusdesk/campusdesk-backend/internal/notifications"
	"github.com/campusdesk/campusdesk-backend/internal/placement"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/outbox"
	"github.com/campusdesk/campusdesk-backend/pkg/security"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

type cartValidator interface {
	ValidateForPayment(ctx context.Context, userID uuid.UUID, paymentType enums.PaymentType) (*models.Cart, error)
}

type placer interface {
	PlaceCart(ctx context.Context, cart *models.Cart, actor string, stamp placement.PaymentStamp) (*models.PlacedCart, error)
}

type placedReader interface {
	FindBySourceCartID(ctx context.Context, sourceCartID uuid.UUID) (*models.PlacedCart, error)
	FindByPaymentCode(ctx context.Context, code string) (*models.PlacedCart, error)
}

// fulfiller drives the post-payment transition: placed to processing with
// the full sub-resource and order cascade.
type fulfiller interface {
	MarkPaid(ctx context.Context, placedCartID uuid.UUID, actor string) (*models.PlacedCart, error)
}

type callbackWriter interface {
	Create(ctx context.Context, row *models.GatewayCallback) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type notifier interface {
	EnqueueTx(ctx context.Context, tx *gorm.DB, input notifications.EnqueueInput) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentIntent is the result of a payment submission. Offline payments
// place the cart immediately and hand back the code the admin will confirm;
// online payments hand back the gateway redirect URL.
type PaymentIntent struct {
	Type        enums.PaymentType
	PlacedCart  *models.PlacedCart
	PaymentCode string
	RedirectURL string
}

// CallbackOutcome selects the page rendered back to the gateway redirect.
type CallbackOutcome string

const (
	CallbackOutcomeSuccess CallbackOutcome = "success"
	CallbackOutcomeFailure CallbackOutcome = "failure"
)

// CallbackResult carries what the success/failure page renders.
type CallbackResult struct {
	Outcome     CallbackOutcome
	OrderCode   string
	ReferenceNo string
	Amount      string
	Message     string
}

// Service reconciles payments. Both protocols converge on the same placed
// to processing transition; the difference is who confirms the money moved.
type Service interface {
	// InitiatePayment validates the user's cart for the chosen payment type.
	// Offline places the cart and returns the payment code; online returns
	// the encrypted gateway redirect URL.
	InitiatePayment(ctx context.Context, userID uuid.UUID, paymentType enums.PaymentType, actor string) (*PaymentIntent, error)

	// ConfirmOffline matches an admin-supplied payment code against a placed
	// offline cart and moves it to processing. Never silently succeeds.
	ConfirmOffline(ctx context.Context, paymentCode, actor string) (*models.PlacedCart, error)

	// HandleCallback processes one gateway callback: persist the raw payload
	// unconditionally, verify the signature, then reconcile.
	HandleCallback(ctx context.Context, fields CallbackFields) (*CallbackResult, error)
}

type service struct {
	gateway   *Gateway
	carts     cartValidator
	cartRepo  carts.CartRepository
	placer    placer
	placed    placedReader
	fulfill   fulfiller
	users     userReader
	notify    notifier
	events    eventEmitter
	callbacks callbackWriter
	tx        txRunner
	logg      *logger.Logger
}

// NewService builds the payment reconciliation service.
func NewService(
	gateway *Gateway,
	cartsvc cartValidator,
	cartRepo carts.CartRepository,
	placesvc placer,
	placed placedReader,
	fulfill fulfiller,
	users userReader,
	notify notifier,
	events eventEmitter,
	callbacks callbackWriter,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if gateway == nil || cartsvc == nil || cartRepo == nil || placesvc == nil || placed == nil ||
		fulfill == nil || users == nil || notify == nil || events == nil || callbacks == nil || tx == nil {
		return nil, fmt.Errorf("payment service is missing a dependency")
	}
	return &service{
		gateway:   gateway,
		carts:     cartsvc,
		cartRepo:  cartRepo,
		placer:    placesvc,
		placed:    placed,
		fulfill:   fulfill,
		users:     users,
		notify:    notify,
		events:    events,
		callbacks: callbacks,
		tx:        tx,
		logg:      logg,
	}, nil
}

func (s *service) InitiatePayment(ctx context.Context, userID uuid.UUID, paymentType enums.PaymentType, actor string) (*PaymentIntent, error) {
	if !paymentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment type")
	}

	cart, err := s.carts.ValidateForPayment(ctx, userID, paymentType)
	if err != nil {
		return nil, err
	}

	if paymentType == enums.PaymentTypeOffline {
		return s.initiateOffline(ctx, cart, actor)
	}
	return s.initiateOnline(ctx, cart, actor)
}

// initiateOffline places the cart immediately: the snapshot sits in placed
// until an admin confirms the payment code against the received money.
func (s *service) initiateOffline(ctx context.Context, cart *models.Cart, actor string) (*PaymentIntent, error) {
	code, err := security.GenerateVerificationCode(12)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate payment code")
	}

	placed, err := s.placer.PlaceCart(ctx, cart, actor, placement.PaymentStamp{
		Type:        enums.PaymentTypeOffline,
		PaymentCode: &code,
	})
	if err != nil {
		return nil, err
	}

	// a retried submission returns the earlier snapshot with its own code
	if placed.PaymentCode != nil {
		code = *placed.PaymentCode
	}
	return &PaymentIntent{
		Type:        enums.PaymentTypeOffline,
		PlacedCart:  placed,
		PaymentCode: code,
	}, nil
}

// initiateOnline parks the cart in processingPayment and hands back the
// gateway redirect URL. A retry after a failed attempt stays paymentFailed;
// the capture path accepts either status.
func (s *service) initiateOnline(ctx context.Context, cart *models.Cart, actor string) (*PaymentIntent, error) {
	switch cart.Status {
	case enums.CartStatusUnplaced:
		moved, err := s.cartRepo.UpdateStatusCAS(ctx, cart.ID, enums.CartStatusUnplaced, enums.CartStatusProcessingPayment, nil)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "park cart for online payment")
		}
		if !moved {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
				WithDetails("cart was modified by a concurrent request")
		}
		cart.Status = enums.CartStatusProcessingPayment
		paymentType := enums.PaymentTypeOnline
		cart.PaymentType = &paymentType
		cart.StatusTimeline.Record(enums.CartStatusProcessingPayment.String(), actor, time.Now().UTC())
		if _, err := s.cartRepo.Save(ctx, cart); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save parked cart")
		}
	case enums.CartStatusProcessingPayment, enums.CartStatusPaymentFailed:
		// already parked or retrying after a failure
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails(fmt.Sprintf("cart in status %s cannot start an online payment", cart.Status))
	}

	redirect, err := s.gateway.BuildRedirectURL(cart.ID.String(), cart.TotalCost)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway redirect")
	}
	return &PaymentIntent{
		Type:        enums.PaymentTypeOnline,
		RedirectURL: redirect,
	}, nil
}

func (s *service) ConfirmOffline(ctx context.Context, paymentCode, actor string) (*models.PlacedCart, error) {
	code := strings.TrimSpace(paymentCode)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment code is required")
	}

	placed, err := s.placed.FindByPaymentCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no placed cart matches this payment code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up payment code")
	}
	if placed.PaymentType != enums.PaymentTypeOffline {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment code does not belong to an offline cart")
	}
	if placed.Status != enums.CartStatusPlaced {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails(fmt.Sprintf("cart %s is already %s", placed.OrderCode, placed.Status))
	}

	return s.fulfill.MarkPaid(ctx, placed.ID, actor)
}

func (s *service) HandleCallback(ctx context.Context, f CallbackFields) (*CallbackResult, error) {
	ctx = s.logg.WithField(ctx, "gateway_ref", f.ReferenceNo)

	signatureValid := s.gateway.VerifyCallback(f)

	// audit first: every payload is persisted, signature match or not
	audit := &models.GatewayCallback{
		ReferenceNo:    f.ReferenceNo,
		UniqueRef:      f.UniqueRef,
		ResponseCode:   f.ResponseCode,
		SignatureValid: signatureValid,
		Payload:        f.payload(),
		ReceivedAt:     time.Now().UTC(),
	}
	if err := s.callbacks.Create(ctx, audit); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist gateway callback")
	}

	if !signatureValid {
		s.logg.Warn(ctx, "gateway callback signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeSignatureMismatch, "callback signature does not match")
	}

	cartID, err := uuid.Parse(strings.TrimSpace(f.ReferenceNo))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed callback reference number")
	}

	cart, err := s.cartRepo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// the live cart is gone once a capture succeeded; a replayed
			// callback for the same reference is a no-op
			if placed, perr := s.placed.FindBySourceCartID(ctx, cartID); perr == nil {
				s.logg.Info(ctx, "gateway callback replay after capture")
				return s.replayResult(placed, f), nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no cart matches the callback reference")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart for callback")
	}

	if !s.gateway.IsSuccessCode(f.ResponseCode) {
		return s.recordFailure(ctx, cart, f)
	}
	return s.capture(ctx, cart, f)
}

// recordFailure moves the cart to paymentFailed and appends the attempt to
// the fail history, whatever the prior status. Repeated failure callbacks
// for the same gateway reference change nothing.
func (s *service) recordFailure(ctx context.Context, cart *models.Cart, f CallbackFields) (*CallbackResult, error) {
	for _, past := range cart.PaymentFailHistory {
		if past.ReferenceNo == f.UniqueRef {
			return s.failureResult(cart, f), nil
		}
	}

	now := time.Now().UTC()
	cart.PaymentFailHistory = append(cart.PaymentFailHistory, types.PaymentFailure{
		ReferenceNo:  f.UniqueRef,
		ResponseCode: f.ResponseCode,
		Amount:       f.TransactionAmount,
		FailedAt:     now,
	})
	if cart.Status != enums.CartStatusPaymentFailed {
		cart.Status = enums.CartStatusPaymentFailed
		cart.StatusTimeline.Record(enums.CartStatusPaymentFailed.String(), types.SystemActor, now)
	}

	user, err := s.users.FindByID(ctx, cart.RequestedBy)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart owner")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.cartRepo.WithTx(tx).Save(ctx, cart); err != nil {
			return err
		}
		cartID := cart.ID
		if err := s.notify.EnqueueTx(ctx, tx, notifications.EnqueueInput{
			Recipient: user.MemberID,
			Message:   fmt.Sprintf("Payment for cart %s failed (code %s). You can retry from your cart.", cart.OrderCode, f.ResponseCode),
			CartID:    &cartID,
		}); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartPaymentFailed,
			AggregateType: enums.AggregateCart,
			AggregateID:   cart.ID,
			Actor:         types.SystemActor,
			Data: map[string]any{
				"orderCode":    cart.OrderCode,
				"memberId":     user.MemberID,
				"email":        user.Email,
				"responseCode": f.ResponseCode,
				"uniqueRef":    f.UniqueRef,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment failure")
	}

	return s.failureResult(cart, f), nil
}

// capture reconciles a success callback: the cart must be awaiting exactly
// this payment and the amounts and merchant identity must match bit for bit.
// Any mismatch is a hard failure, never a partial success.
func (s *service) capture(ctx context.Context, cart *models.Cart, f CallbackFields) (*CallbackResult, error) {
	if cart.Status != enums.CartStatusProcessingPayment && cart.Status != enums.CartStatusPaymentFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails(fmt.Sprintf("cart in status %s is not awaiting an online payment", cart.Status))
	}
	if cart.PaymentType == nil || *cart.PaymentType != enums.PaymentTypeOnline {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails("cart is not an online payment")
	}
	if !s.gateway.MerchantMatches(f) {
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "merchant identifiers do not match")
	}

	expected := decimal.NewFromInt(int64(cart.TotalCost))
	for label, raw := range map[string]string{
		"transaction amount": f.TransactionAmount,
		"total amount":       f.TotalAmount,
	} {
		amount, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "unparseable "+label)
		}
		if !amount.Equal(expected) {
			return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, label+" does not match the cart total").
				WithDetails(fmt.Sprintf("expected %s, gateway sent %s", expected, amount))
		}
	}

	uniqueRef := f.UniqueRef
	placed, err := s.placer.PlaceCart(ctx, cart, types.SystemActor, placement.PaymentStamp{
		Type:          enums.PaymentTypeOnline,
		PaymentID:     &uniqueRef,
		PaymentStatus: true,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.fulfill.MarkPaid(ctx, placed.ID, types.SystemActor); err != nil {
		// the money moved and the snapshot exists; a failed cascade is
		// recovered from the fulfillment dashboard, not by failing the page
		s.logg.Error(ctx, "post-capture processing cascade failed", err)
	}

	return &CallbackResult{
		Outcome:     CallbackOutcomeSuccess,
		OrderCode:   placed.OrderCode,
		ReferenceNo: f.ReferenceNo,
		Amount:      f.TransactionAmount,
		Message:     "Payment received. Your order is being processed.",
	}, nil
}

// replayResult renders the page for a callback whose cart has already been
// captured and snapshotted. No state changes.
func (s *service) replayResult(placed *models.PlacedCart, f CallbackFields) *CallbackResult {
	if s.gateway.IsSuccessCode(f.ResponseCode) {
		return &CallbackResult{
			Outcome:     CallbackOutcomeSuccess,
			OrderCode:   placed.OrderCode,
			ReferenceNo: f.ReferenceNo,
			Amount:      f.TransactionAmount,
			Message:     "Payment received. Your order is being processed.",
		}
	}
	return &CallbackResult{
		Outcome:     CallbackOutcomeFailure,
		OrderCode:   placed.OrderCode,
		ReferenceNo: f.ReferenceNo,
		Amount:      f.TransactionAmount,
		Message:     "This payment attempt was not captured.",
	}
}

func (s *service) failureResult(cart *models.Cart, f CallbackFields) *CallbackResult {
	return &CallbackResult{
		Outcome:     CallbackOutcomeFailure,
		OrderCode:   cart.OrderCode,
		ReferenceNo: f.ReferenceNo,
		Amount:      f.TransactionAmount,
		Message:     "Payment failed. You can retry from your cart.",
	}
}
