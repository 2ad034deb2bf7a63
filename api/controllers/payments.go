package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusdesk/campusdesk-backend/api/middleware"
	"github.com/campusdesk/campusdesk-backend/api/responses"
	"github.com/campusdesk/campusdesk-backend/api/validators"
	"github.com/campusdesk/campusdesk-backend/internal/payments"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
)

type payRequest struct {
	PaymentType string `json:"payment_type" validate:"required,oneof=offline online"`
}

// PayCart starts payment for the user's cart. Offline returns the payment
// code the admin will confirm; online returns the gateway redirect URL.
func PayCart(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req payRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentType, err := enums.ParsePaymentType(req.PaymentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment type"))
			return
		}

		actor := middleware.MemberIDFromContext(r.Context())
		intent, err := svc.InitiatePayment(r.Context(), userID, paymentType, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if intent.Type == enums.PaymentTypeOffline {
			responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
				"payment_type": intent.Type.String(),
				"order_code":   intent.PlacedCart.OrderCode,
				"payment_code": intent.PaymentCode,
			})
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"payment_type": intent.Type.String(),
			"redirect_url": intent.RedirectURL,
		})
	}
}

// ConfirmOfflinePayment matches the payment code an admin keyed in against
// its placed cart and moves the cart to processing.
func ConfirmOfflinePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.MemberIDFromContext(r.Context())
		placed, err := svc.ConfirmOffline(r.Context(), chi.URLParam(r, "paymentCode"), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"id":             placed.ID,
			"order_code":     placed.OrderCode,
			"status":         placed.Status.String(),
			"payment_status": placed.PaymentStatus,
		})
	}
}
