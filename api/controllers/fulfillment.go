package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/api/middleware"
	"github.com/campusdesk/campusdesk-backend/api/responses"
	"github.com/campusdesk/campusdesk-backend/api/validators"
	"github.com/campusdesk/campusdesk-backend/internal/fulfillment"
	"github.com/campusdesk/campusdesk-backend/internal/invoices"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/pagination"
)

// ListPlacedCarts returns the user's own order history, newest first.
func ListPlacedCarts(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		carts, err := svc.ListCartsForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, carts)
	}
}

// GetPlacedCart returns one of the user's placed carts.
func GetPlacedCart(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "placedCartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.GetCartForUser(r.Context(), userID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cart)
	}
}

// ResumePlacedOrder lifts the user's own on-hold order back to processing.
func ResumePlacedOrder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "placedOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor := middleware.MemberIDFromContext(r.Context())
		order, err := svc.ResumeOrder(r.Context(), userID, id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminListPlacedCarts serves the fulfillment dashboard with status filters
// and keyset pagination.
func AdminListPlacedCarts(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := fulfillment.ListCartsQuery{
			Limit: limit,
		}
		for _, raw := range r.URL.Query()["status"] {
			status, err := enums.ParseCartStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			query.Statuses = append(query.Statuses, status)
		}
		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}
		query.Cursor = cursor

		carts, next, err := svc.ListCarts(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload := map[string]any{"carts": carts}
		if next != nil {
			payload["next_cursor"] = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}

// AdminGetPlacedCart returns any placed cart for the dashboard detail view.
func AdminGetPlacedCart(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "placedCartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.GetCart(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cart)
	}
}

type transitionCartRequest struct {
	Status      string  `json:"status" validate:"required"`
	CourierName *string `json:"courier_name,omitempty"`
	TrackingID  *string `json:"tracking_id,omitempty"`
	Reason      *string `json:"reason,omitempty"`
}

// TransitionPlacedCart moves a placed cart along the fulfillment pipeline.
func TransitionPlacedCart(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "placedCartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req transitionCartRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := enums.ParseCartStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		actor := middleware.MemberIDFromContext(r.Context())
		cart, err := svc.TransitionCart(r.Context(), id, fulfillment.TransitionCartInput{
			To:          to,
			CourierName: req.CourierName,
			TrackingID:  req.TrackingID,
			Reason:      req.Reason,
		}, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cart)
	}
}

type transitionOrderRequest struct {
	Status string  `json:"status" validate:"required"`
	Reason *string `json:"reason,omitempty"`
}

// TransitionPlacedOrder moves a single order; the parent cart is re-evaluated
// against its orders afterwards.
func TransitionPlacedOrder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "placedOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req transitionOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		actor := middleware.MemberIDFromContext(r.Context())
		order, err := svc.TransitionOrder(r.Context(), id, to, req.Reason, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type invoiceUserReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// DownloadInvoice renders the paid cart's invoice as a PDF attachment.
func DownloadInvoice(svc fulfillment.Service, users invoiceUserReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "placedCartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.GetCart(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owner, err := users.FindByID(r.Context(), cart.RequestedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart owner"))
			return
		}

		pdf, err := invoices.Render(cart, owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", invoices.Filename(cart)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
	}
}
