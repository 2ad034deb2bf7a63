package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/api/middleware"
	"github.com/campusdesk/campusdesk-backend/api/responses"
	"github.com/campusdesk/campusdesk-backend/api/validators"
	"github.com/campusdesk/campusdesk-backend/internal/carts"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
)

type cartOrderResponse struct {
	ID             uuid.UUID `json:"id"`
	ServiceID      uuid.UUID `json:"service_id"`
	ServiceName    string    `json:"service_name"`
	UnitsRequested int       `json:"units_requested"`
	ParameterIDs   []string  `json:"parameter_ids,omitempty"`
	ServiceCost    int       `json:"service_cost"`
	ParameterCost  int       `json:"parameter_cost"`
	TotalCost      int       `json:"total_cost"`
	Status         string    `json:"status"`
	Comment        *string   `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type cartResponse struct {
	ID                 uuid.UUID           `json:"id"`
	OrderCode          string              `json:"order_code"`
	Status             string              `json:"status"`
	Orders             []cartOrderResponse `json:"orders"`
	CollectionTypeID   *uuid.UUID          `json:"collection_type_id,omitempty"`
	CollectionCategory *string             `json:"collection_category,omitempty"`
	Delivery           *models.Delivery    `json:"delivery,omitempty"`
	Pickup             *models.Pickup      `json:"pickup,omitempty"`
	CollectionTypeCost int                 `json:"collection_type_cost"`
	OrdersCost         int                 `json:"orders_cost"`
	TotalCost          int                 `json:"total_cost"`
	ValidityErrors     []string            `json:"validity_errors,omitempty"`
}

func renderCartView(view *carts.CartView) cartResponse {
	cart := view.Cart
	resp := cartResponse{
		ID:                 cart.ID,
		OrderCode:          cart.OrderCode,
		Status:             cart.Status.String(),
		Orders:             make([]cartOrderResponse, 0, len(cart.Orders)),
		CollectionTypeID:   cart.CollectionTypeID,
		CollectionTypeCost: cart.CollectionTypeCost,
		OrdersCost:         cart.OrdersCost,
		TotalCost:          cart.TotalCost,
		ValidityErrors:     view.ValidityErrors,
	}
	if cart.CollectionCategory != nil {
		category := string(*cart.CollectionCategory)
		resp.CollectionCategory = &category
	}
	resp.Delivery = cart.Delivery
	resp.Pickup = cart.Pickup
	for i := range cart.Orders {
		order := &cart.Orders[i]
		item := cartOrderResponse{
			ID:             order.ID,
			ServiceID:      order.ServiceID,
			ServiceName:    order.ServiceName,
			UnitsRequested: order.UnitsRequested,
			ServiceCost:    order.ServiceCost,
			ParameterCost:  order.ParameterCost,
			TotalCost:      order.TotalCost,
			Status:         order.Status.String(),
			Comment:        order.Comment,
			CreatedAt:      order.CreatedAt,
		}
		for _, id := range order.ParameterIDs {
			item.ParameterIDs = append(item.ParameterIDs, id.String())
		}
		resp.Orders = append(resp.Orders, item)
	}
	return resp
}

func requestUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// GetCart returns the user's live cart, revalidated against the catalog.
func GetCart(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetCart(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, renderCartView(view))
	}
}

type addOrderRequest struct {
	ServiceID    string   `json:"service_id" validate:"required,uuid"`
	Units        int      `json:"units" validate:"required,min=1"`
	ParameterIDs []string `json:"parameter_ids" validate:"dive,uuid"`
	Comment      *string  `json:"comment,omitempty"`
}

// AddOrder appends a service request to the cart.
func AddOrder(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req addOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid service id"))
			return
		}
		input := carts.AddOrderInput{
			ServiceID: serviceID,
			Units:     req.Units,
			Comment:   req.Comment,
		}
		for _, raw := range req.ParameterIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid parameter id"))
				return
			}
			input.ParameterIDs = append(input.ParameterIDs, id)
		}

		view, err := svc.AddOrder(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, renderCartView(view))
	}
}

// RemoveOrder drops one request from the cart.
func RemoveOrder(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		view, err := svc.RemoveOrder(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, renderCartView(view))
	}
}

type setCollectionRequest struct {
	CollectionTypeID string               `json:"collection_type_id" validate:"required,uuid"`
	Delivery         *carts.DeliveryInput `json:"delivery,omitempty"`
	Pickup           *carts.PickupInput   `json:"pickup,omitempty"`
}

// SetCollection selects the collection type plus the delivery or pickup
// details that match its category.
func SetCollection(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req setCollectionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		collectionTypeID, err := uuid.Parse(req.CollectionTypeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid collection type id"))
			return
		}

		view, err := svc.SetCollection(r.Context(), userID, carts.SetCollectionInput{
			CollectionTypeID: collectionTypeID,
			Delivery:         req.Delivery,
			Pickup:           req.Pickup,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, renderCartView(view))
	}
}
