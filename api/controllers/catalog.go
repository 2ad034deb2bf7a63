package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/api/middleware"
	"github.com/campusdesk/campusdesk-backend/api/responses"
	"github.com/campusdesk/campusdesk-backend/api/validators"
	"github.com/campusdesk/campusdesk-backend/internal/catalog"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
)

type serviceRequest struct {
	Name                   string   `json:"name" validate:"required"`
	Description            string   `json:"description,omitempty"`
	BaseCharge             int      `json:"base_charge" validate:"min=0"`
	MaxUnits               int      `json:"max_units" validate:"required,min=1"`
	IsActive               bool     `json:"is_active"`
	IsSpecial              bool     `json:"is_special"`
	SpecialMembers         []string `json:"special_members,omitempty"`
	AllowedProgrammes      []string `json:"allowed_programmes,omitempty"`
	AllowedBatches         []string `json:"allowed_batches,omitempty"`
	AllowedUserTypes       []string `json:"allowed_user_types,omitempty"`
	AllowedUserStatuses    []string `json:"allowed_user_statuses,omitempty"`
	PaymentModes           []string `json:"payment_modes,omitempty" validate:"dive,oneof=offline online"`
	AllowedParameters      []string `json:"allowed_parameters,omitempty" validate:"dive,uuid"`
	AllowedCollectionTypes []string `json:"allowed_collection_types,omitempty" validate:"dive,uuid"`
}

func (r serviceRequest) toInput() (catalog.ServiceInput, error) {
	params, err := parseUUIDList(r.AllowedParameters, "allowed parameter")
	if err != nil {
		return catalog.ServiceInput{}, err
	}
	collectionTypes, err := parseUUIDList(r.AllowedCollectionTypes, "allowed collection type")
	if err != nil {
		return catalog.ServiceInput{}, err
	}
	return catalog.ServiceInput{
		Name:                   r.Name,
		Description:            r.Description,
		BaseCharge:             r.BaseCharge,
		MaxUnits:               r.MaxUnits,
		IsActive:               r.IsActive,
		IsSpecial:              r.IsSpecial,
		SpecialMembers:         r.SpecialMembers,
		AllowedProgrammes:      r.AllowedProgrammes,
		AllowedBatches:         r.AllowedBatches,
		AllowedUserTypes:       r.AllowedUserTypes,
		AllowedUserStatuses:    r.AllowedUserStatuses,
		PaymentModes:           r.PaymentModes,
		AllowedParameters:      params,
		AllowedCollectionTypes: collectionTypes,
	}, nil
}

func parseUUIDList(raw []string, label string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label+" id")
		}
		out = append(out, id)
	}
	return out, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}

// ListServices serves the catalog. Students see active entries only; admins
// pass include_inactive=true for the full table.
func ListServices(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListServices(r.Context(), !includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func GetService(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "serviceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.GetService(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

func CreateService(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req serviceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.CreateService(r.Context(), middleware.MemberIDFromContext(r.Context()), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func UpdateService(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "serviceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req serviceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.UpdateService(r.Context(), middleware.MemberIDFromContext(r.Context()), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// DeleteService removes a service and evicts the live orders that requested
// it.
func DeleteService(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "serviceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteService(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type parameterRequest struct {
	Name       string `json:"name" validate:"required"`
	BaseCharge int    `json:"base_charge" validate:"min=0"`
	IsActive   bool   `json:"is_active"`
}

func ListParameters(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListParameters(r.Context(), !includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func CreateParameter(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req parameterRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.CreateParameter(r.Context(), middleware.MemberIDFromContext(r.Context()), catalog.ParameterInput{
			Name:       req.Name,
			BaseCharge: req.BaseCharge,
			IsActive:   req.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func UpdateParameter(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "parameterId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req parameterRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.UpdateParameter(r.Context(), middleware.MemberIDFromContext(r.Context()), id, catalog.ParameterInput{
			Name:       req.Name,
			BaseCharge: req.BaseCharge,
			IsActive:   req.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// DeleteParameter removes a parameter, scrubs it from every service's allowed
// set and evicts the live orders carrying it.
func DeleteParameter(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "parameterId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteParameter(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type collectionTypeRequest struct {
	Name       string `json:"name" validate:"required"`
	Category   string `json:"category" validate:"required,oneof=delivery pickup"`
	BaseCharge int    `json:"base_charge" validate:"min=0"`
	IsActive   bool   `json:"is_active"`
}

func ListCollectionTypes(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeInactive, err := validators.ParseQueryBool(r, "include_inactive", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListCollectionTypes(r.Context(), !includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func CreateCollectionType(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req collectionTypeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := enums.ParseCollectionCategory(req.Category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
			return
		}
		created, err := svc.CreateCollectionType(r.Context(), middleware.MemberIDFromContext(r.Context()), catalog.CollectionTypeInput{
			Name:       req.Name,
			Category:   category,
			BaseCharge: req.BaseCharge,
			IsActive:   req.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func UpdateCollectionType(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "collectionTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req collectionTypeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := enums.ParseCollectionCategory(req.Category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
			return
		}
		updated, err := svc.UpdateCollectionType(r.Context(), middleware.MemberIDFromContext(r.Context()), id, catalog.CollectionTypeInput{
			Name:       req.Name,
			Category:   category,
			BaseCharge: req.BaseCharge,
			IsActive:   req.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// DeleteCollectionType removes a collection type, scrubs it from every
// service and invalidates live carts that selected it.
func DeleteCollectionType(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "collectionTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteCollectionType(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
