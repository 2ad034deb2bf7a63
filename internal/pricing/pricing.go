package pricing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
)

// Wildcard in an eligibility predicate matches every user value.
const Wildcard = "*"

// ServiceCost computes units * baseCharge for an eligible, active service.
// Every failure returns an INVALID_PRICING error; zero is a legitimate cost
// and is never used as a failure sentinel.
func ServiceCost(svc *models.Service, units int, user *models.User) (int, error) {
	if svc == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "service no longer exists")
	}
	if !svc.IsActive {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "service is inactive")
	}
	if units <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "units must be positive")
	}
	if units > svc.MaxUnits {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "units exceed the service limit")
	}
	if user == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "user is required for eligibility")
	}

	if svc.IsSpecial {
		if !containsValue(svc.SpecialMembers, user.MemberID) {
			return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "user is not on the service allow-list")
		}
	} else if err := checkEligibility(svc, user); err != nil {
		return 0, err
	}

	return units * svc.BaseCharge, nil
}

// ParameterCost computes units * sum(baseCharge) over the requested
// parameters. Each requested parameter must exist in the catalog slice, be
// active, and appear in the service's allowed set.
func ParameterCost(requested []uuid.UUID, catalog []models.Parameter, units int, allowed []uuid.UUID) (int, error) {
	if len(requested) == 0 {
		return 0, nil
	}
	if units <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "units must be positive")
	}

	byID := make(map[uuid.UUID]models.Parameter, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}
	allowedSet := make(map[uuid.UUID]struct{}, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = struct{}{}
	}

	sum := 0
	for _, id := range requested {
		param, ok := byID[id]
		if !ok {
			return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "parameter no longer exists")
		}
		if !param.IsActive {
			return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "parameter is inactive")
		}
		if _, ok := allowedSet[id]; !ok {
			return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "parameter is not allowed for this service")
		}
		sum += param.BaseCharge
	}

	return units * sum, nil
}

// CollectionTypeCost validates the chosen collection type against the cart's
// services and returns its charge. An unset collection type costs zero when
// allowUnset, and is an INVALID_PRICING failure otherwise (payment time).
func CollectionTypeCost(ct *models.CollectionType, services []models.Service, expectedCategory *enums.CollectionCategory, allowUnset bool) (int, error) {
	if ct == nil {
		if allowUnset {
			return 0, nil
		}
		return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "collection type is required")
	}
	if !ct.IsActive {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "collection type is inactive")
	}
	if expectedCategory != nil && ct.Category != *expectedCategory {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "collection type category mismatch")
	}
	for i := range services {
		if !uuidSliceContains(services[i].AllowedCollectionTypes, ct.ID) {
			return 0, pkgerrors.New(pkgerrors.CodeInvalidPricing, "collection type is not accepted by every service in the cart")
		}
	}
	return ct.BaseCharge, nil
}

func checkEligibility(svc *models.Service, user *models.User) error {
	checks := []struct {
		allowed pq.StringArray
		value   string
		message string
	}{
		{svc.AllowedProgrammes, user.Programme, "user programme is not eligible"},
		{svc.AllowedBatches, user.Batch, "user batch is not eligible"},
		{svc.AllowedUserTypes, user.UserType, "user type is not eligible"},
		{svc.AllowedUserStatuses, user.UserStatus, "user status is not eligible"},
	}
	for _, check := range checks {
		if len(check.allowed) == 0 {
			continue
		}
		if !containsValue(check.allowed, check.value) {
			return pkgerrors.New(pkgerrors.CodeInvalidPricing, check.message)
		}
	}
	return nil
}

func containsValue(allowed pq.StringArray, value string) bool {
	for _, candidate := range allowed {
		candidate = strings.TrimSpace(candidate)
		if candidate == Wildcard || strings.EqualFold(candidate, strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}

func uuidSliceContains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
