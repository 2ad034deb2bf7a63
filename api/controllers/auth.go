package controllers

import (
	"net/http"

	"github.com/campusdesk/campusdesk-backend/api/middleware"
	"github.com/campusdesk/campusdesk-backend/api/responses"
	"github.com/campusdesk/campusdesk-backend/api/validators"
	"github.com/campusdesk/campusdesk-backend/internal/auth"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
)

type userSummary struct {
	MemberID  string `json:"member_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Programme string `json:"programme,omitempty"`
	Batch     string `json:"batch,omitempty"`
	Verified  bool   `json:"verified"`
}

func summarizeUser(user *models.User) userSummary {
	return userSummary{
		MemberID:  user.MemberID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		Programme: user.Programme,
		Batch:     user.Batch,
		Verified:  user.Verified,
	}
}

// Register creates an account pending admin verification.
func Register(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Register(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, summarizeUser(user))
	}
}

// Login exchanges credentials for a bearer token.
func Login(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Login(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"access_token": resp.AccessToken,
			"user":         summarizeUser(resp.User),
		})
	}
}

type verifyRequest struct {
	MemberID string `json:"member_id" validate:"required"`
}

// VerifyMember activates an account; the member's first cart is created in
// the same transaction.
func VerifyMember(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.MemberIDFromContext(r.Context())
		user, err := svc.Verify(r.Context(), req.MemberID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summarizeUser(user))
	}
}
