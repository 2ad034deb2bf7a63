package middleware

import (
	"net/http"

	"github.com/campusdesk/campusdesk-backend/api/responses"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
	"github.com/campusdesk/campusdesk-backend/pkg/permissions"
)

// RequireGrant gates a route on the grants table for the actor's role.
func RequireGrant(store *permissions.Store, grant permissions.Grant, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.UserRole(RoleFromContext(r.Context()))
			if store == nil || !store.Can(role, grant) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "missing permission"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
