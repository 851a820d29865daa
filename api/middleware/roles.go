package middleware

import (
	"net/http"
	"slices"

	"github.com/foodway/foodway-backend/api/responses"
	"github.com/foodway/foodway-backend/pkg/enums"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/logger"
)

// RequireRole admits actors holding one of roles. Delivery workers get worker_id in log context.
func RequireRole(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			if !slices.Contains(roles, actor.Role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed").
					WithDetails(map[string]any{"role": actor.Role.String()}))
				return
			}
			if logg != nil && actor.Role == enums.ActorRoleDelivery {
				r = r.WithContext(logg.WithWorkerID(r.Context(), actor.ID))
			}
			next.ServeHTTP(w, r)
		})
	}
}
