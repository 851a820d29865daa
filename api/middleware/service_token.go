package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/foodway/foodway-backend/api/responses"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/logger"
)

const serviceTokenHeader = "X-Service-Token"

// ServiceToken guards internal routes called by the ordering flow. An empty token disables the routes.
func ServiceToken(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(token))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "internal routes disabled"))
				return
			}
			provided := []byte(strings.TrimSpace(r.Header.Get(serviceTokenHeader)))
			if subtle.ConstantTimeCompare(provided, expected) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid service token"))
				return
			}
			ctx := WithActor(r.Context(), ServiceActor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
