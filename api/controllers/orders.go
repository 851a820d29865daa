package controllers

import (
	"net/http"

	"go.uber.org/multierr"

	"github.com/foodway/foodway-backend/api/responses"
	"github.com/foodway/foodway-backend/api/validators"
	"github.com/foodway/foodway-backend/internal/dispatch"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/logger"
)

// InternalPlaceOrder is the synchronous intake used by the ordering flow.
func InternalPlaceOrder(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var order dispatch.OrderPlaced
		if err := validators.DecodeJSONBody(w, r, &order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithField(r.Context(), "order_id", order.OrderID)
		result, err := svc.PlaceOrder(ctx, order)
		if err != nil {
			responses.WriteError(ctx, logg, w, placeOrderError(err, result))
			return
		}
		status := http.StatusCreated
		if len(result.Created) == 0 {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// placeOrderError reports a dependency failure when any sub-order may succeed on retry,
// otherwise the order itself is at fault.
func placeOrderError(err error, result *dispatch.PlaceOrderResult) error {
	if result == nil {
		return err
	}
	failures := multierr.Errors(err)
	messages := make([]string, 0, len(failures))
	for _, failure := range failures {
		messages = append(messages, failure.Error())
	}
	code := pkgerrors.CodeInvalidOrder
	if pkgerrors.Retryable(err) {
		code = pkgerrors.CodeDependency
	}
	details := map[string]any{
		"failures":   messages,
		"created":    result.Created,
		"duplicates": result.Duplicates,
	}
	message := "order could not be dispatched"
	if code == pkgerrors.CodeDependency {
		message = "some sub-orders could not be dispatched, retry the order"
	}
	return pkgerrors.Wrap(code, err, message).WithDetails(details)
}
