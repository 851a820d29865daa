package controllers

import (
	"net/http"

	"github.com/foodway/foodway-backend/api/responses"
	"github.com/foodway/foodway-backend/api/validators"
	"github.com/foodway/foodway-backend/internal/assignments"
	"github.com/foodway/foodway-backend/pkg/logger"
)

// WorkerDeliveries answers the history filter: ?year=&month= with an optional &day=.
func WorkerDeliveries(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		year, err := validators.ParseRequiredQueryInt(r, "year", 2000, 2100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		month, err := validators.ParseRequiredQueryInt(r, "month", 1, 12)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		day, err := validators.ParseOptionalQueryInt(r, "day", 1, 31)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.QueryByDateRange(r.Context(), assignments.DeliveryQuery{
			WorkerID: worker,
			Year:     year,
			Month:    month,
			Day:      day,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func WorkerDeliveriesToday(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.DeliveriesToday(r.Context(), worker)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func WorkerDeliveryCounts(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		counts, err := svc.DeliveryCounts(r.Context(), worker)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, counts)
	}
}
