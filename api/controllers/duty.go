package controllers

import (
	"net/http"

	"github.com/foodway/foodway-backend/api/responses"
	"github.com/foodway/foodway-backend/api/validators"
	"github.com/foodway/foodway-backend/internal/workers"
	"github.com/foodway/foodway-backend/pkg/logger"
)

type dutyRequest struct {
	OnDuty *bool `json:"onDuty" validate:"required"`
}

func WorkerSetDuty(svc workers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req dutyRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.SetOnDuty(r.Context(), worker, *req.OnDuty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func WorkerDutyStatus(svc workers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		onDuty, err := svc.IsOnDuty(r.Context(), worker)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, workers.DutyStatus{WorkerID: worker, OnDuty: onDuty})
	}
}
