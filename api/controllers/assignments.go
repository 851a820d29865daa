package controllers

import (
	"net/http"

	"github.com/foodway/foodway-backend/api/responses"
	"github.com/foodway/foodway-backend/api/validators"
	"github.com/foodway/foodway-backend/internal/assignments"
	"github.com/foodway/foodway-backend/internal/dispatch"
	"github.com/foodway/foodway-backend/internal/payments"
	"github.com/foodway/foodway-backend/internal/workers"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/logger"
)

type verifyOtpRequest struct {
	Code string `json:"code" validate:"required,numeric,min=4,max=10"`
}

type paymentRequestResponse struct {
	*payments.Request
	Link string `json:"link"`
}

// WorkerAvailableAssignments lists the open assignments; off-duty workers get an empty list.
func WorkerAvailableAssignments(svc assignments.Service, roster workers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		onDuty, err := roster.IsOnDuty(r.Context(), worker)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListAvailable(r.Context(), worker, onDuty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"onDuty":      onDuty,
			"assignments": assignments.ToViews(rows),
		})
	}
}

func WorkerClaimAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := assignmentIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.Claim(logg.WithAssignmentID(r.Context(), id.String()), id, worker)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignments.ToView(*row))
	}
}

// WorkerCurrentAssignments returns the assignments the worker holds and has not delivered yet.
func WorkerCurrentAssignments(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListClaimed(r.Context(), worker)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignments.ToViews(rows))
	}
}

func WorkerRequestDeliveryOtp(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := assignmentIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		issued, err := svc.RequestDeliveryOtp(logg.WithAssignmentID(r.Context(), id.String()), id, worker)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, issued)
	}
}

func WorkerVerifyDeliveryOtp(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := assignmentIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req verifyOtpRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.VerifyDeliveryOtp(logg.WithAssignmentID(r.Context(), id.String()), id, worker, req.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignments.ToView(*row))
	}
}

func WorkerPaymentRequest(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := assignmentIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.PaymentRequest(r.Context(), id, worker)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment request missing"))
			return
		}
		responses.WriteSuccess(w, paymentRequestResponse{Request: req, Link: req.Link()})
	}
}
