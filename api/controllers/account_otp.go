package controllers

import (
	"net/http"

	"github.com/foodway/foodway-backend/api/responses"
	"github.com/foodway/foodway-backend/api/validators"
	"github.com/foodway/foodway-backend/internal/dispatch"
	"github.com/foodway/foodway-backend/pkg/logger"
)

const maxEmailLength = 254

type accountOtpRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type accountOtpVerifyRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,numeric,min=4,max=10"`
}

// AccountOtpRequest mails a short-lived code for account verification.
func AccountOtpRequest(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req accountOtpRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		issued, err := svc.RequestAccountOtp(r.Context(), validators.SanitizeEmail(req.Email, maxEmailLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, issued)
	}
}

func AccountOtpVerify(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req accountOtpVerifyRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.VerifyAccountOtp(r.Context(), validators.SanitizeEmail(req.Email, maxEmailLength), req.Code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"verified": true})
	}
}
