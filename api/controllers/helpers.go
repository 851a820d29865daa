package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/foodway/foodway-backend/api/middleware"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
)

func workerID(r *http.Request) (string, error) {
	id, ok := middleware.WorkerIDFromContext(r.Context())
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "worker identity missing")
	}
	return id, nil
}

func assignmentIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "assignmentId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid assignment id").WithDetails(map[string]any{"field": "assignmentId"})
	}
	return id, nil
}
