package controllers

import (
	"net/http"
	"time"

	"github.com/foodway/foodway-backend/api/middleware"
	"github.com/foodway/foodway-backend/api/responses"
)

type pingResponse struct {
	Scope      string    `json:"scope"`
	ServerTime time.Time `json:"serverTime"`
	WorkerID   string    `json:"workerId,omitempty"`
}

// PublicPing lets the worker app check reachability and clock skew before login.
func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, pingResponse{Scope: "public", ServerTime: time.Now().UTC()})
	}
}

// WorkerPing echoes the authenticated worker so the app can confirm its token.
func WorkerPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := middleware.WorkerIDFromContext(r.Context())
		responses.WriteSuccess(w, pingResponse{Scope: "worker", ServerTime: time.Now().UTC(), WorkerID: id})
	}
}
