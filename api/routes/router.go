package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foodway/foodway-backend/api/controllers"
	"github.com/foodway/foodway-backend/api/middleware"
	"github.com/foodway/foodway-backend/internal/assignments"
	"github.com/foodway/foodway-backend/internal/broadcast"
	"github.com/foodway/foodway-backend/internal/dispatch"
	"github.com/foodway/foodway-backend/internal/workers"
	"github.com/foodway/foodway-backend/pkg/config"
	"github.com/foodway/foodway-backend/pkg/enums"
	"github.com/foodway/foodway-backend/pkg/logger"
	"github.com/foodway/foodway-backend/pkg/redis"
)

type pinger interface {
	Ping(context.Context) error
}

// Deps carries everything the HTTP surface calls into. Redis and DB may be nil when the
// process runs on in-memory stores.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          pinger
	Redis       *redis.Client
	Gatherer    prometheus.Gatherer
	Broker      *broadcast.Broker
	Assignments assignments.Service
	Dispatch    dispatch.Service
	Workers     workers.Service
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var idemStore redis.IdempotencyStore
	otpLimit := passthrough
	ready := map[string]controllers.Pinger{}
	if d.DB != nil {
		ready["db"] = d.DB
	}
	if d.Redis != nil {
		idemStore = d.Redis
		otpLimit = middleware.OTPRateLimit(middleware.NewOTPRateLimitPolicy(
			"account-otp",
			cfg.AccountOtpRateLimit.Window,
			cfg.AccountOtpRateLimit.IPLimit,
			cfg.AccountOtpRateLimit.EmailLimit,
		), d.Redis, logg)
		ready["redis"] = d.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Route("/otp", func(r chi.Router) {
			r.Use(otpLimit)
			r.Post("/request", controllers.AccountOtpRequest(d.Dispatch, logg))
			r.Post("/verify", controllers.AccountOtpVerify(d.Dispatch, logg))
		})
	})

	r.Route("/api/v1/worker", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleDelivery))

		r.Get("/ping", controllers.WorkerPing())
		r.Get("/session", controllers.WorkerSession(controllers.SessionParams{
			Broker:      d.Broker,
			Assignments: d.Assignments,
			Workers:     d.Workers,
			Logger:      logg,
			FrameRate:   cfg.Dispatch.SessionFrameRPS,
		}))
		r.Get("/duty", controllers.WorkerDutyStatus(d.Workers, logg))
		r.Put("/duty", controllers.WorkerSetDuty(d.Workers, logg))

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/available", controllers.WorkerAvailableAssignments(d.Assignments, d.Workers, logg))
			r.Get("/current", controllers.WorkerCurrentAssignments(d.Assignments, logg))
			retried := middleware.Idempotency(idemStore, logg, middleware.OptionalIdempotency(middleware.ActionIdempotencyTTL))
			r.With(retried).Post("/{assignmentId}/claim", controllers.WorkerClaimAssignment(d.Assignments, logg))
			r.With(middleware.Idempotency(idemStore, logg, middleware.OptionalIdempotency(middleware.OTPSendIdempotencyTTL))).
				Post("/{assignmentId}/otp", controllers.WorkerRequestDeliveryOtp(d.Dispatch, logg))
			r.With(retried).Post("/{assignmentId}/otp/verify", controllers.WorkerVerifyDeliveryOtp(d.Dispatch, logg))
			r.Get("/{assignmentId}/payment-request", controllers.WorkerPaymentRequest(d.Dispatch, logg))
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", controllers.WorkerDeliveries(d.Assignments, logg))
			r.Get("/today", controllers.WorkerDeliveriesToday(d.Assignments, logg))
			r.Get("/counts", controllers.WorkerDeliveryCounts(d.Assignments, logg))
		})
	})

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(middleware.ServiceToken(cfg.App.ServiceToken, logg))
		r.With(middleware.Idempotency(idemStore, logg, middleware.RequiredIdempotency(middleware.OrderIdempotencyTTL))).
			Post("/orders", controllers.InternalPlaceOrder(d.Dispatch, logg))
	})

	return r
}

func passthrough(next http.Handler) http.Handler { return next }
