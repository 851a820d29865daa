package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/foodway/foodway-backend/internal/notify"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/logger"
	"github.com/foodway/foodway-backend/pkg/metrics"
)

// Enqueuer hands a message to the async notifier; false means it was dropped.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg notify.Message) bool
}

// CodeGenerator returns a numeric code of exactly length digits.
type CodeGenerator func(length int) (string, error)

type IssuerParams struct {
	Store         Store
	Notifications Enqueuer
	Logger        *logger.Logger
	Metrics       *metrics.DispatchMetrics
	Now           func() time.Time
	// LogCodes writes issued codes to the log. Dev only.
	LogCodes bool
}

type IssuerOption func(*Issuer)

// WithCodeGenerator replaces the crypto/rand generator.
func WithCodeGenerator(gen CodeGenerator) IssuerOption {
	return func(i *Issuer) {
		if gen != nil {
			i.generate = gen
		}
	}
}

type Issuer struct {
	store    Store
	notes    Enqueuer
	logg     *logger.Logger
	metrics  *metrics.DispatchMetrics
	now      func() time.Time
	logCodes bool
	generate CodeGenerator
}

func NewIssuer(p IssuerParams, opts ...IssuerOption) (*Issuer, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("otp store required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	iss := &Issuer{
		store:    p.Store,
		notes:    p.Notifications,
		logg:     p.Logger,
		metrics:  p.Metrics,
		now:      p.Now,
		logCodes: p.LogCodes,
		generate: randomCode,
	}
	for _, opt := range opts {
		opt(iss)
	}
	return iss, nil
}

// Issue stores a fresh code for key, replacing any prior one, and queues it for the recipient.
// Notification problems are logged and never fail issuance.
func (i *Issuer) Issue(ctx context.Context, key Key, policy Policy, to notify.Recipient) (string, error) {
	if err := policy.validate(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid otp policy")
	}
	if !key.valid() || key.Purpose != policy.Purpose {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid otp key")
	}

	code, err := i.generate(policy.Length)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp")
	}
	if len(code) != policy.Length {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "generated otp has wrong length")
	}

	now := i.now().UTC()
	rec := Record{
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(policy.Window),
	}
	if err := i.store.Save(ctx, key, rec); err != nil {
		i.metrics.IncOTP(key.Purpose.String(), "issue", "error")
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store otp")
	}
	i.metrics.IncOTP(key.Purpose.String(), "issue", "ok")

	ctx = i.logg.WithFields(ctx, map[string]any{
		"otp_purpose": key.Purpose.String(),
		"otp_subject": key.Subject,
	})
	if i.logCodes {
		i.logg.Info(i.logg.WithField(ctx, "otp_code", code), "otp.issued_dev")
	}

	if i.notes != nil {
		msg := notify.Message{
			To:      to,
			Subject: policy.Subject,
			Body:    policy.Body(code),
			Tags: map[string]any{
				"otp_purpose": key.Purpose.String(),
				"otp_subject": key.Subject,
			},
		}
		if !i.notes.Enqueue(ctx, msg) {
			i.logg.Warn(ctx, "otp.notification_not_queued")
		}
	}
	return code, nil
}

// Verify checks candidate against the current record for key and consumes it on success.
// The check-and-set runs atomically in the store so a code is accepted at most once.
func (i *Issuer) Verify(ctx context.Context, key Key, candidate string, policy Policy) error {
	now := i.now().UTC()
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	err := i.store.Update(ctx, key, func(rec *Record) (bool, error) {
		switch {
		case rec == nil:
			return false, ErrNotFound
		case rec.Consumed:
			return false, ErrConsumed
		case rec.Expired(now):
			return false, ErrExpired
		case rec.Attempts >= maxAttempts:
			return false, ErrTooManyAttempts
		}
		if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(candidate)) != 1 {
			rec.Attempts++
			return true, ErrMismatch
		}
		rec.Consumed = true
		return true, nil
	})

	i.metrics.IncOTP(key.Purpose.String(), "verify", outcomeLabel(err))
	if err != nil && pkgerrors.As(err) == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify otp")
	}
	return err
}

// Sweep drops records past retention from stores that lack native expiry.
func (i *Issuer) Sweep(ctx context.Context) (int, error) {
	return i.store.Sweep(ctx, i.now().UTC())
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConsumed):
		return "consumed"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrMismatch):
		return "mismatch"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	default:
		return "error"
	}
}

func randomCode(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}
