package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/foodway/foodway-backend/api/responses"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/logger"
	pkgredis "github.com/foodway/foodway-backend/pkg/redis"
)

// IdempotencyKeyHeader carries the caller's retry key.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotencyReplayedHeader is set on responses served from a stored record.
const IdempotencyReplayedHeader = "Idempotency-Replayed"

const (
	// OrderIdempotencyTTL covers ordering-flow retries of order intake.
	OrderIdempotencyTTL = 7 * 24 * time.Hour
	// ActionIdempotencyTTL covers worker app retries of claim and OTP verify.
	ActionIdempotencyTTL = 24 * time.Hour
	// OTPSendIdempotencyTTL is short so a worker can ask for a fresh code soon after.
	OTPSendIdempotencyTTL = time.Minute

	inFlightTTL    = 30 * time.Second
	maxKeyLength   = 255
	inFlightSuffix = "inflight"
)

// IdempotencyPolicy decides how long a response is kept and whether callers must send a key.
type IdempotencyPolicy struct {
	TTL      time.Duration
	Required bool
}

func RequiredIdempotency(ttl time.Duration) IdempotencyPolicy {
	return IdempotencyPolicy{TTL: ttl, Required: true}
}

func OptionalIdempotency(ttl time.Duration) IdempotencyPolicy {
	return IdempotencyPolicy{TTL: ttl}
}

type idempotencyRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the first non-5xx response stored for (actor, path, key). A second
// request with the same key and a different body is rejected, and so is one that arrives
// while the first is still running.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger, policy IdempotencyPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			idemKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			switch {
			case idemKey == "" && !policy.Required:
				next.ServeHTTP(w, r)
				return
			case idemKey == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header required"))
				return
			case len(idemKey) > maxKeyLength:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			scope := idempotencyScope(r)
			key := store.IdempotencyKey(scope, idemKey)

			if replayed, err := replay(ctx, store, key, requestHash, w); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			} else if replayed {
				return
			}

			lockKey := store.IdempotencyKey(scope+"|"+inFlightSuffix, idemKey)
			acquired, err := store.SetNX(ctx, lockKey, requestHash, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock idempotency key"))
				return
			}
			if !acquired {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is still in progress"))
				return
			}
			defer func() {
				if delErr := store.Del(context.WithoutCancel(ctx), lockKey); delErr != nil {
					logError(ctx, logg, "idempotency.unlock_failed", delErr)
				}
			}()

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// 5xx stays retryable under the same key
			if rec.statusCode() >= http.StatusInternalServerError {
				return
			}
			payload, err := json.Marshal(idempotencyRecord{
				Status:      rec.statusCode(),
				ContentType: rec.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: requestHash,
			})
			if err != nil {
				logError(ctx, logg, "idempotency.marshal_failed", err)
				return
			}
			if _, err := store.SetNX(context.WithoutCancel(ctx), key, string(payload), policy.TTL); err != nil {
				logError(ctx, logg, "idempotency.persist_failed", err)
			}
		})
	}
}

// replay writes the stored response for key when there is one.
func replay(ctx context.Context, store pkgredis.IdempotencyStore, key, requestHash string, w http.ResponseWriter) (bool, error) {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, pkgredis.Nil) || (err == nil && stored == "") {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record")
	}
	if record.RequestHash != requestHash {
		return false, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	}
	body, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency body")
	}

	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(IdempotencyReplayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(body)
	return true, nil
}

// idempotencyScope keeps keys from different actors and paths apart.
func idempotencyScope(r *http.Request) string {
	actor := ActorIDFromContext(r.Context())
	if actor == "" {
		actor = "service"
	}
	return strings.Join([]string{actor, r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
