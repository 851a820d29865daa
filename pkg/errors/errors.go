package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"

	"go.uber.org/multierr"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Dispatch domain.
	CodeInvalidOrder       Code = "INVALID_ORDER"
	CodeAlreadyClaimed     Code = "ALREADY_CLAIMED"
	CodeOTPExpired         Code = "OTP_EXPIRED"
	CodeOTPConsumed        Code = "OTP_ALREADY_CONSUMED"
	CodeOTPMismatch        Code = "OTP_MISMATCH"
	CodeOTPTooManyAttempts Code = "OTP_TOO_MANY_ATTEMPTS"
	CodePaymentUnavailable Code = "PAYMENT_UNAVAILABLE"
)

// Metadata is how a code surfaces over HTTP. PublicMessage is what the worker app shows;
// the internal message never leaves the logs.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type metaOption func(*Metadata)

func retryable(m *Metadata) { m.Retryable = true }
func withDetails(m *Metadata) { m.DetailsAllowed = true }

func meta(status int, public string, opts ...metaOption) Metadata {
	m := Metadata{HTTPStatus: status, PublicMessage: public}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", withDetails),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:     meta(http.StatusForbidden, "access denied"),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found"),
	CodeConflict:      meta(http.StatusConflict, "conflict detected"),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused", withDetails),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "rate limit exceeded"),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable", retryable, withDetails),

	CodeInvalidOrder:       meta(http.StatusBadRequest, "order cannot be dispatched", withDetails),
	CodeAlreadyClaimed:     meta(http.StatusConflict, "already taken, refresh list"),
	CodeOTPExpired:         meta(http.StatusGone, "code expired, request a new one"),
	CodeOTPConsumed:        meta(http.StatusConflict, "code already used, request a new one"),
	CodeOTPMismatch:        meta(http.StatusBadRequest, "code does not match, re-enter it"),
	CodeOTPTooManyAttempts: meta(http.StatusTooManyRequests, "too many attempts, request a new code"),
	CodePaymentUnavailable: meta(http.StatusUnprocessableEntity, "payment request unavailable, collect cash"),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error. The zero of every accessor is safe on a nil *Error.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether any typed error in the chain carries code.
func HasCode(err error, code Code) bool {
	for typed := As(err); typed != nil; typed = As(typed.cause) {
		if typed.code == code {
			return true
		}
	}
	return false
}

// Codes lists the outermost code of each error combined with multierr, skipping untyped ones.
func Codes(err error) []Code {
	var codes []Code
	for _, part := range multierr.Errors(err) {
		if typed := As(part); typed != nil {
			codes = append(codes, typed.code)
		}
	}
	return codes
}

// Retryable reports whether retrying err could succeed: any combined failure that is
// untyped, carries a retryable code or hit a deadline counts.
func Retryable(err error) bool {
	for _, part := range multierr.Errors(err) {
		if stdErrors.Is(part, context.DeadlineExceeded) {
			return true
		}
		typed := As(part)
		if typed == nil || MetadataFor(typed.code).Retryable {
			return true
		}
	}
	return false
}
