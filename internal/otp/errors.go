package otp

import pkgerrors "github.com/foodway/foodway-backend/pkg/errors"

var (
	ErrNotFound        = pkgerrors.New(pkgerrors.CodeNotFound, "no code issued for this key")
	ErrConsumed        = pkgerrors.New(pkgerrors.CodeOTPConsumed, "code already used")
	ErrExpired         = pkgerrors.New(pkgerrors.CodeOTPExpired, "code expired")
	ErrMismatch        = pkgerrors.New(pkgerrors.CodeOTPMismatch, "code does not match")
	ErrTooManyAttempts = pkgerrors.New(pkgerrors.CodeOTPTooManyAttempts, "too many attempts")
)
