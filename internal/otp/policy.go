package otp

import (
	"fmt"
	"strings"
	"time"

	"github.com/foodway/foodway-backend/pkg/config"
	"github.com/foodway/foodway-backend/pkg/enums"
)

const (
	DefaultLength      = 6
	DefaultMaxAttempts = 5
)

// Policy captures everything that differs between OTP uses. The mechanism is shared.
type Policy struct {
	Purpose     enums.OTPPurpose
	Window      time.Duration
	Length      int
	MaxAttempts int
	Subject     string
	// BodyFormat receives the code and the human readable window.
	BodyFormat string
}

// AccountPolicy is the short-lived code used for sign-up and password-reset verification.
func AccountPolicy(cfg config.OTPConfig) Policy {
	return Policy{
		Purpose:     enums.OTPPurposeAccount,
		Window:      orDefault(cfg.AccountWindow, 5*time.Minute),
		Length:      orDefaultInt(cfg.Length, DefaultLength),
		MaxAttempts: orDefaultInt(cfg.MaxAttempts, DefaultMaxAttempts),
		Subject:     "OTP",
		BodyFormat:  "<p>Your OTP is <b>%s</b>. It expires in %s.</p>",
	}
}

// DeliveryPolicy gates MarkDelivered; the customer reads the code to the worker at the door.
func DeliveryPolicy(cfg config.OTPConfig) Policy {
	return Policy{
		Purpose:     enums.OTPPurposeDelivery,
		Window:      orDefault(cfg.DeliveryWindow, 2*time.Hour),
		Length:      orDefaultInt(cfg.Length, DefaultLength),
		MaxAttempts: orDefaultInt(cfg.MaxAttempts, DefaultMaxAttempts),
		Subject:     "Delivery OTP",
		BodyFormat:  "<p>Your OTP for delivery is <b>%s</b>. It expires in %s.</p>",
	}
}

func (p Policy) validate() error {
	if !p.Purpose.IsValid() {
		return fmt.Errorf("invalid otp purpose %q", p.Purpose)
	}
	if p.Window <= 0 {
		return fmt.Errorf("otp window must be positive")
	}
	if p.Length < 4 || p.Length > 10 {
		return fmt.Errorf("otp length must be between 4 and 10")
	}
	return nil
}

// Body renders the notifier message for code.
func (p Policy) Body(code string) string {
	return fmt.Sprintf(p.BodyFormat, code, humanizeWindow(p.Window))
}

func humanizeWindow(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return strings.TrimSpace(d.String())
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
