package enums

import "fmt"

// OTPPurpose scopes one-time codes so account and delivery codes never collide.
type OTPPurpose string

const (
	OTPPurposeAccount  OTPPurpose = "account"
	OTPPurposeDelivery OTPPurpose = "delivery"
)

var validOTPPurposes = []OTPPurpose{
	OTPPurposeAccount,
	OTPPurposeDelivery,
}

func (p OTPPurpose) String() string {
	return string(p)
}

func (p OTPPurpose) IsValid() bool {
	for _, candidate := range validOTPPurposes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseOTPPurpose converts raw strings into OTPPurpose.
func ParseOTPPurpose(value string) (OTPPurpose, error) {
	for _, candidate := range validOTPPurposes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid otp purpose %q", value)
}
