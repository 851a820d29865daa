package otp

import (
	"fmt"
	"strings"
	"time"

	"github.com/foodway/foodway-backend/pkg/enums"
)

// ExpiredRetention keeps expired records around long enough to answer Expired instead of NotFound.
const ExpiredRetention = 30 * time.Minute

// Key scopes a code. Delivery subjects are orderID:subOrderID, account subjects are emails.
type Key struct {
	Purpose enums.OTPPurpose
	Subject string
}

func DeliveryKey(orderID, subOrderID string) Key {
	return Key{
		Purpose: enums.OTPPurposeDelivery,
		Subject: strings.TrimSpace(orderID) + ":" + strings.TrimSpace(subOrderID),
	}
}

func AccountKey(email string) Key {
	return Key{
		Purpose: enums.OTPPurposeAccount,
		Subject: strings.ToLower(strings.TrimSpace(email)),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Purpose, k.Subject)
}

func (k Key) valid() bool {
	return k.Purpose.IsValid() && k.Subject != "" && k.Subject != ":"
}

// Record is the stored state of one issued code.
type Record struct {
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Consumed  bool      `json:"consumed"`
	Attempts  int       `json:"attempts"`
}

// Expired uses strict after: a code verified exactly at ExpiresAt still counts.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

func (r Record) retentionDeadline() time.Time {
	return r.ExpiresAt.Add(ExpiredRetention)
}
