package otp

import (
	"context"
	"time"
)

// UpdateFunc inspects the current record (nil when absent) and may mutate it in place.
// Returning changed=true persists the mutation; result is handed back to the caller either way.
type UpdateFunc func(rec *Record) (changed bool, result error)

// Store persists OTP records. Update must be an atomic check-and-set scoped to one key.
type Store interface {
	Save(ctx context.Context, key Key, rec Record) error
	Update(ctx context.Context, key Key, fn UpdateFunc) error
	// Sweep drops records past their retention; stores with native expiry return 0.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
