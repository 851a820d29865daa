package redis

import "strings"

const (
	defaultNamespace  = "fw"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	otpPrefix         = "otp"
	dutyPrefix        = "duty"
	lockPrefix        = "lock"
)

// IdempotencyKey is where replayable responses and intake markers live.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.buildKey(idempotencyPrefix, scope, id)
}

// RateLimitKey holds fixed-window counters, e.g. OTP sends per worker.
func (c *Client) RateLimitKey(scope string) string {
	return c.buildKey(rateLimitPrefix, scope)
}

// OTPKey holds the OTP record for purpose/subject, e.g. ("delivery", "<order>:<sub-order>").
func (c *Client) OTPKey(purpose, subject string) string {
	return c.buildKey(otpPrefix, purpose, subject)
}

// DutyKey holds a worker's on-duty flag.
func (c *Client) DutyKey(workerID string) string {
	return c.buildKey(dutyPrefix, workerID)
}

// LockKey holds a cron job lease.
func (c *Client) LockKey(name string) string {
	return c.buildKey(lockPrefix, name)
}

func (c *Client) buildKey(parts ...string) string {
	ns := c.namespace
	if ns == "" {
		ns = defaultNamespace
	}
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, ns)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}
