package notify

import (
	"context"
	"errors"
	"strings"
)

// Recipient is whoever should receive an out-of-band message. Channels pick the address they can use.
type Recipient struct {
	Name   string
	Email  string
	ChatID int64
}

func (r Recipient) HasEmail() bool { return strings.TrimSpace(r.Email) != "" }

func (r Recipient) HasChat() bool { return r.ChatID != 0 }

// Notifier delivers a message to a recipient. Implementations may fail; callers decide whether to care.
type Notifier interface {
	Send(ctx context.Context, to Recipient, subject, body string) error
}

// Channel is a Notifier with a stable name used in logs and metrics.
type Channel interface {
	Notifier
	Name() string
	// Accepts reports whether the channel can address the recipient at all.
	Accepts(to Recipient) bool
}

// ErrNoAddress is returned when no configured channel can reach the recipient.
var ErrNoAddress = errors.New("recipient has no address for any configured channel")

// Message is one queued notification.
type Message struct {
	To      Recipient
	Subject string
	Body    string
	// Tags are attached to log lines, never sent.
	Tags map[string]any
}
