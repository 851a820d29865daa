package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/foodway/foodway-backend/pkg/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPChannel sends HTML mail through an authenticated relay.
type SMTPChannel struct {
	addr     string
	host     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
	now      func() time.Time
}

func NewSMTPChannel(cfg config.MailConfig) (*SMTPChannel, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("smtp host and from address required")
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPChannel{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:     cfg.Host,
		from:     cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}, nil
}

func (c *SMTPChannel) Name() string { return "smtp" }

func (c *SMTPChannel) Accepts(to Recipient) bool { return to.HasEmail() }

func (c *SMTPChannel) Send(ctx context.Context, to Recipient, subject, body string) error {
	if !c.Accepts(to) {
		return ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := c.compose(to, subject, body)
	done := make(chan error, 1)
	go func() {
		done <- c.sendMail(c.addr, c.auth, c.from, []string{to.Email}, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", c.host, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SMTPChannel) compose(to Recipient, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.from)
	if to.Name != "" {
		fmt.Fprintf(&b, "To: %s <%s>\r\n", sanitizeHeader(to.Name), to.Email)
	} else {
		fmt.Fprintf(&b, "To: %s\r\n", to.Email)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", c.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
