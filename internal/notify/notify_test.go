package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodway/foodway-backend/pkg/config"
	"github.com/foodway/foodway-backend/pkg/logger"
)

type recordingChannel struct {
	name    string
	accepts func(Recipient) bool
	err     error

	mu    sync.Mutex
	sent  []string
	block chan struct{}
}

func (r *recordingChannel) Name() string { return r.name }

func (r *recordingChannel) Accepts(to Recipient) bool {
	if r.accepts == nil {
		return true
	}
	return r.accepts(to)
}

func (r *recordingChannel) Send(ctx context.Context, to Recipient, subject, body string) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, subject+"|"+body)
	return r.err
}

func (r *recordingChannel) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestMultiSendsToAcceptingChannels(t *testing.T) {
	mail := &recordingChannel{name: "smtp", accepts: Recipient.HasEmail}
	chat := &recordingChannel{name: "telegram", accepts: Recipient.HasChat}
	multi := NewMulti(nil, mail, chat, nil)

	err := multi.Send(context.Background(), Recipient{Email: "a@b.in"}, "OTP", "body")
	require.NoError(t, err)
	assert.Equal(t, 1, mail.count())
	assert.Equal(t, 0, chat.count())
	assert.Equal(t, []string{"smtp", "telegram"}, multi.Channels())
}

func TestMultiCombinesFailures(t *testing.T) {
	a := &recordingChannel{name: "a", err: errors.New("relay refused")}
	b := &recordingChannel{name: "b", err: errors.New("bot blocked")}
	err := NewMulti(nil, a, b).Send(context.Background(), Recipient{Email: "x@y.z"}, "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: relay refused")
	assert.Contains(t, err.Error(), "b: bot blocked")
}

func TestMultiWithoutAddress(t *testing.T) {
	mail := &recordingChannel{name: "smtp", accepts: Recipient.HasEmail}
	err := NewMulti(nil, mail).Send(context.Background(), Recipient{Name: "nobody"}, "s", "b")
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestSMTPChannelComposesHTMLMail(t *testing.T) {
	ch, err := NewSMTPChannel(config.MailConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "FoodWay <no-reply@foodway.in>"})
	require.NoError(t, err)
	ch.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	ch.sendMail = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	err = ch.Send(context.Background(), Recipient{Name: "Asha\r\nBcc: evil", Email: "asha@example.com"}, "Delivery OTP", "Your OTP is <b>482913</b>.")
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"asha@example.com"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Delivery OTP\r\n")
	assert.Contains(t, msg, "Content-Type: text/html")
	assert.Contains(t, msg, "To: Asha  Bcc: evil <asha@example.com>\r\n")
	assert.True(t, strings.HasSuffix(msg, "Your OTP is <b>482913</b>."))
}

func TestSMTPChannelRequiresConfig(t *testing.T) {
	_, err := NewSMTPChannel(config.MailConfig{})
	assert.Error(t, err)
}

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramChannelSendsHTMLMessage(t *testing.T) {
	bot := &fakeBot{}
	ch := &TelegramChannel{bot: bot}

	require.False(t, ch.Accepts(Recipient{Email: "a@b.c"}))
	err := ch.Send(context.Background(), Recipient{ChatID: 777}, "Delivery OTP", "Your OTP is <b>482913</b>.<br/>Thanks")
	require.NoError(t, err)
	require.Len(t, bot.sent, 1)

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(777), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Equal(t, "<b>Delivery OTP</b>\nYour OTP is <b>482913</b>.Thanks", msg.Text)
}

func TestTelegramChannelWrapsErrors(t *testing.T) {
	ch := &TelegramChannel{bot: &fakeBot{err: errors.New("forbidden")}}
	err := ch.Send(context.Background(), Recipient{ChatID: 1}, "s", "b")
	require.Error(t, err)
	assert.ErrorIs(t, ch.Send(context.Background(), Recipient{}, "s", "b"), ErrNoAddress)
}

func TestDispatcherLogsFailuresAndKeepsGoing(t *testing.T) {
	buf := &safeBuffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	failing := &recordingChannel{name: "smtp", err: errors.New("relay down")}

	d, err := NewDispatcher(DispatcherParams{Notifier: NewMulti(nil, failing), Logger: logg, Workers: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	require.True(t, d.Enqueue(context.Background(), Message{To: Recipient{Email: "a@b.c"}, Subject: "OTP", Body: "x", Tags: map[string]any{"order_id": "O1"}}))
	require.True(t, d.Enqueue(context.Background(), Message{To: Recipient{Email: "a@b.c"}, Subject: "OTP", Body: "y"}))

	cancel()
	<-done

	assert.Equal(t, 2, failing.count())
	assert.Contains(t, buf.String(), "notify.send_failed")
	assert.Contains(t, buf.String(), `"order_id":"O1"`)
	assert.False(t, d.Enqueue(context.Background(), Message{Subject: "late"}))
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	logg := logger.New(logger.Options{Output: io.Discard})
	d, err := NewDispatcher(DispatcherParams{Notifier: NewMulti(nil), Logger: logg, QueueSize: 1})
	require.NoError(t, err)

	assert.True(t, d.Enqueue(context.Background(), Message{Subject: "first"}))
	assert.False(t, d.Enqueue(context.Background(), Message{Subject: "second"}))
}

func TestNewDispatcherValidation(t *testing.T) {
	_, err := NewDispatcher(DispatcherParams{})
	assert.Error(t, err)
	_, err = NewDispatcher(DispatcherParams{Notifier: NewMulti(nil)})
	assert.Error(t, err)
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
