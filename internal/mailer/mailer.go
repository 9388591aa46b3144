// Package mailer delivers compliance reports over SMTP. Sends go through a
// circuit breaker so a struggling relay is not hammered by every job.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	mail "github.com/wneessen/go-mail"
)

// Message is one outbound email with an optional PDF attachment.
type Message struct {
	To             string
	Subject        string
	Body           string
	Attachment     []byte
	AttachmentName string
}

// Config carries the SMTP transport settings. Sender and auth user may
// differ (a shared from-address authenticated by an individual account).
type Config struct {
	Host     string
	Port     int
	UseSSL   bool
	Username string
	Password string
	Sender   string
}

// SMTPMailer sends mail through a single relay.
type SMTPMailer struct {
	cfg Config
	cb  *gobreaker.CircuitBreaker
}

// New constructs an SMTPMailer with its circuit breaker.
func New(cfg Config) *SMTPMailer {
	settings := gobreaker.Settings{
		Name:        "smtp-relay",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
	}
	return &SMTPMailer{
		cfg: cfg,
		cb:  gobreaker.NewCircuitBreaker(settings),
	}
}

// Send delivers the message, returning an error when the relay rejects it or
// the breaker is open.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	_, err := m.cb.Execute(func() (interface{}, error) {
		return nil, m.send(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, msg Message) error {
	message := mail.NewMsg()
	if err := message.From(m.cfg.Sender); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := message.To(msg.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	message.Subject(msg.Subject)
	message.SetBodyString(mail.TypeTextPlain, msg.Body)
	if len(msg.Attachment) > 0 {
		if err := message.AttachReader(msg.AttachmentName, bytes.NewReader(msg.Attachment)); err != nil {
			return fmt.Errorf("attach report: %w", err)
		}
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
	}
	if m.cfg.UseSSL {
		opts = append(opts, mail.WithSSL())
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("dial and send: %w", err)
	}
	return nil
}
