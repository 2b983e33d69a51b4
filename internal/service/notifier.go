package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Notifier delivers an alert message to an address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig configures SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends plain-text mail through an SMTP relay.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

// Send implements Notifier. smtp.SendMail has no context support, so ctx is
// only checked before dialing.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if strings.ContainsAny(to+subject, "\r\n") {
		return errors.New("smtp: header values must not contain line breaks")
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.send(addr, auth, n.cfg.From, []string{to}, n.message(to, subject, body)); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}

	return nil
}

func (n *SMTPNotifier) message(to, subject, body string) []byte {
	var b strings.Builder

	b.WriteString("From: " + n.cfg.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + n.now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")

	return []byte(b.String())
}

// LogNotifier writes alerts to the application log. It is used when no SMTP
// relay is configured.
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Send implements Notifier.
func (n *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	n.log.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Warn(body)

	return nil
}

// BreakerNotifier stops calling a failing Notifier for a cool-down period.
type BreakerNotifier struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerNotifier wraps next with a circuit breaker that opens after
// consecutive failures and probes again after cooldown.
func NewBreakerNotifier(next Notifier, failures uint32, cooldown time.Duration, log *logrus.Logger) *BreakerNotifier {
	if failures == 0 {
		failures = 5
	}

	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifier",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("notifier circuit breaker state changed")
		},
	})

	return &BreakerNotifier{next: next, cb: cb}
}

// Send implements Notifier. It returns gobreaker.ErrOpenState while open.
func (n *BreakerNotifier) Send(ctx context.Context, to, subject, body string) error {
	_, err := n.cb.Execute(func() (interface{}, error) {
		return nil, n.next.Send(ctx, to, subject, body)
	})

	return err
}

// State reports the breaker state.
func (n *BreakerNotifier) State() gobreaker.State {
	return n.cb.State()
}
