package service

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestSMTPNotifier_Send(t *testing.T) {
	t.Parallel()

	n := NewSMTPNotifier(SMTPConfig{Host: "mail.test", Username: "u", Password: "p", From: "alerts@auditlog.test"})
	n.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	if err := n.Send(context.Background(), "ops@acme.test", AlertSubject, "body text"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAddr != "mail.test:587" {
		t.Errorf("addr = %q, want mail.test:587", gotAddr)
	}
	if gotAuth == nil {
		t.Error("expected PLAIN auth when a username is configured")
	}
	if len(gotTo) != 1 || gotTo[0] != "ops@acme.test" {
		t.Errorf("to = %v", gotTo)
	}

	for _, want := range []string{
		"From: alerts@auditlog.test\r\n",
		"To: ops@acme.test\r\n",
		"Subject: Suspicious Activity Detected\r\n",
		"\r\n\r\nbody text\r\n",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestSMTPNotifier_RejectsHeaderInjection(t *testing.T) {
	t.Parallel()

	n := NewSMTPNotifier(SMTPConfig{Host: "mail.test", From: "a@b.test"})
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}

	if err := n.Send(context.Background(), "x@y.test\r\nBcc: evil@z.test", "s", "b"); err == nil {
		t.Fatal("expected error for CRLF in recipient")
	}
}

func TestSMTPNotifier_CancelledContext(t *testing.T) {
	t.Parallel()

	n := NewSMTPNotifier(SMTPConfig{Host: "mail.test", From: "a@b.test"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.Send(ctx, "x@y.test", "s", "b"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBreakerNotifier_OpensAfterFailures(t *testing.T) {
	t.Parallel()

	inner := &mockNotifier{err: errors.New("relay down")}
	n := NewBreakerNotifier(inner, 2, time.Minute, newTestLogger())
	ctx := context.Background()

	for range 2 {
		if err := n.Send(ctx, "a@b.test", "s", "b"); err == nil {
			t.Fatal("expected inner error")
		}
	}

	if n.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", n.State())
	}

	if err := n.Send(ctx, "a@b.test", "s", "b"); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}

	if calls := len(inner.getSent()); calls != 2 {
		t.Errorf("inner calls = %d, want 2", calls)
	}
}

func TestBreakerNotifier_PassesThrough(t *testing.T) {
	t.Parallel()

	inner := &mockNotifier{}
	n := NewBreakerNotifier(inner, 0, 0, newTestLogger())

	if err := n.Send(context.Background(), "a@b.test", "s", "b"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(inner.getSent()) != 1 || n.State() != gobreaker.StateClosed {
		t.Error("expected one delivery with the breaker closed")
	}
}
