package notification

import (
	"TraceCorrelator/internal/config"
	"net/smtp"
	"strings"
	"testing"
)

func TestEmailNotifierSend(t *testing.T) {
	cfg := config.SMTPConfig{Host: "mail.example.com", Port: 587, From: "tracecorr@example.com", To: "a@example.com, b@example.com"}
	n := NewEmailNotifier(cfg).(*EmailNotifier)

	var gotAddr string
	var gotTo []string
	var gotMsg string
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := n.Send("Loss alert", "<p>lost</p>"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotAddr != "mail.example.com:587" {
		t.Errorf("Expected address mail.example.com:587, got %s", gotAddr)
	}
	if len(gotTo) != 2 || gotTo[1] != "b@example.com" {
		t.Errorf("Expected two trimmed recipients, got %q", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Loss alert\r\n") || !strings.HasSuffix(gotMsg, "\r\n\r\n<p>lost</p>") {
		t.Errorf("Unexpected message:\n%s", gotMsg)
	}
}

func TestEmailNotifierNoRecipients(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{Host: "localhost", Port: 25})
	if err := n.Send("subject", "body"); err == nil {
		t.Fatal("Expected an error without recipients")
	}
}
