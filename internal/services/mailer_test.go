package services

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogMailerRecordsLink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mailer := NewLogMailer(zap.New(core))

	if err := mailer.SendPasswordReset(context.Background(), "walker@example.com", "https://x/reset-password?token=abc"); err != nil {
		t.Fatalf("SendPasswordReset() unexpected error: %v", err)
	}
	entries := logs.FilterMessage("password reset link issued").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["to"] != "walker@example.com" {
		t.Fatalf("unexpected log context %v", entries[0].ContextMap())
	}
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	mailer := NewSMTPMailer(SMTPSettings{Host: "127.0.0.1", Port: 1, From: "noreply@example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := mailer.SendPasswordReset(ctx, "walker@example.com", "https://x"); err == nil {
		t.Fatal("expected cancelled context to abort delivery")
	}
}

func TestPasswordResetBodyContainsLink(t *testing.T) {
	body := passwordResetBody("https://steps.example.com/reset-password?token=t")
	if !strings.Contains(body, "https://steps.example.com/reset-password?token=t") {
		t.Fatalf("reset body is missing the link: %q", body)
	}
}
