package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const passwordResetSubject = "Reset your Stepdash password"

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to string, link string) error
}

type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(settings SMTPSettings) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(settings.Host, settings.Port, settings.Username, settings.Password),
		from:   settings.From,
	}
}

func (mailer *SMTPMailer) SendPasswordReset(ctx context.Context, to string, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := gomail.NewMessage()
	message.SetHeader("From", mailer.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", passwordResetSubject)
	message.SetBody("text/plain", passwordResetBody(link))
	message.AddAlternative("text/html", fmt.Sprintf(
		`<p>Someone asked to reset the password for this Stepdash account.</p><p><a href="%s">Choose a new password</a></p><p>The link expires in 30 minutes. Ignore this message if it wasn't you.</p>`,
		link,
	))

	if err := mailer.dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// LogMailer writes reset links to the log. It is used when no SMTP host is
// configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (mailer *LogMailer) SendPasswordReset(_ context.Context, to string, link string) error {
	mailer.logger.Info("password reset link issued", zap.String("to", to), zap.String("link", link))
	return nil
}

func passwordResetBody(link string) string {
	return "Someone asked to reset the password for this Stepdash account.\n\n" +
		"Open this link to choose a new password:\n" + link + "\n\n" +
		"The link expires in 30 minutes. Ignore this message if it wasn't you.\n"
}
