package smtp

import (
	"fmt"
	"time"

	"github.com/go-api-auth/internal/config"
	"gopkg.in/gomail.v2"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.SMTPFrom,
	}
}

// SendEmail sends an HTML message.
func (m *mailer) SendEmail(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

const codeSubject = "Your verification code"

// CodeMessage renders the verification code email.
func CodeMessage(code string, validity time.Duration) (subject, body string) {
	body = fmt.Sprintf(`<div style="font-family: Arial, sans-serif; padding: 20px;">
	<p>Your verification code is:</p>
	<h1 style="letter-spacing: 5px;">%s</h1>
	<p>The code is valid for %d minutes.</p>
	<p>If you did not request this, please ignore this email.</p>
</div>`, code, int(validity.Minutes()))
	return codeSubject, body
}
