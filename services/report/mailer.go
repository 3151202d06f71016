package report

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("momox-agent.services.report")

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

// Validate is the fatal-before-the-batch credential check: a report
// that cannot be delivered makes the whole run pointless.
func (c SmtpConfig) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("smtp server is not configured")
	}
	if c.Port == 0 {
		return fmt.Errorf("smtp port is not configured")
	}
	if c.EmailAddress == "" {
		return fmt.Errorf("smtp sender address is not configured")
	}
	if c.Password == "" {
		return fmt.Errorf("smtp password is not configured")
	}
	if len(c.To) == 0 {
		return fmt.Errorf("no report recipients configured")
	}
	return nil
}

type Mailer struct {
	config SmtpConfig
}

func NewMailer(config SmtpConfig) Mailer {
	return Mailer{config: config}
}

// Send delivers the report as a multipart text+html mail.
func (m Mailer) Send(ctx context.Context, r Report) error {
	_, span := tracer.Start(ctx, "Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Momox Agent <%s>", m.config.EmailAddress)
	mail.To = m.config.To
	mail.Subject = r.Subject
	mail.Text = []byte(r.Text)
	mail.HTML = []byte(r.Html)

	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)
	auth := smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server)

	var err error
	if m.config.Port == 465 {
		// implicit tls, the usual gmail setup
		err = mail.SendWithTLS(addr, auth, &tls.Config{ServerName: m.config.Server})
	} else {
		err = mail.Send(addr, auth)
	}
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send report email")
		return fmt.Errorf("send report to %v: %w", m.config.To, err)
	}
	return nil
}
