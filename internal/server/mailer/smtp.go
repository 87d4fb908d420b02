package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
)

// SMTPConfig addresses a submission server. Empty credentials disable AUTH.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer submits mail through an SMTP server, upgrading to TLS when the
// server offers STARTTLS.
type SMTPMailer struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, sendMail: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := NewMessage(m.cfg.From, to, subject, htmlBody)
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.sendMail(addr, auth, m.cfg.From, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp send to %s: %w", addr, err)
	}
	return nil
}
