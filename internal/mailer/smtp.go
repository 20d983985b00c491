package mailer

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/dtroode/otpauth-server/internal/logger"
	"github.com/dtroode/otpauth-server/internal/model"
)

// Dialer sends composed messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP delivers mail through an SMTP relay.
type SMTP struct {
	dialer Dialer
	from   string
	logger *logger.Logger
}

var _ model.Mailer = (*SMTP)(nil)

// NewSMTP creates an SMTP mailer for the given relay.
func NewSMTP(host string, port int, username, password, from string, logger *logger.Logger) *SMTP {
	return NewSMTPWithDialer(gomail.NewDialer(host, port, username, password), from, logger)
}

// NewSMTPWithDialer creates an SMTP mailer sending through dialer.
func NewSMTPWithDialer(dialer Dialer, from string, logger *logger.Logger) *SMTP {
	return &SMTP{dialer: dialer, from: from, logger: logger}
}

// Send composes msg and hands it to the relay.
func (m *SMTP) Send(ctx context.Context, msg model.Message) error {
	if msg.To == "" {
		return errors.New("no recipient specified")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)

	if err := m.dialer.DialAndSend(gm); err != nil {
		m.logger.Error("SMTP mailer: failed to send message",
			"to", msg.To,
			"subject", msg.Subject,
			"error", err.Error())
		return fmt.Errorf("failed to send mail: %w", err)
	}

	m.logger.Debug("SMTP mailer: message sent",
		"to", msg.To,
		"subject", msg.Subject)

	return nil
}
