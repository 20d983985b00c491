package mailer

import (
	"context"

	"github.com/dtroode/otpauth-server/internal/logger"
	"github.com/dtroode/otpauth-server/internal/model"
)

// Log writes messages to the application log instead of sending them.
// Meant for local development.
type Log struct {
	logger *logger.Logger
}

var _ model.Mailer = (*Log)(nil)

func NewLog(logger *logger.Logger) *Log {
	return &Log{logger: logger}
}

func (m *Log) Send(_ context.Context, msg model.Message) error {
	m.logger.Info("Log mailer: message",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body)
	return nil
}
