package mailer

import (
	"context"

	"github.com/dmitrijs2005/members/internal/logging"
)

// LogMailer only logs what it would send. Meant for development, where the
// magic link is picked up from the log.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(l logging.Logger) *LogMailer {
	return &LogMailer{logger: l.With("module", "mailer")}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.logger.Info(ctx, "mail", "to", to, "subject", subject, "body", htmlBody)
	return nil
}
