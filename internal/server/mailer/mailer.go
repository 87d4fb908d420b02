// Package mailer delivers outbound mail. Delivery is fire-and-forget from the
// caller's view: failures are reported once and never retried.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/google/uuid"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Message is a single-part HTML mail.
type Message struct {
	ID       string
	From     string
	To       string
	Subject  string
	HTMLBody string
	Date     time.Time
}

func NewMessage(from, to, subject, htmlBody string) Message {
	return Message{
		ID:       uuid.NewString(),
		From:     from,
		To:       to,
		Subject:  subject,
		HTMLBody: htmlBody,
		Date:     time.Now(),
	}
}

// Bytes renders the message in RFC 5322 form with CRLF line endings.
func (m Message) Bytes() []byte {
	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }

	header("Message-ID", fmt.Sprintf("<%s@members>", m.ID))
	header("Date", m.Date.Format(time.RFC1123Z))
	header("From", m.From)
	header("To", m.To)
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(m.HTMLBody)
	b.WriteString("\r\n")
	return b.Bytes()
}
