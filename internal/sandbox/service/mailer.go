package service

import (
	"context"
	"log/slog"
	"sync"
)

// Message is an email the sandbox would send. Secret is the one-time code
// or token it carries, kept separately so local tooling can read it.
type Message struct {
	To      string
	Subject string
	Body    string
	Secret  string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer "delivers" by logging, the sandbox has no SMTP.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg Message) error {
	m.Logger.InfoContext(ctx, "mail sent",
		"to", msg.To,
		"subject", msg.Subject,
		"secret", msg.Secret,
	)
	return nil
}

// MemoryMailer keeps every message, newest last.
type MemoryMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *MemoryMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Last returns the newest message sent to the address.
func (m *MemoryMailer) Last(to string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if normalizeEmail(m.sent[i].To) == normalizeEmail(to) {
			return m.sent[i], true
		}
	}
	return Message{}, false
}
