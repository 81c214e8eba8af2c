package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Publisher puts a JSON message on the email queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// QueueNotifier hands messages to the email worker through the queue.
type QueueNotifier struct {
	pub Publisher
}

func NewQueueNotifier(pub Publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

func (n *QueueNotifier) Send(ctx context.Context, to, subject, body string) error {
	return n.pub.PublishJSON(ctx, EmailJob{To: to, Subject: subject, Text: body})
}

// LogNotifier only logs messages. Used when sending is disabled; the body
// is logged only when Verbose is set since it may carry a reset link.
type LogNotifier struct {
	Logger  *logrus.Logger
	Verbose bool
}

func (n *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	entry := n.Logger.WithFields(logrus.Fields{"to": to, "subject": subject})
	if n.Verbose {
		entry = entry.WithField("body", body)
	}
	entry.Info("email sending disabled; message not delivered")
	return nil
}
