package mailer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Outcome tells the consumer how to settle a delivery.
type Outcome int

const (
	Ack Outcome = iota
	Drop
	Retry
)

// Worker turns queued jobs into sends.
type Worker struct {
	sender  Sender
	logger  *logrus.Logger
	timeout time.Duration
}

func NewWorker(sender Sender, logger *logrus.Logger) *Worker {
	return &Worker{sender: sender, logger: logger, timeout: 15 * time.Second}
}

// Handle processes one message body. Malformed jobs are dropped, failed
// sends are retried.
func (w *Worker) Handle(ctx context.Context, body []byte) Outcome {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.logger.WithError(err).Warn("bad email job")
		return Drop
	}
	if !job.valid() {
		w.logger.WithField("to", job.To).Warn("incomplete email job")
		return Drop
	}

	c, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.sender.Send(c, job.To, job.Subject, job.Text, job.HTML); err != nil {
		w.logger.WithError(err).WithField("to", job.To).Error("send failed")
		return Retry
	}
	w.logger.WithField("to", job.To).Debug("email sent")
	return Ack
}
