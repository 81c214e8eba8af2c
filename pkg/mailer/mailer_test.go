package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	bodies []any
	err    error
}

func (p *capturePublisher) PublishJSON(_ context.Context, body any) error {
	p.bodies = append(p.bodies, body)
	return p.err
}

type captureSender struct {
	to, subject, text string
	err               error
}

func (s *captureSender) Send(_ context.Context, to, subject, text, _ string) error {
	s.to, s.subject, s.text = to, subject, text
	return s.err
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestQueueNotifier_PublishesJob(t *testing.T) {
	pub := &capturePublisher{}
	err := NewQueueNotifier(pub).Send(context.Background(), "a@x.com", "Reset Password", "link")
	require.NoError(t, err)
	require.Len(t, pub.bodies, 1)
	assert.Equal(t, EmailJob{To: "a@x.com", Subject: "Reset Password", Text: "link"}, pub.bodies[0])
}

func TestQueueNotifier_PropagatesError(t *testing.T) {
	pub := &capturePublisher{err: errors.New("channel closed")}
	assert.Error(t, NewQueueNotifier(pub).Send(context.Background(), "a@x.com", "s", "b"))
}

func TestWorker_Handle(t *testing.T) {
	sender := &captureSender{}
	w := NewWorker(sender, quiet())
	body, _ := json.Marshal(EmailJob{To: "a@x.com", Subject: "Reset Password", Text: "link"})

	assert.Equal(t, Ack, w.Handle(context.Background(), body))
	assert.Equal(t, "a@x.com", sender.to)
	assert.Equal(t, "link", sender.text)

	assert.Equal(t, Drop, w.Handle(context.Background(), []byte("{")))
	assert.Equal(t, Drop, w.Handle(context.Background(), []byte(`{"to":"a@x.com"}`)))

	sender.err = errors.New("mailgun 500")
	assert.Equal(t, Retry, w.Handle(context.Background(), body))
}
