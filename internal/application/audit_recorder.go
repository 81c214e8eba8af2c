package application

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	repo "github.com/oksasatya/swastha-auth/internal/domain/repository"
)

const auditWriteTimeout = 5 * time.Second

// AuditIndexer mirrors audit entries into a search index.
type AuditIndexer interface {
	Index(ctx context.Context, e entity.AuditEntry) error
}

// AuditRecorder appends audit entries without blocking the caller. Entries
// are queued on a buffered channel and written by one worker. A buffer of
// zero writes inline. Write failures and overflow are logged and counted,
// never returned.
type AuditRecorder struct {
	repo    repo.AuditRepository
	indexer AuditIndexer
	logger  *logrus.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan entity.AuditEntry
	done   chan struct{}
}

func NewAuditRecorder(r repo.AuditRepository, indexer AuditIndexer, logger *logrus.Logger, buffer int) *AuditRecorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	a := &AuditRecorder{repo: r, indexer: indexer, logger: logger, done: make(chan struct{})}
	if buffer > 0 {
		a.queue = make(chan entity.AuditEntry, buffer)
		go a.run()
	} else {
		close(a.done)
	}
	return a
}

// Record enqueues e. CreatedAt defaults to now.
func (a *AuditRecorder) Record(ctx context.Context, e entity.AuditEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if a.queue == nil {
		a.write(context.WithoutCancel(ctx), e)
		return
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop(e, "recorder closed")
		return
	}
	select {
	case a.queue <- e:
	default:
		a.drop(e, "buffer full")
	}
}

func (a *AuditRecorder) ListByAccount(ctx context.Context, accountID string) ([]entity.AuditEntry, error) {
	return a.repo.ListByAccount(ctx, accountID)
}

// Close stops accepting entries and waits for queued ones to be written.
func (a *AuditRecorder) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		if a.queue != nil {
			close(a.queue)
		}
	}
	a.mu.Unlock()
	<-a.done
}

func (a *AuditRecorder) run() {
	defer close(a.done)
	for e := range a.queue {
		a.write(context.Background(), e)
	}
}

func (a *AuditRecorder) write(ctx context.Context, e entity.AuditEntry) {
	ctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
	defer cancel()

	if err := a.repo.Append(ctx, &e); err != nil {
		metricAuditFailed.Add(1)
		a.logger.WithError(err).WithFields(logrus.Fields{
			"account_id": e.AccountID,
			"action":     e.Action,
		}).Error("audit append failed")
		return
	}
	if a.indexer == nil {
		return
	}
	if err := a.indexer.Index(ctx, e); err != nil {
		a.logger.WithError(err).WithField("audit_id", e.ID).Warn("audit index failed")
	}
}

func (a *AuditRecorder) drop(e entity.AuditEntry, reason string) {
	metricAuditDropped.Add(1)
	a.logger.WithFields(logrus.Fields{
		"account_id": e.AccountID,
		"action":     e.Action,
		"reason":     reason,
	}).Warn("audit entry dropped")
}
