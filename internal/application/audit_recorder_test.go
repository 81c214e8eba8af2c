package application

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	"github.com/oksasatya/swastha-auth/internal/infrastructure/memory"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// gatedAudit blocks Append until release is closed.
type gatedAudit struct {
	*memory.AuditRepository
	release chan struct{}
}

func (g *gatedAudit) Append(ctx context.Context, e *entity.AuditEntry) error {
	<-g.release
	return g.AuditRepository.Append(ctx, e)
}

type recordingIndexer struct {
	mu   sync.Mutex
	seen []entity.AuditEntry
	err  error
}

func (r *recordingIndexer) Index(_ context.Context, e entity.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, e)
	return r.err
}

func TestAuditRecorder_CloseDrainsQueue(t *testing.T) {
	repo := memory.NewAuditRepository()
	idx := &recordingIndexer{}
	rec := NewAuditRecorder(repo, idx, quietLogger(), 16)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		rec.Record(ctx, entity.AuditEntry{AccountID: "acc", Action: entity.ActionLogin})
	}
	rec.Close()

	got, err := rec.ListByAccount(ctx, "acc")
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Len(t, idx.seen, 10)
	assert.NotZero(t, idx.seen[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestAuditRecorder_RecordDoesNotBlockWhenFull(t *testing.T) {
	gate := &gatedAudit{AuditRepository: memory.NewAuditRepository(), release: make(chan struct{})}
	rec := NewAuditRecorder(gate, nil, quietLogger(), 1)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			rec.Record(ctx, entity.AuditEntry{AccountID: "acc", Action: entity.ActionLogin})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full buffer")
	}
	close(gate.release)
	rec.Close()

	got, err := gate.ListByAccount(ctx, "acc")
	require.NoError(t, err)
	assert.Less(t, len(got), 50)
	assert.NotEmpty(t, got)
}

func TestAuditRecorder_FailuresAreSwallowed(t *testing.T) {
	idx := &recordingIndexer{}
	rec := NewAuditRecorder(failingAudit{}, idx, quietLogger(), 0)

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), entity.AuditEntry{AccountID: "acc", Action: entity.ActionLogin})
	})
	assert.Empty(t, idx.seen, "entries that failed to persist are not indexed")
}

func TestAuditRecorder_IndexFailureKeepsEntry(t *testing.T) {
	repo := memory.NewAuditRepository()
	rec := NewAuditRecorder(repo, &recordingIndexer{err: errors.New("es down")}, quietLogger(), 0)
	ctx := context.Background()

	rec.Record(ctx, entity.AuditEntry{AccountID: "acc", Action: entity.ActionLogout})
	got, err := rec.ListByAccount(ctx, "acc")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAuditRecorder_RecordAfterCloseIsDropped(t *testing.T) {
	repo := memory.NewAuditRepository()
	rec := NewAuditRecorder(repo, nil, quietLogger(), 4)
	rec.Close()
	rec.Close()

	rec.Record(context.Background(), entity.AuditEntry{AccountID: "acc", Action: entity.ActionLogin})
	got, err := repo.ListByAccount(context.Background(), "acc")
	require.NoError(t, err)
	assert.Empty(t, got)
}
