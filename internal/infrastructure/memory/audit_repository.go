package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	"github.com/oksasatya/swastha-auth/internal/domain/repository"
)

type AuditRepository struct {
	mu      sync.Mutex
	seq     int64
	entries []entity.AuditEntry
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Append(_ context.Context, e *entity.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e.ID = r.seq
	r.entries = append(r.entries, *e)
	return nil
}

func (r *AuditRepository) ListByAccount(_ context.Context, accountID string) ([]entity.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.AuditEntry, 0)
	for _, e := range r.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

var _ repository.AuditRepository = (*AuditRepository)(nil)
