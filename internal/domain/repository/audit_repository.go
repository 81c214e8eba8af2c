package repository

import (
	"context"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
)

// AuditRepository is append-only storage for audit entries.
type AuditRepository interface {
	Append(ctx context.Context, e *entity.AuditEntry) error
	// ListByAccount returns entries newest first.
	ListByAccount(ctx context.Context, accountID string) ([]entity.AuditEntry, error)
}
