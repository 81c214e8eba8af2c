package postgres

import (
	"context"
	"fmt"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	"github.com/oksasatya/swastha-auth/internal/domain/repository"
)

type AuditRepository struct {
	db pgExecutor
}

func NewAuditRepository(db pgExecutor) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, e *entity.AuditEntry) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (account_id, action, detail, ip, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, e.AccountID, e.Action, e.Detail, e.IP, e.CreatedAt)
	if err := row.Scan(&e.ID); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListByAccount returns the entries of accountID newest first. An id that is
// not a uuid cannot own entries and yields an empty list.
func (r *AuditRepository) ListByAccount(ctx context.Context, accountID string) ([]entity.AuditEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, action, detail, ip, created_at
		FROM audit_logs
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
	`, accountID)
	if isMalformedID(err) {
		return []entity.AuditEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]entity.AuditEntry, 0)
	for rows.Next() {
		var e entity.AuditEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Action, &e.Detail, &e.IP, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		if isMalformedID(err) {
			return []entity.AuditEntry{}, nil
		}
		return nil, err
	}
	return out, nil
}

var _ repository.AuditRepository = (*AuditRepository)(nil)
