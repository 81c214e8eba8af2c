package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
)

func TestAuditRepository_Append(t *testing.T) {
	mock := newMock(t)
	repo := NewAuditRepository(mock)
	e := &entity.AuditEntry{
		AccountID: "acc-1",
		Action:    entity.ActionLogin,
		Detail:    "User a@x.com logged in successfully",
		IP:        "10.0.0.1",
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectQuery(`INSERT INTO audit_logs`).
		WithArgs(e.AccountID, e.Action, e.Detail, e.IP, e.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	require.NoError(t, repo.Append(context.Background(), e))
	assert.Equal(t, int64(42), e.ID)
}

func TestAuditRepository_ListByAccountNewestFirst(t *testing.T) {
	mock := newMock(t)
	repo := NewAuditRepository(mock)
	newer := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	mock.ExpectQuery(`SELECT .+ FROM audit_logs\s+WHERE account_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs("acc-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "account_id", "action", "detail", "ip", "created_at"}).
			AddRow(int64(2), "acc-1", entity.ActionLogout, "", "10.0.0.1", newer).
			AddRow(int64(1), "acc-1", entity.ActionLogin, "", "10.0.0.1", older))

	got, err := repo.ListByAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entity.ActionLogout, got[0].Action)
	assert.Equal(t, older, got[1].CreatedAt)
}

func TestAuditRepository_ListByAccountMalformedIDIsEmpty(t *testing.T) {
	mock := newMock(t)
	repo := NewAuditRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM audit_logs`).
		WithArgs("not-a-uuid").
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	got, err := repo.ListByAccount(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAuditRepository_ListByAccountOtherErrors(t *testing.T) {
	mock := newMock(t)
	repo := NewAuditRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM audit_logs`).
		WithArgs("acc-1").
		WillReturnError(&pgconn.PgError{Code: "57014"})

	_, err := repo.ListByAccount(context.Background(), "acc-1")
	assert.Error(t, err)
}
