package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	"github.com/oksasatya/swastha-auth/internal/domain/repository"
	"github.com/oksasatya/swastha-auth/internal/domain/security"
)

const (
	uniqueViolation   = "23505"
	invalidTextFormat = "22P02" // malformed uuid
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, email, username, phone_number, password_hash, password_history,
	login_attempts, lock_until, last_password_change, password_expiry_days,
	is_admin, is_doctor, is_verified, reset_token_hash, reset_token_expire,
	created_at, updated_at`

type AccountRepository struct {
	db pgExecutor
}

func NewAccountRepository(db pgExecutor) *AccountRepository {
	return &AccountRepository{db: db}
}

// isMalformedID reports a uuid column compared against a non-uuid string.
func isMalformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextFormat
}

func scanAccount(row pgx.Row) (*entity.Account, error) {
	a := &entity.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.Username, &a.PhoneNumber, &a.PasswordHash, &a.PasswordHistory,
		&a.LoginAttempts, &a.LockUntil, &a.LastPasswordChange, &a.PasswordExpiryDays,
		&a.IsAdmin, &a.IsDoctor, &a.IsVerified, &a.ResetTokenHash, &a.ResetTokenExpire,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO accounts (email, username, phone_number, password_hash, password_history,
			last_password_change, password_expiry_days, is_admin, is_doctor, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, a.Email, a.Username, a.PhoneNumber, a.PasswordHash, a.PasswordHistory,
		a.LastPasswordChange, a.PasswordExpiryDays, a.IsAdmin, a.IsDoctor, a.IsVerified)

	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
}

func (r *AccountRepository) UpdateProfile(ctx context.Context, id, username, phone string) (*entity.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `
		UPDATE accounts
		SET username = COALESCE(NULLIF($2, ''), username),
		    phone_number = COALESCE(NULLIF($3, ''), phone_number),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns, id, username, phone))
}

func (r *AccountRepository) SetVerified(ctx context.Context, id string) error {
	res, err := r.db.Exec(ctx, `UPDATE accounts SET is_verified = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*entity.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*entity.Account, 0, limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		if isMalformedID(err) {
			return repository.ErrNotFound
		}
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, change repository.PasswordChange) error {
	res, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $2, password_history = $3, last_password_change = $4, updated_at = $4
		WHERE id = $1 AND password_hash = $5
	`, id, change.NewHash, change.History, change.ChangedAt, change.ExpectedHash)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

// RegisterFailure mirrors security.Lockout.OnFailure in one statement. The
// row lock taken by UPDATE serializes concurrent failures for an account and
// the WHERE clause is re-evaluated against the latest row version.
func (r *AccountRepository) RegisterFailure(ctx context.Context, id string, now time.Time, policy security.Lockout) (*entity.Account, bool, error) {
	lockUntil := now.Add(policy.Duration)
	a, err := scanAccount(r.db.QueryRow(ctx, `
		UPDATE accounts
		SET login_attempts = CASE WHEN lock_until IS NOT NULL THEN 1 ELSE login_attempts + 1 END,
		    lock_until = CASE
		        WHEN $3::int > 0 AND (CASE WHEN lock_until IS NOT NULL THEN 1 ELSE login_attempts + 1 END) >= $3::int
		        THEN $4::timestamptz
		        ELSE NULL
		    END,
		    updated_at = $2
		WHERE id = $1 AND (lock_until IS NULL OR lock_until <= $2)
		RETURNING `+accountColumns, id, now, policy.Threshold, lockUntil))
	if errors.Is(err, repository.ErrNotFound) {
		// either missing or locked by a concurrent attempt
		cur, gErr := r.GetByID(ctx, id)
		return cur, false, gErr
	}
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

func (r *AccountRepository) ResetFailures(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET login_attempts = 0, lock_until = NULL, updated_at = $2
		WHERE id = $1 AND (lock_until IS NULL OR lock_until <= $2)
	`, id, now)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return nil
}

func (r *AccountRepository) SetResetToken(ctx context.Context, id, tokenHash string, expire time.Time) error {
	res, err := r.db.Exec(ctx, `
		UPDATE accounts SET reset_token_hash = $2, reset_token_expire = $3, updated_at = now()
		WHERE id = $1
	`, id, tokenHash, expire)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE reset_token_hash = $1 AND reset_token_expire > $2
	`, tokenHash, now))
}

// RedeemResetToken sets the new password and clears the token in a single
// UPDATE. On zero rows the token is looked up again to tell a spent token
// from a concurrent password change.
func (r *AccountRepository) RedeemResetToken(ctx context.Context, id, tokenHash string, now time.Time, change repository.PasswordChange) error {
	res, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $4, password_history = $5, last_password_change = $6, updated_at = $6,
		    reset_token_hash = NULL, reset_token_expire = NULL
		WHERE id = $1 AND reset_token_hash = $2 AND reset_token_expire > $3 AND password_hash = $7
	`, id, tokenHash, now, change.NewHash, change.History, change.ChangedAt, change.ExpectedHash)
	if err != nil {
		return err
	}
	if res.RowsAffected() > 0 {
		return nil
	}
	a, err := r.GetByResetToken(ctx, tokenHash, now)
	if err != nil {
		return err
	}
	if a.ID != id {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

func (r *AccountRepository) ClearResetToken(ctx context.Context, id, tokenHash string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE accounts SET reset_token_hash = NULL, reset_token_expire = NULL, updated_at = now()
		WHERE id = $1 AND reset_token_hash = $2
	`, id, tokenHash)
	return err
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
