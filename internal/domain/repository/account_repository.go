package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	"github.com/oksasatya/swastha-auth/internal/domain/security"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique constraint was violated.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrConflict indicates a conditional update lost against a concurrent writer.
	ErrConflict = errors.New("repository: conflict")
)

// PasswordChange is a compare-and-swap on the stored password hash.
type PasswordChange struct {
	ExpectedHash string
	NewHash      string
	History      []string
	ChangedAt    time.Time
}

// AccountRepository persists accounts. Counter and token mutations are
// atomic per account.
type AccountRepository interface {
	Create(ctx context.Context, a *entity.Account) error
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	UpdateProfile(ctx context.Context, id, username, phone string) (*entity.Account, error)
	SetVerified(ctx context.Context, id string) error
	// List returns accounts newest first.
	List(ctx context.Context, limit, offset int) ([]*entity.Account, error)
	// Delete removes the account; ErrNotFound when it does not exist.
	Delete(ctx context.Context, id string) error

	// UpdatePassword fails with ErrConflict when the stored hash is no
	// longer ExpectedHash.
	UpdatePassword(ctx context.Context, id string, change PasswordChange) error

	// RegisterFailure applies policy.OnFailure in a single atomic step and
	// returns the updated account. When a lock is active at now nothing is
	// changed, the current account is returned and applied is false.
	RegisterFailure(ctx context.Context, id string, now time.Time, policy security.Lockout) (acc *entity.Account, applied bool, err error)
	// ResetFailures clears attempts and any lock that is not active at now.
	// It returns ErrConflict when an active lock is present.
	ResetFailures(ctx context.Context, id string, now time.Time) error

	SetResetToken(ctx context.Context, id, tokenHash string, expire time.Time) error
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.Account, error)
	// RedeemResetToken applies change and clears the token in one step, only
	// if the token still matches and is unexpired at now and the stored hash
	// is still change.ExpectedHash. It returns ErrNotFound when the token is
	// gone and ErrConflict when only the password changed.
	RedeemResetToken(ctx context.Context, id, tokenHash string, now time.Time, change PasswordChange) error
	// ClearResetToken clears the token only if it still matches tokenHash.
	ClearResetToken(ctx context.Context, id, tokenHash string) error
}
