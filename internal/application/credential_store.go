package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	repo "github.com/oksasatya/swastha-auth/internal/domain/repository"
	"github.com/oksasatya/swastha-auth/internal/domain/security"
)

// Hasher produces and compares password hashes.
type Hasher interface {
	Hash(plain string) (string, error)
	security.Matcher
}

// NewAccount is the input to CredentialStore.Create. Password is plaintext.
type NewAccount struct {
	Email       string
	Username    string
	PhoneNumber string
	Password    string
	IsAdmin     bool
	IsDoctor    bool
	IsVerified  bool
}

// CredentialStore owns password hashes and their history.
type CredentialStore struct {
	Accounts   repo.AccountRepository
	hasher     Hasher
	expiryDays int
	expiryUnit time.Duration
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialStore(accounts repo.AccountRepository, hasher Hasher, expiryDays int, expiryUnit time.Duration) *CredentialStore {
	if expiryUnit <= 0 {
		expiryUnit = 24 * time.Hour
	}
	return &CredentialStore{
		Accounts:   accounts,
		hasher:     hasher,
		expiryDays: expiryDays,
		expiryUnit: expiryUnit,
		now:        time.Now,
	}
}

func (s *CredentialStore) Create(ctx context.Context, in NewAccount) (*entity.Account, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := &entity.Account{
		Email:              entity.NormalizeEmail(in.Email),
		Username:           in.Username,
		PhoneNumber:        in.PhoneNumber,
		PasswordHash:       hash,
		PasswordHistory:    []string{hash},
		LastPasswordChange: s.now().UTC(),
		PasswordExpiryDays: s.expiryDays,
		IsAdmin:            in.IsAdmin,
		IsDoctor:           in.IsDoctor,
		IsVerified:         in.IsVerified,
	}
	if err := s.Accounts.Create(ctx, a); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, security.ErrDuplicateIdentity
		}
		return nil, err
	}
	return a, nil
}

// Lookup finds an account by identity.
func (s *CredentialStore) Lookup(ctx context.Context, identity string) (*entity.Account, error) {
	a, err := s.Accounts.GetByEmail(ctx, entity.NormalizeEmail(identity))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, security.ErrAccountNotFound
	}
	return a, err
}

func (s *CredentialStore) Get(ctx context.Context, id string) (*entity.Account, error) {
	a, err := s.Accounts.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, security.ErrAccountNotFound
	}
	return a, err
}

// Verify reports whether raw is the current password of identity. Unknown
// identities are compared against a dummy hash and report false.
func (s *CredentialStore) Verify(ctx context.Context, identity, raw string) (bool, error) {
	a, err := s.Lookup(ctx, identity)
	if errors.Is(err, security.ErrAccountNotFound) {
		s.hasher.Matches(s.dummy(), raw)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.Matches(a, raw), nil
}

// Matches compares raw against the current hash of a.
func (s *CredentialStore) Matches(a *entity.Account, raw string) bool {
	return s.hasher.Matches(a.PasswordHash, raw)
}

func (s *CredentialStore) HashPassword(raw string) (string, error) {
	return s.hasher.Hash(raw)
}

// RotatePassword replaces the hash of a, pushing newHash onto the history.
// It fails with ErrConcurrentUpdate when the stored hash changed since a
// was read. On success a reflects the stored state.
func (s *CredentialStore) RotatePassword(ctx context.Context, a *entity.Account, newHash string) error {
	change := s.passwordChange(a, newHash)
	if err := s.Accounts.UpdatePassword(ctx, a.ID, change); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return security.ErrConcurrentUpdate
		}
		return err
	}
	applyChange(a, change)
	return nil
}

// RedeemReset rotates the password of a and clears its reset token
// tokenHash in one conditional update. A spent or expired token yields
// ErrInvalidOrExpiredToken; a concurrent password change yields
// ErrConcurrentUpdate and leaves the token usable.
func (s *CredentialStore) RedeemReset(ctx context.Context, a *entity.Account, tokenHash string, now time.Time, newHash string) error {
	change := s.passwordChange(a, newHash)
	if err := s.Accounts.RedeemResetToken(ctx, a.ID, tokenHash, now, change); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return security.ErrInvalidOrExpiredToken
		case errors.Is(err, repo.ErrConflict):
			return security.ErrConcurrentUpdate
		}
		return err
	}
	applyChange(a, change)
	a.ResetTokenHash, a.ResetTokenExpire = nil, nil
	return nil
}

func (s *CredentialStore) passwordChange(a *entity.Account, newHash string) repo.PasswordChange {
	return repo.PasswordChange{
		ExpectedHash: a.PasswordHash,
		NewHash:      newHash,
		History:      a.RotatedHistory(newHash, entity.DefaultHistorySize),
		ChangedAt:    s.now().UTC(),
	}
}

func applyChange(a *entity.Account, change repo.PasswordChange) {
	a.PasswordHash = change.NewHash
	a.PasswordHistory = change.History
	a.LastPasswordChange = change.ChangedAt
	a.UpdatedAt = change.ChangedAt
}

// IsExpired reports whether the password of a is older than its expiry
// window. A non-positive PasswordExpiryDays never expires.
func (s *CredentialStore) IsExpired(a *entity.Account) bool {
	if a.PasswordExpiryDays <= 0 {
		return false
	}
	deadline := a.LastPasswordChange.Add(time.Duration(a.PasswordExpiryDays) * s.expiryUnit)
	return s.now().After(deadline)
}

// RecordFailure applies a failed check to the lockout counters atomically.
func (s *CredentialStore) RecordFailure(ctx context.Context, id string, now time.Time, policy security.Lockout) (*entity.Account, bool, error) {
	return s.Accounts.RegisterFailure(ctx, id, now.UTC(), policy)
}

// ClearFailures resets the lockout counters after a successful check. It
// fails with ErrConflict when a lock became active concurrently.
func (s *CredentialStore) ClearFailures(ctx context.Context, id string, now time.Time) error {
	return s.Accounts.ResetFailures(ctx, id, now.UTC())
}

// List returns one page of accounts, newest first.
func (s *CredentialStore) List(ctx context.Context, limit, offset int) ([]*entity.Account, error) {
	return s.Accounts.List(ctx, limit, offset)
}

func (s *CredentialStore) Delete(ctx context.Context, id string) error {
	err := s.Accounts.Delete(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return security.ErrAccountNotFound
	}
	return err
}

func (s *CredentialStore) MarkVerified(ctx context.Context, id string) error {
	err := s.Accounts.SetVerified(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return security.ErrAccountNotFound
	}
	return err
}

func (s *CredentialStore) UpdateProfile(ctx context.Context, id, username, phone string) (*entity.Account, error) {
	a, err := s.Accounts.UpdateProfile(ctx, id, username, phone)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, security.ErrAccountNotFound
	}
	return a, err
}

func (s *CredentialStore) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password-for-timing")
	})
	return s.dummyHash
}
