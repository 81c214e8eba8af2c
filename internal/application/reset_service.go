package application

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	repo "github.com/oksasatya/swastha-auth/internal/domain/repository"
	"github.com/oksasatya/swastha-auth/internal/domain/security"
	"github.com/oksasatya/swastha-auth/pkg/helpers"
)

// Notifier delivers a plain text message to an address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ResetService issues and redeems single-use password reset tokens. Only
// the sha256 digest of a token is stored.
type ResetService struct {
	store  *CredentialStore
	policy *security.PasswordPolicy
	ttl    time.Duration
	now    func() time.Time
}

func NewResetService(store *CredentialStore, policy *security.PasswordPolicy, ttl time.Duration) *ResetService {
	return &ResetService{store: store, policy: policy, ttl: ttl, now: time.Now}
}

// Issue stores a fresh token for a, replacing any previous one, and returns
// the raw token.
func (s *ResetService) Issue(ctx context.Context, a *entity.Account) (string, error) {
	raw, digest, err := helpers.GenResetToken()
	if err != nil {
		return "", err
	}
	if err := s.store.Accounts.SetResetToken(ctx, a.ID, digest, s.now().UTC().Add(s.ttl)); err != nil {
		return "", err
	}
	metricResetIssued.Add(1)
	return raw, nil
}

// Revoke clears raw if it is still the stored token of a.
func (s *ResetService) Revoke(ctx context.Context, a *entity.Account, raw string) error {
	return s.store.Accounts.ClearResetToken(ctx, a.ID, helpers.HashToken(raw))
}

// Lookup returns the account holding an unexpired token raw.
func (s *ResetService) Lookup(ctx context.Context, raw string) (*entity.Account, error) {
	if raw == "" {
		return nil, security.ErrInvalidOrExpiredToken
	}
	a, err := s.store.Accounts.GetByResetToken(ctx, helpers.HashToken(raw), s.now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, security.ErrInvalidOrExpiredToken
	}
	return a, err
}

// Consume redeems raw and sets newPassword. The token is checked, then the
// password rules, and finally the password is rotated and the token cleared
// in one conditional update so only one caller wins. A rejected password or
// a lost race against a concurrent password change leaves the token usable.
func (s *ResetService) Consume(ctx context.Context, raw, newPassword string) (*entity.Account, error) {
	a, err := s.Lookup(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.policy.ValidateStrength(newPassword); err != nil {
		return nil, err
	}
	if s.policy.CheckReuse(a.PasswordHistory, newPassword) {
		return nil, security.ErrPasswordReused
	}
	newHash, err := s.store.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	if err := s.store.RedeemReset(ctx, a, helpers.HashToken(raw), s.now().UTC(), newHash); err != nil {
		return nil, err
	}
	metricResetConsumed.Add(1)
	return a, nil
}
