// Package memory holds process-local repositories used by tests and local
// runs without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	"github.com/oksasatya/swastha-auth/internal/domain/repository"
	"github.com/oksasatya/swastha-auth/internal/domain/security"
)

type AccountRepository struct {
	mu      sync.Mutex
	byID    map[string]*entity.Account
	byEmail map[string]string
	now     func() time.Time
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[string]*entity.Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *AccountRepository) Create(_ context.Context, a *entity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[a.Email]; ok {
		return repository.ErrDuplicate
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	ts := r.now().UTC()
	a.CreatedAt, a.UpdatedAt = ts, ts
	r.byID[a.ID] = a.Clone()
	r.byEmail[a.Email] = a.ID
	return nil
}

func (r *AccountRepository) GetByID(_ context.Context, id string) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a.Clone(), nil
}

func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *AccountRepository) UpdateProfile(_ context.Context, id, username, phone string) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if username != "" {
		a.Username = username
	}
	if phone != "" {
		a.PhoneNumber = phone
	}
	a.UpdatedAt = r.now().UTC()
	return a.Clone(), nil
}

func (r *AccountRepository) SetVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.IsVerified = true
	return nil
}

func (r *AccountRepository) List(_ context.Context, limit, offset int) ([]*entity.Account, error) {
	r.mu.Lock()
	all := make([]*entity.Account, 0, len(r.byID))
	for _, a := range r.byID {
		all = append(all, a.Clone())
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if offset >= len(all) {
		return []*entity.Account{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *AccountRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.byEmail, a.Email)
	delete(r.byID, id)
	return nil
}

func (r *AccountRepository) UpdatePassword(_ context.Context, id string, change repository.PasswordChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.PasswordHash != change.ExpectedHash {
		return repository.ErrConflict
	}
	a.PasswordHash = change.NewHash
	a.PasswordHistory = append([]string(nil), change.History...)
	a.LastPasswordChange = change.ChangedAt
	a.UpdatedAt = change.ChangedAt
	return nil
}

func (r *AccountRepository) RegisterFailure(_ context.Context, id string, now time.Time, policy security.Lockout) (*entity.Account, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	t := policy.OnFailure(a, now)
	t.Apply(a)
	return a.Clone(), !t.Rejected, nil
}

func (r *AccountRepository) ResetFailures(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	t := security.Lockout{}.OnSuccess(a, now)
	if t.Rejected {
		return repository.ErrConflict
	}
	t.Apply(a)
	return nil
}

func (r *AccountRepository) SetResetToken(_ context.Context, id, tokenHash string, expire time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	h, e := tokenHash, expire
	a.ResetTokenHash, a.ResetTokenExpire = &h, &e
	return nil
}

func (r *AccountRepository) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.HasActiveResetToken(now) && *a.ResetTokenHash == tokenHash {
			return a.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AccountRepository) RedeemResetToken(_ context.Context, id, tokenHash string, now time.Time, change repository.PasswordChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || !a.HasActiveResetToken(now) || *a.ResetTokenHash != tokenHash {
		return repository.ErrNotFound
	}
	if a.PasswordHash != change.ExpectedHash {
		return repository.ErrConflict
	}
	a.PasswordHash = change.NewHash
	a.PasswordHistory = append([]string(nil), change.History...)
	a.LastPasswordChange = change.ChangedAt
	a.UpdatedAt = change.ChangedAt
	a.ResetTokenHash, a.ResetTokenExpire = nil, nil
	return nil
}

func (r *AccountRepository) ClearResetToken(_ context.Context, id, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.ResetTokenHash == nil || *a.ResetTokenHash != tokenHash {
		return nil
	}
	a.ResetTokenHash, a.ResetTokenExpire = nil, nil
	return nil
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
