package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	"github.com/oksasatya/swastha-auth/internal/domain/repository"
	"github.com/oksasatya/swastha-auth/internal/domain/security"
)

func seed(t *testing.T, r *AccountRepository) *entity.Account {
	t.Helper()
	a := &entity.Account{Email: "a@x.com", PasswordHash: "h0", PasswordHistory: []string{"h0"}}
	require.NoError(t, r.Create(context.Background(), a))
	return a
}

func TestAccountRepository_CreateDuplicate(t *testing.T) {
	r := NewAccountRepository()
	seed(t, r)
	err := r.Create(context.Background(), &entity.Account{Email: "a@x.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestAccountRepository_ReturnsCopies(t *testing.T) {
	r := NewAccountRepository()
	a := seed(t, r)

	got, err := r.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	got.PasswordHistory[0] = "tampered"

	again, err := r.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "h0", again.PasswordHistory[0])
}

func TestAccountRepository_ConcurrentFailuresLockExactlyOnce(t *testing.T) {
	r := NewAccountRepository()
	a := seed(t, r)
	now := time.Now()
	policy := security.DefaultLockout()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = r.RegisterFailure(context.Background(), a.ID, now, policy)
		}()
	}
	wg.Wait()

	got, err := r.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.LoginAttempts)
	require.NotNil(t, got.LockUntil)
	assert.Equal(t, now.Add(policy.Duration), *got.LockUntil)
}

func TestAccountRepository_ResetFailuresRefusesActiveLock(t *testing.T) {
	r := NewAccountRepository()
	a := seed(t, r)
	now := time.Now()
	policy := security.DefaultLockout()
	for i := 0; i < 3; i++ {
		_, applied, err := r.RegisterFailure(context.Background(), a.ID, now, policy)
		require.NoError(t, err)
		assert.True(t, applied)
	}

	assert.ErrorIs(t, r.ResetFailures(context.Background(), a.ID, now), repository.ErrConflict)
	require.NoError(t, r.ResetFailures(context.Background(), a.ID, now.Add(policy.Duration)))

	got, _ := r.GetByID(context.Background(), a.ID)
	assert.Zero(t, got.LoginAttempts)
	assert.Nil(t, got.LockUntil)
}

func TestAccountRepository_UpdatePasswordCAS(t *testing.T) {
	r := NewAccountRepository()
	a := seed(t, r)
	now := time.Now()

	require.NoError(t, r.UpdatePassword(context.Background(), a.ID, repository.PasswordChange{
		ExpectedHash: "h0", NewHash: "h1", History: []string{"h0", "h1"}, ChangedAt: now,
	}))
	err := r.UpdatePassword(context.Background(), a.ID, repository.PasswordChange{
		ExpectedHash: "h0", NewHash: "h2", History: []string{"h0", "h2"}, ChangedAt: now,
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestAccountRepository_ResetTokenConsumedOnce(t *testing.T) {
	r := NewAccountRepository()
	a := seed(t, r)
	now := time.Now()
	ctx := context.Background()
	require.NoError(t, r.SetResetToken(ctx, a.ID, "digest", now.Add(10*time.Minute)))

	got, err := r.GetByResetToken(ctx, "digest", now)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			change := repository.PasswordChange{ExpectedHash: "h0", NewHash: "h1", History: []string{"h0", "h1"}, ChangedAt: now}
			if r.RedeemResetToken(ctx, a.ID, "digest", now, change) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	_, err = r.GetByResetToken(ctx, "digest", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	stored, err := r.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "h1", stored.PasswordHash)
}

func TestAccountRepository_RedeemKeepsTokenOnPasswordConflict(t *testing.T) {
	r := NewAccountRepository()
	a := seed(t, r)
	now := time.Now()
	ctx := context.Background()
	require.NoError(t, r.SetResetToken(ctx, a.ID, "digest", now.Add(10*time.Minute)))

	err := r.RedeemResetToken(ctx, a.ID, "digest", now, repository.PasswordChange{
		ExpectedHash: "stale", NewHash: "h1", History: []string{"h0", "h1"}, ChangedAt: now,
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := r.GetByResetToken(ctx, "digest", now)
	require.NoError(t, err)
	assert.Equal(t, "h0", got.PasswordHash)
}

func TestAccountRepository_ListAndDelete(t *testing.T) {
	r := NewAccountRepository()
	ctx := context.Background()
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		require.NoError(t, r.Create(ctx, &entity.Account{Email: email}))
	}

	all, err := r.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	page, err := r.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)

	none, err := r.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, r.Delete(ctx, all[0].ID))
	assert.ErrorIs(t, r.Delete(ctx, all[0].ID), repository.ErrNotFound)
	_, err = r.GetByEmail(ctx, all[0].Email)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// the email can be registered again
	require.NoError(t, r.Create(ctx, &entity.Account{Email: all[0].Email}))
}

func TestAccountRepository_ResetTokenExpires(t *testing.T) {
	r := NewAccountRepository()
	a := seed(t, r)
	now := time.Now()
	ctx := context.Background()
	require.NoError(t, r.SetResetToken(ctx, a.ID, "digest", now.Add(10*time.Minute)))

	_, err := r.GetByResetToken(ctx, "digest", now.Add(11*time.Minute))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	change := repository.PasswordChange{ExpectedHash: "h0", NewHash: "h1", ChangedAt: now}
	assert.ErrorIs(t, r.RedeemResetToken(ctx, a.ID, "digest", now.Add(11*time.Minute), change), repository.ErrNotFound)
}

func TestAuditRepository_NewestFirst(t *testing.T) {
	r := NewAuditRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Append(ctx, &entity.AuditEntry{AccountID: "a", Action: "first", CreatedAt: base}))
	require.NoError(t, r.Append(ctx, &entity.AuditEntry{AccountID: "b", Action: "other", CreatedAt: base}))
	require.NoError(t, r.Append(ctx, &entity.AuditEntry{AccountID: "a", Action: "third", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, r.Append(ctx, &entity.AuditEntry{AccountID: "a", Action: "tie", CreatedAt: base.Add(time.Second)}))

	got, err := r.ListByAccount(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"tie", "third", "first"}, []string{got[0].Action, got[1].Action, got[2].Action})
}
