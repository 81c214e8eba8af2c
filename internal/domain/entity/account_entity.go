package entity

import (
	"strings"
	"time"
)

// DefaultHistorySize is how many password hashes an account remembers.
const DefaultHistorySize = 5

// Account is the aggregate root for credentials.
// PasswordHash and PasswordHistory hold bcrypt hashes only.
type Account struct {
	ID                 string
	Email              string
	Username           string
	PhoneNumber        string
	PasswordHash       string
	PasswordHistory    []string // oldest first
	LoginAttempts      int
	LockUntil          *time.Time
	LastPasswordChange time.Time
	PasswordExpiryDays int
	IsAdmin            bool
	IsDoctor           bool
	IsVerified         bool
	ResetTokenHash     *string
	ResetTokenExpire   *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NormalizeEmail lower-cases and trims an identity before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsLocked reports whether a lock is active at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockUntil != nil && now.Before(*a.LockUntil)
}

// LockRemaining is the time left on an active lock, zero otherwise.
func (a *Account) LockRemaining(now time.Time) time.Duration {
	if !a.IsLocked(now) {
		return 0
	}
	return a.LockUntil.Sub(now)
}

// RotatedHistory returns history with newHash appended and the oldest entries
// evicted so at most limit remain. The receiver is not modified.
func (a *Account) RotatedHistory(newHash string, limit int) []string {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	out := make([]string, 0, len(a.PasswordHistory)+1)
	out = append(out, a.PasswordHistory...)
	out = append(out, newHash)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// HasActiveResetToken reports whether a reset token is stored and unexpired.
func (a *Account) HasActiveResetToken(now time.Time) bool {
	return a.ResetTokenHash != nil && a.ResetTokenExpire != nil && now.Before(*a.ResetTokenExpire)
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.PasswordHistory = append([]string(nil), a.PasswordHistory...)
	if a.LockUntil != nil {
		t := *a.LockUntil
		c.LockUntil = &t
	}
	if a.ResetTokenHash != nil {
		h := *a.ResetTokenHash
		c.ResetTokenHash = &h
	}
	if a.ResetTokenExpire != nil {
		t := *a.ResetTokenExpire
		c.ResetTokenExpire = &t
	}
	return &c
}
