package security

import (
	"time"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
)

// State is the lockout state of an account at a given instant.
type State int

const (
	Active State = iota
	Warning
	Locked
)

func (s State) String() string {
	switch s {
	case Warning:
		return "warning"
	case Locked:
		return "locked"
	default:
		return "active"
	}
}

// Lockout holds the brute-force lockout policy. One threshold is used for
// every call site.
type Lockout struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockout locks after 3 consecutive failures for 10 minutes.
func DefaultLockout() Lockout {
	return Lockout{Threshold: 3, Duration: 10 * time.Minute}
}

// Evaluate derives the state of acc at now. An expired lock reads as Active
// or Warning; it is cleared lazily by the next failure or success.
func (l Lockout) Evaluate(acc *entity.Account, now time.Time) State {
	switch {
	case acc.IsLocked(now):
		return Locked
	case acc.LockUntil != nil:
		return Active
	case acc.LoginAttempts > 0:
		return Warning
	default:
		return Active
	}
}

// Transition is the counter update produced by one credential check.
type Transition struct {
	LoginAttempts int
	LockUntil     *time.Time
	// Rejected is set when the account was already locked; nothing changes.
	Rejected bool
}

// Locked reports whether the transition leaves the account locked at now.
func (t Transition) Locked(now time.Time) bool {
	return t.LockUntil != nil && now.Before(*t.LockUntil)
}

// OnFailure computes the state after a failed credential check.
func (l Lockout) OnFailure(acc *entity.Account, now time.Time) Transition {
	if acc.IsLocked(now) {
		return Transition{LoginAttempts: acc.LoginAttempts, LockUntil: acc.LockUntil, Rejected: true}
	}
	attempts := acc.LoginAttempts + 1
	if acc.LockUntil != nil {
		// previous lock expired
		attempts = 1
	}
	t := Transition{LoginAttempts: attempts}
	if l.Threshold > 0 && attempts >= l.Threshold {
		until := now.Add(l.Duration)
		t.LockUntil = &until
	}
	return t
}

// OnSuccess computes the state after a successful credential check.
// A success always clears the attempt counter and any lock that is not
// active at now.
func (l Lockout) OnSuccess(acc *entity.Account, now time.Time) Transition {
	if acc.IsLocked(now) {
		return Transition{LoginAttempts: acc.LoginAttempts, LockUntil: acc.LockUntil, Rejected: true}
	}
	return Transition{}
}

// Apply writes t onto acc.
func (t Transition) Apply(acc *entity.Account) {
	if t.Rejected {
		return
	}
	acc.LoginAttempts = t.LoginAttempts
	acc.LockUntil = t.LockUntil
}
