package security

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrValidation marks malformed or missing input. WeakPasswordError and
	// ErrPasswordReused both match it with errors.Is.
	ErrValidation = errors.New("validation failed")

	ErrPasswordReused    = fmt.Errorf("%w: you cannot reuse a previous password, please choose a new password", ErrValidation)
	ErrPasswordMismatch  = fmt.Errorf("%w: passwords do not match", ErrValidation)
	ErrIncorrectPassword = fmt.Errorf("%w: current password is incorrect", ErrValidation)

	ErrInvalidCredentials    = errors.New("invalid credentials, please check your email and password")
	ErrAccountNotFound       = errors.New("user does not exist, please check your email and try again")
	ErrDuplicateIdentity     = errors.New("user already exists")
	ErrEmailNotVerified      = errors.New("please verify your email first")
	ErrInvalidToken          = errors.New("invalid token")
	ErrInvalidOrExpiredToken = errors.New("token is invalid or has expired")
	ErrConcurrentUpdate      = errors.New("account was modified concurrently")

	// ErrInternal is the opaque error surfaced for infrastructure failures.
	ErrInternal = errors.New("internal server error, please try again later")
)

// Reason names one failed password strength rule.
type Reason string

const (
	TooShort           Reason = "TooShort"
	TooLong            Reason = "TooLong"
	MissingUppercase   Reason = "MissingUppercase"
	MissingLowercase   Reason = "MissingLowercase"
	MissingDigit       Reason = "MissingDigit"
	MissingSpecialChar Reason = "MissingSpecialChar"
)

var reasonMessages = map[Reason]string{
	TooShort:           "password must be at least 8 characters long",
	TooLong:            "password must be at most 72 bytes long",
	MissingUppercase:   "password must contain at least one uppercase letter",
	MissingLowercase:   "password must contain at least one lowercase letter",
	MissingDigit:       "password must contain at least one number",
	MissingSpecialChar: "password must contain at least one special character",
}

// Message returns the user-facing text for r.
func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}

// WeakPasswordError lists every strength rule the candidate failed.
type WeakPasswordError struct {
	Reasons []Reason
}

func (e *WeakPasswordError) Error() string {
	msgs := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		msgs = append(msgs, r.Message())
	}
	return "weak password: " + strings.Join(msgs, "; ")
}

func (e *WeakPasswordError) Is(target error) bool { return target == ErrValidation }

// Has reports whether r is among the failed rules.
func (e *WeakPasswordError) Has(r Reason) bool {
	for _, x := range e.Reasons {
		if x == r {
			return true
		}
	}
	return false
}

// LockedError is returned while an account lock is active.
type LockedError struct {
	Remaining time.Duration
	// JustLocked is set when the failed attempt itself triggered the lock.
	JustLocked bool
}

// Seconds rounds the remaining lock time to whole seconds.
func (e *LockedError) Seconds() int {
	return int(math.Round(e.Remaining.Seconds()))
}

func (e *LockedError) Error() string {
	if e.JustLocked {
		return "too many attempts, your account is temporarily locked"
	}
	return fmt.Sprintf("account is temporarily locked, try again in %d seconds", e.Seconds())
}

// RateLimitedError is returned when a client address exhausted its window.
type RateLimitedError struct {
	RetryAfter time.Duration
	Window     time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many login attempts from this IP, please try again after %s", humanDuration(e.Window))
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(math.Ceil(d.Seconds())), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
