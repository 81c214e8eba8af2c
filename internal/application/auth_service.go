package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	repo "github.com/oksasatya/swastha-auth/internal/domain/repository"
	"github.com/oksasatya/swastha-auth/internal/domain/security"
	"github.com/oksasatya/swastha-auth/pkg/helpers"
	"github.com/oksasatya/swastha-auth/pkg/validation"
)

// ErrSearchDisabled is returned by SearchAudit when no index is configured.
var ErrSearchDisabled = errors.New("audit search is not configured")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AuditSearcher runs full-text queries over the audit trail.
type AuditSearcher interface {
	Search(ctx context.Context, accountID, q string, size int) ([]entity.AuditEntry, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(accountID string, isAdmin bool) (token, sessionID string, exp time.Time, err error)
}

type AuthOptions struct {
	Lockout              security.Lockout
	TokenTTL             time.Duration
	ResetRequireVerified bool
	// ResetURL is the front-end page the raw token is appended to.
	ResetURL string
}

// AuthService implements the inbound credential operations.
type AuthService struct {
	Store    *CredentialStore
	Policy   *security.PasswordPolicy
	Limiter  security.RateLimiter
	Tokens   TokenIssuer
	Sessions repo.SessionRepository
	Resets   *ResetService
	Notifier Notifier
	Audit    *AuditRecorder
	Search   AuditSearcher
	Logger   *logrus.Logger
	opts     AuthOptions
	now      func() time.Time
}

func NewAuthService(
	store *CredentialStore,
	policy *security.PasswordPolicy,
	limiter security.RateLimiter,
	tokens TokenIssuer,
	sessions repo.SessionRepository,
	resets *ResetService,
	notifier Notifier,
	audit *AuditRecorder,
	logger *logrus.Logger,
	opts AuthOptions,
) *AuthService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{
		Store:    store,
		Policy:   policy,
		Limiter:  limiter,
		Tokens:   tokens,
		Sessions: sessions,
		Resets:   resets,
		Notifier: notifier,
		Audit:    audit,
		Logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// SetClock replaces the time source of the service and its collaborators.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
	if s.Store != nil {
		s.Store.now = now
	}
	if s.Resets != nil {
		s.Resets.now = now
	}
}

type LoginResult struct {
	Account   *entity.Account
	Token     string
	SessionID string
	ExpiresAt time.Time
	// PasswordExpired asks the client to prompt for a password change.
	PasswordExpired bool
}

// Login checks the rate window for clientAddress, then the lock state, then
// the password, and issues a token on success.
func (s *AuthService) Login(ctx context.Context, identity, rawPassword, clientAddress string) (*LoginResult, error) {
	if err := s.checkRate(ctx, clientAddress); err != nil {
		return nil, err
	}
	if strings.TrimSpace(identity) == "" || rawPassword == "" {
		return nil, fmt.Errorf("%w: please enter your email and password", security.ErrValidation)
	}

	acc, err := s.Store.Lookup(ctx, identity)
	if err != nil {
		if errors.Is(err, security.ErrAccountNotFound) {
			metricLoginFailure.Add(1)
			return nil, err
		}
		return nil, s.internal(err, "lookup account")
	}

	now := s.now()
	if acc.IsLocked(now) {
		metricLoginFailure.Add(1)
		s.record(ctx, acc.ID, entity.ActionLoginFailed, "login rejected while account locked", clientAddress)
		return nil, &security.LockedError{Remaining: acc.LockRemaining(now)}
	}

	if !s.Store.Matches(acc, rawPassword) {
		return nil, s.loginFailed(ctx, acc, clientAddress)
	}

	if err := s.Store.ClearFailures(ctx, acc.ID, now); err != nil {
		if !errors.Is(err, repo.ErrConflict) {
			return nil, s.internal(err, "reset login attempts")
		}
		// a concurrent failure locked the account after our check
		cur, gErr := s.Store.Get(ctx, acc.ID)
		if gErr != nil {
			return nil, s.internal(gErr, "reload account")
		}
		metricLoginFailure.Add(1)
		return nil, &security.LockedError{Remaining: cur.LockRemaining(s.now())}
	}
	acc.LoginAttempts, acc.LockUntil = 0, nil

	token, sid, exp, err := s.Tokens.Issue(acc.ID, acc.IsAdmin)
	if err != nil {
		return nil, s.internal(err, "issue token")
	}
	if s.Sessions != nil {
		if err := s.Sessions.Save(ctx, acc.ID, sid, clientAddress, s.opts.TokenTTL); err != nil {
			return nil, s.internal(err, "save session")
		}
	}

	metricLoginSuccess.Add(1)
	s.record(ctx, acc.ID, entity.ActionLogin, fmt.Sprintf("User %s logged in successfully", acc.Email), clientAddress)
	return &LoginResult{
		Account:         acc,
		Token:           token,
		SessionID:       sid,
		ExpiresAt:       exp,
		PasswordExpired: s.Store.IsExpired(acc),
	}, nil
}

func (s *AuthService) checkRate(ctx context.Context, clientAddress string) error {
	if s.Limiter == nil {
		return nil
	}
	d, err := s.Limiter.Allow(ctx, clientAddress)
	if err != nil {
		return s.internal(err, "login rate limiter")
	}
	if !d.Allowed {
		metricRateLimited.Add(1)
		return &security.RateLimitedError{RetryAfter: d.RetryAfter, Window: s.Limiter.Window()}
	}
	return nil
}

func (s *AuthService) loginFailed(ctx context.Context, acc *entity.Account, clientAddress string) error {
	metricLoginFailure.Add(1)
	now := s.now().UTC()
	updated, applied, err := s.Store.RecordFailure(ctx, acc.ID, now, s.opts.Lockout)
	if err != nil {
		return s.internal(err, "register login failure")
	}
	s.record(ctx, acc.ID, entity.ActionLoginFailed, "invalid password", clientAddress)

	if !updated.IsLocked(now) {
		return security.ErrInvalidCredentials
	}
	justLocked := applied
	if justLocked {
		metricLockouts.Add(1)
		s.record(ctx, acc.ID, entity.ActionAccountLocked,
			fmt.Sprintf("locked after %d failed attempts", updated.LoginAttempts), clientAddress)
	}
	return &security.LockedError{Remaining: updated.LockRemaining(now), JustLocked: justLocked}
}

// ChangePassword replaces the password of accountID after checking the
// current one, the strength rules and the history.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword, clientAddress string) error {
	if oldPassword == "" || newPassword == "" {
		return fmt.Errorf("%w: old and new password are required", security.ErrValidation)
	}
	acc, err := s.Store.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, security.ErrAccountNotFound) {
			return err
		}
		return s.internal(err, "load account")
	}
	if !s.Store.Matches(acc, oldPassword) {
		return security.ErrIncorrectPassword
	}
	if err := s.Policy.ValidateStrength(newPassword); err != nil {
		return err
	}
	if s.Policy.CheckReuse(acc.PasswordHistory, newPassword) {
		return security.ErrPasswordReused
	}
	newHash, err := s.Store.HashPassword(newPassword)
	if err != nil {
		return s.internal(err, "hash password")
	}
	if err := s.Store.RotatePassword(ctx, acc, newHash); err != nil {
		if errors.Is(err, security.ErrConcurrentUpdate) {
			return err
		}
		return s.internal(err, "rotate password")
	}
	s.record(ctx, acc.ID, entity.ActionPasswordChange, "User changed their password", clientAddress)
	return nil
}

// RequestReset issues a reset token and mails the link. When delivery fails
// the token is cleared again.
func (s *AuthService) RequestReset(ctx context.Context, identity, clientAddress string) error {
	if strings.TrimSpace(identity) == "" {
		return fmt.Errorf("%w: email is required", security.ErrValidation)
	}
	acc, err := s.Store.Lookup(ctx, identity)
	if err != nil {
		if errors.Is(err, security.ErrAccountNotFound) {
			return err
		}
		return s.internal(err, "lookup account")
	}
	if s.opts.ResetRequireVerified && !acc.IsVerified {
		return security.ErrEmailNotVerified
	}

	raw, err := s.Resets.Issue(ctx, acc)
	if err != nil {
		return s.internal(err, "issue reset token")
	}
	if s.Notifier != nil {
		link := strings.TrimRight(s.opts.ResetURL, "/") + "/" + raw
		body := "Reset Your Password by clicking on the link below: \n\n " + link
		if err := s.Notifier.Send(ctx, acc.Email, "Reset Password", body); err != nil {
			if rErr := s.Resets.Revoke(context.WithoutCancel(ctx), acc, raw); rErr != nil {
				s.Logger.WithError(rErr).WithField("account_id", acc.ID).Error("clear reset token failed")
			}
			return s.internal(err, "send reset email")
		}
	}
	s.record(ctx, acc.ID, entity.ActionResetRequested, "Password reset link sent to "+acc.Email, clientAddress)
	return nil
}

// CompleteReset redeems rawToken and sets newPassword. Any live session of
// the account is discarded.
func (s *AuthService) CompleteReset(ctx context.Context, rawToken, newPassword, clientAddress string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", security.ErrValidation)
	}
	acc, err := s.Resets.Consume(ctx, rawToken, newPassword)
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return s.internal(err, "consume reset token")
	}
	if s.Sessions != nil {
		if err := s.Sessions.Delete(ctx, acc.ID); err != nil {
			s.Logger.WithError(err).WithField("account_id", acc.ID).Warn("discard session after reset failed")
		}
	}
	s.record(ctx, acc.ID, entity.ActionPasswordReset, "User reset their password", clientAddress)
	return nil
}

// Logout discards the session artifact of claims. The token itself stays
// valid until it expires.
func (s *AuthService) Logout(ctx context.Context, claims *helpers.Claims, clientAddress string) error {
	if claims == nil || claims.AccountID == "" {
		return security.ErrInvalidToken
	}
	if s.Sessions != nil {
		if err := s.Sessions.Delete(ctx, claims.AccountID); err != nil {
			return s.internal(err, "delete session")
		}
	}
	s.record(ctx, claims.AccountID, entity.ActionLogout, "User logged out", clientAddress)
	return nil
}

type RegisterInput struct {
	Username        string `json:"username" validate:"required,max=64"`
	Email           string `json:"email" validate:"required,email,max=254"`
	PhoneNumber     string `json:"phoneNumber" validate:"required,phone10"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// FieldErrors carries per-field validation messages.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+" "+v)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (f FieldErrors) Is(target error) bool { return target == security.ErrValidation }

func (s *AuthService) Register(ctx context.Context, in RegisterInput, clientAddress string) (*entity.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = entity.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, FieldErrors(validation.ToDetails(err))
	}
	if in.Password != in.ConfirmPassword {
		return nil, security.ErrPasswordMismatch
	}
	if err := s.Policy.ValidateStrength(in.Password); err != nil {
		return nil, err
	}

	acc, err := s.Store.Create(ctx, NewAccount{
		Email:       in.Email,
		Username:    in.Username,
		PhoneNumber: in.PhoneNumber,
		Password:    in.Password,
	})
	if err != nil {
		if errors.Is(err, security.ErrDuplicateIdentity) {
			return nil, err
		}
		return nil, s.internal(err, "create account")
	}
	s.record(ctx, acc.ID, entity.ActionUserCreated, fmt.Sprintf("New user %s was created", acc.Username), clientAddress)
	return acc, nil
}

type ProfileInput struct {
	Username    string `json:"username" validate:"omitempty,max=64"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,phone10"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, accountID string, in ProfileInput, clientAddress string) (*entity.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validation.Struct(in); err != nil {
		return nil, FieldErrors(validation.ToDetails(err))
	}
	acc, err := s.Store.UpdateProfile(ctx, accountID, in.Username, in.PhoneNumber)
	if err != nil {
		if errors.Is(err, security.ErrAccountNotFound) {
			return nil, err
		}
		return nil, s.internal(err, "update profile")
	}
	s.record(ctx, acc.ID, entity.ActionProfileUpdate, "User updated their profile", clientAddress)
	return acc, nil
}

func (s *AuthService) Profile(ctx context.Context, accountID string) (*entity.Account, error) {
	acc, err := s.Store.Get(ctx, accountID)
	if err != nil && !errors.Is(err, security.ErrAccountNotFound) {
		return nil, s.internal(err, "load account")
	}
	return acc, err
}

// VerifyAccount marks accountID as verified.
func (s *AuthService) VerifyAccount(ctx context.Context, accountID string) error {
	err := s.Store.MarkVerified(ctx, accountID)
	if err != nil && !errors.Is(err, security.ErrAccountNotFound) {
		return s.internal(err, "mark verified")
	}
	return err
}

// ListAccounts returns one page of accounts, newest first. Out of range
// limits fall back to the default page size.
func (s *AuthService) ListAccounts(ctx context.Context, limit, offset int) ([]*entity.Account, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.Store.List(ctx, limit, offset)
	if err != nil {
		return nil, s.internal(err, "list accounts")
	}
	return out, nil
}

// DeleteAccount removes accountID and discards its session. The audit trail
// of the account is kept. Admins cannot delete their own account.
func (s *AuthService) DeleteAccount(ctx context.Context, actorID, accountID, clientAddress string) error {
	if actorID == accountID {
		return fmt.Errorf("%w: you cannot delete your own account", security.ErrValidation)
	}
	acc, err := s.Profile(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, acc.ID); err != nil {
		if errors.Is(err, security.ErrAccountNotFound) {
			return err
		}
		return s.internal(err, "delete account")
	}
	if s.Sessions != nil {
		if err := s.Sessions.Delete(ctx, acc.ID); err != nil {
			s.Logger.WithError(err).WithField("account_id", acc.ID).Warn("discard session after delete failed")
		}
	}
	s.record(ctx, acc.ID, entity.ActionAccountDeleted, fmt.Sprintf("User %s deleted by %s", acc.Email, actorID), clientAddress)
	return nil
}

// ListAudit returns the audit trail of accountID, newest first.
func (s *AuthService) ListAudit(ctx context.Context, accountID string) ([]entity.AuditEntry, error) {
	out, err := s.Audit.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, s.internal(err, "list audit")
	}
	return out, nil
}

// SearchAudit queries the audit index. An empty accountID searches every
// account.
func (s *AuthService) SearchAudit(ctx context.Context, accountID, q string, size int) ([]entity.AuditEntry, error) {
	if s.Search == nil {
		return nil, ErrSearchDisabled
	}
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("%w: query is required", security.ErrValidation)
	}
	out, err := s.Search.Search(ctx, accountID, q, size)
	if err != nil {
		return nil, s.internal(err, "search audit")
	}
	return out, nil
}

func (s *AuthService) record(ctx context.Context, accountID, action, detail, ip string) {
	if s.Audit == nil {
		return
	}
	s.Audit.Record(ctx, entity.AuditEntry{
		AccountID: accountID,
		Action:    action,
		Detail:    detail,
		IP:        ip,
		CreatedAt: s.now().UTC(),
	})
}

// internal logs err and returns the opaque ErrInternal.
func (s *AuthService) internal(err error, op string) error {
	s.Logger.WithError(err).WithField("op", op).Error("auth operation failed")
	return security.ErrInternal
}

func isDomainError(err error) bool {
	for _, target := range []error{
		security.ErrValidation,
		security.ErrInvalidOrExpiredToken,
		security.ErrConcurrentUpdate,
		security.ErrAccountNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
