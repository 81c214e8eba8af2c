package application

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
	"github.com/oksasatya/swastha-auth/internal/domain/security"
	"github.com/oksasatya/swastha-auth/internal/infrastructure/memory"
	"github.com/oksasatya/swastha-auth/internal/infrastructure/redisstore"
	"github.com/oksasatya/swastha-auth/pkg/helpers"
)

const (
	testEmail    = "asha@example.com"
	testPassword = "Initial#Pass1"
	testIP       = "10.0.0.7"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	To, Subject, Body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

// lastToken extracts the raw token from the most recent reset link.
func (n *fakeNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent)
	body := n.sent[len(n.sent)-1].Body
	return body[strings.LastIndex(body, "/")+1:]
}

type failingAudit struct{}

func (failingAudit) Append(context.Context, *entity.AuditEntry) error {
	return errors.New("audit store down")
}

func (failingAudit) ListByAccount(context.Context, string) ([]entity.AuditEntry, error) {
	return nil, errors.New("audit store down")
}

type fixtureOptions struct {
	rateMax int
}

type fixture struct {
	svc      *AuthService
	accounts *memory.AccountRepository
	audits   *memory.AuditRepository
	jwt      *helpers.JWTManager
	sessions *redisstore.SessionStore
	notifier *fakeNotifier
	clock    *fakeClock
	mr       *miniredis.Miniredis
}

func newFixture(t *testing.T, opts ...fixtureOptions) *fixture {
	t.Helper()
	o := fixtureOptions{rateMax: 1000}
	if len(opts) > 0 {
		o = opts[0]
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := &fakeClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	accounts := memory.NewAccountRepository()
	audits := memory.NewAuditRepository()
	hasher := helpers.NewPasswordHasher(bcrypt.MinCost)
	store := NewCredentialStore(accounts, hasher, 90, 24*time.Hour)
	policy := security.NewPasswordPolicy(hasher)
	jwt := helpers.NewJWTManager("test-secret", 30*time.Minute).WithClock(clock.Now)
	sessions := redisstore.NewSessionStore(rdb)
	notifier := &fakeNotifier{}

	svc := NewAuthService(
		store,
		policy,
		redisstore.NewWindowLimiter(rdb, "rl:login:ip:", o.rateMax, 10*time.Minute),
		jwt,
		sessions,
		NewResetService(store, policy, 10*time.Minute),
		notifier,
		NewAuditRecorder(audits, nil, logger, 0),
		logger,
		AuthOptions{
			Lockout:              security.DefaultLockout(),
			TokenTTL:             30 * time.Minute,
			ResetRequireVerified: true,
			ResetURL:             "http://localhost:3000/password/reset",
		},
	)
	svc.SetClock(clock.Now)

	return &fixture{
		svc:      svc,
		accounts: accounts,
		audits:   audits,
		jwt:      jwt,
		sessions: sessions,
		notifier: notifier,
		clock:    clock,
		mr:       mr,
	}
}

// register creates the default account and returns it.
func (f *fixture) register(t *testing.T) *entity.Account {
	t.Helper()
	acc, err := f.svc.Register(context.Background(), RegisterInput{
		Username:        "asha",
		Email:           testEmail,
		PhoneNumber:     "9800000001",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	}, testIP)
	require.NoError(t, err)
	return acc
}

func (f *fixture) verified(t *testing.T) *entity.Account {
	t.Helper()
	acc := f.register(t)
	require.NoError(t, f.svc.VerifyAccount(context.Background(), acc.ID))
	return acc
}

func (f *fixture) account(t *testing.T, id string) *entity.Account {
	t.Helper()
	acc, err := f.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc
}

func (f *fixture) actions(t *testing.T, id string) []string {
	t.Helper()
	entries, err := f.svc.ListAudit(context.Background(), id)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}
