package repository

import (
	"context"
	"time"
)

// SessionRepository holds the server-side artifact of the current session of
// an account. One session per account; a new login replaces it.
type SessionRepository interface {
	Save(ctx context.Context, accountID, sessionID, ip string, ttl time.Duration) error
	// Active reports whether sessionID is the stored session of accountID.
	Active(ctx context.Context, accountID, sessionID string) (bool, error)
	Delete(ctx context.Context, accountID string) error
}
