package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/swastha-auth/internal/domain/repository"
	"github.com/oksasatya/swastha-auth/pkg/helpers"
)

// SessionStore keeps the session artifact as a hash under user:session:<id>.
type SessionStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb, now: time.Now}
}

func (s *SessionStore) Save(ctx context.Context, accountID, sessionID, ip string, ttl time.Duration) error {
	key := helpers.KeySession(accountID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, map[string]any{
			"user_id":    accountID,
			"sid":        sessionID,
			"ip":         ip,
			"created_at": s.now().UTC().Format(time.RFC3339),
		})
		p.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *SessionStore) Active(ctx context.Context, accountID, sessionID string) (bool, error) {
	sid, err := s.rdb.HGet(ctx, helpers.KeySession(accountID), "sid").Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sid == sessionID, nil
}

func (s *SessionStore) Delete(ctx context.Context, accountID string) error {
	return s.rdb.Del(ctx, helpers.KeySession(accountID)).Err()
}

var _ repository.SessionRepository = (*SessionStore)(nil)
