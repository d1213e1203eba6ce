package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// releaseLease deletes KEYS[1] only while it still holds our token.
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var (
	errLockUnavailable = errors.New("batch lock store not configured")
	errLeaseLost       = errors.New("batch lock expired before release")
)

// batchLocker hands out one lease per key. A lease outliving its ttl is lost
// and the next batch for the organization may already be running.
type batchLocker struct {
	client redis.UniversalClient
}

func newBatchLocker(client redis.UniversalClient) *batchLocker {
	if client == nil {
		return nil
	}
	return &batchLocker{client: client}
}

func (l *batchLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil {
		return "", false, errLockUnavailable
	}
	if key == "" || ttl <= 0 {
		return "", false, errors.New("batch lock needs a key and a positive ttl")
	}
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !acquired {
		return "", false, err
	}
	return token, true, nil
}

// Release drops the lease. It returns errLeaseLost when the key expired or
// was taken by another holder first.
func (l *batchLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || token == "" {
		return nil
	}
	deleted, err := releaseLease.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return errLeaseLost
	}
	return nil
}
