package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/podbudget/internal/config"
	"go.uber.org/zap"
)

const (
	keyBudgetWriteOrg   = "budget:write:org:%s"
	keyBudgetBatchLock  = "budget:batch:lock:%s"
	defaultBatchLockTTL = 30 * time.Second
)

type bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error)
}

type locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// BudgetWriteLimiter throttles budget mutations per organization and keeps
// batch updates for one organization from overlapping. A nil limiter allows
// everything.
type BudgetWriteLimiter struct {
	log    *zap.Logger
	bucket bucket
	locker locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewBudgetWriteLimiter(cfg config.Config, log *zap.Logger) (*BudgetWriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.WriteRate <= 0 || limitCfg.WriteBurst <= 0 {
		return nil, errors.New("budget write rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return newBudgetWriteLimiter(log, NewTokenBucket(client), newBatchLocker(client), limitCfg.WriteRate, limitCfg.WriteBurst), nil
}

func newBudgetWriteLimiter(log *zap.Logger, b bucket, l locker, rate float64, burst int) *BudgetWriteLimiter {
	return &BudgetWriteLimiter{
		log:     log.Named("ratelimit.budget_write"),
		bucket:  b,
		locker:  l,
		rate:    rate,
		burst:   burst,
		lockTTL: defaultBatchLockTTL,
	}
}

func (l *BudgetWriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one write token for orgID. Redis failures are logged and the
// request is let through.
func (l *BudgetWriteLimiter) Allow(ctx context.Context, orgID string) *Result {
	if !l.Enabled() {
		return &Result{Allowed: true}
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyBudgetWriteOrg, strings.TrimSpace(orgID)), l.rate, l.burst)
	if err != nil {
		l.log.Warn("budget write rate limit check failed", zap.String("org_id", orgID), zap.Error(err))
		return &Result{Allowed: true, Limit: l.burst}
	}
	return res
}

// LockBatch takes the per-organization batch lock. The returned release func
// is never nil. ok is false only when another batch holds the lock.
func (l *BudgetWriteLimiter) LockBatch(ctx context.Context, orgID string) (release func(), ok bool) {
	noop := func() {}
	if !l.Enabled() || l.locker == nil {
		return noop, true
	}

	key := fmt.Sprintf(keyBudgetBatchLock, strings.TrimSpace(orgID))
	token, acquired, err := l.locker.TryLock(ctx, key, l.lockTTL)
	if err != nil {
		l.log.Warn("budget batch lock failed", zap.String("org_id", orgID), zap.Error(err))
		return noop, true
	}
	if !acquired {
		return noop, false
	}
	return func() {
		err := l.locker.Release(context.WithoutCancel(ctx), key, token)
		switch {
		case errors.Is(err, errLeaseLost):
			l.log.Warn("budget batch outlived its lock", zap.String("org_id", orgID), zap.Duration("ttl", l.lockTTL))
		case err != nil:
			l.log.Warn("budget batch unlock failed", zap.String("org_id", orgID), zap.Error(err))
		}
	}, true
}
