package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/podbudget/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockBucket struct{ mock.Mock }

func (m *mockBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	args := m.Called(key, rate, burst)
	res, _ := args.Get(0).(*Result)
	return res, args.Error(1)
}

type mockLocker struct{ mock.Mock }

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	args := m.Called(key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockLocker) Release(ctx context.Context, key, token string) error {
	return m.Called(key, token).Error(0)
}

func TestDisabledLimiterAllows(t *testing.T) {
	l, err := NewBudgetWriteLimiter(config.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Nil(t, l)

	assert.True(t, l.Allow(context.Background(), "1").Allowed)
	release, ok := l.LockBatch(context.Background(), "1")
	assert.True(t, ok)
	release()
}

func TestNewLimiterValidatesConfig(t *testing.T) {
	_, err := NewBudgetWriteLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled: true, RedisAddr: "localhost:6379",
	}}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestAllowUsesOrgKey(t *testing.T) {
	b := &mockBucket{}
	b.On("Allow", "budget:write:org:42", 5.0, 20).Return(&Result{Allowed: false, RetryAfter: time.Second}, nil)

	l := newBudgetWriteLimiter(zaptest.NewLogger(t), b, nil, 5, 20)
	res := l.Allow(context.Background(), "42")

	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)
	b.AssertExpectations(t)
}

func TestAllowFailsOpen(t *testing.T) {
	b := &mockBucket{}
	b.On("Allow", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	l := newBudgetWriteLimiter(zaptest.NewLogger(t), b, nil, 5, 20)
	assert.True(t, l.Allow(context.Background(), "42").Allowed)
}

func TestLockBatch(t *testing.T) {
	lk := &mockLocker{}
	lk.On("TryLock", "budget:batch:lock:42").Return("tok", true, nil).Once()
	lk.On("Release", "budget:batch:lock:42", "tok").Return(nil).Once()
	lk.On("TryLock", "budget:batch:lock:43").Return("", false, nil).Once()
	lk.On("TryLock", "budget:batch:lock:44").Return("", false, errors.New("timeout")).Once()
	lk.On("TryLock", "budget:batch:lock:45").Return("late", true, nil).Once()
	lk.On("Release", "budget:batch:lock:45", "late").Return(errLeaseLost).Once()

	l := newBudgetWriteLimiter(zaptest.NewLogger(t), &mockBucket{}, lk, 5, 20)

	release, ok := l.LockBatch(context.Background(), "42")
	require.True(t, ok)
	release()

	_, ok = l.LockBatch(context.Background(), "43")
	assert.False(t, ok)

	_, ok = l.LockBatch(context.Background(), "44")
	assert.True(t, ok, "lock errors fail open")

	release, ok = l.LockBatch(context.Background(), "45")
	require.True(t, ok)
	release()

	lk.AssertExpectations(t)
}

func TestParseScriptResult(t *testing.T) {
	res, err := parseScriptResult([]interface{}{int64(1), "3.5", int64(1_700_000_000_000)}, 2, 10)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 3, res.Remaining)
	assert.Equal(t, 10, res.Limit)
	assert.Zero(t, res.RetryAfter)

	res, err = parseScriptResult([]interface{}{int64(0), "0.5", int64(1_700_000_000_000)}, 2, 10)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 250*time.Millisecond, res.RetryAfter)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000).Add(250*time.Millisecond), res.ResetTime)

	_, err = parseScriptResult([]interface{}{int64(1)}, 2, 10)
	assert.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 8*time.Second, bucketTTL(5, 20))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}
