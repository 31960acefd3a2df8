package engine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/post-scheduler/internal/model"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Post{}))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "p1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "p1")
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "p2")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "p1")
	require.NoError(t, err)
	again()
}

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl), mr
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	l, mr := newRedisLocker(t, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:post:p1"))

	_, err = l.Acquire(ctx, "p1")
	assert.ErrorIs(t, err, ErrLocked)

	release()
	assert.False(t, mr.Exists("lock:post:p1"))

	release2, err := l.Acquire(ctx, "p1")
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_ExpiredLeaseNotStolenBack(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "p1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, "p1")
	require.NoError(t, err)

	// 过期持有者释放时不能删掉新持有者的锁
	stale()
	assert.True(t, mr.Exists("lock:post:p1"))

	fresh()
	assert.False(t, mr.Exists("lock:post:p1"))
}

func TestEngine_WithRedisLocker(t *testing.T) {
	l, mr := newRedisLocker(t, time.Minute)
	store := newMemStore(scheduled("p1", "hello", -time.Hour))
	tr := newFakeTransport()
	e := newEngine(store, tr, WithLocker(l))

	res, err := e.RunCycle(context.Background(), now, "token")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Published)
	assert.False(t, mr.Exists("lock:post:p1"))

	mr.SetError("LOADING")
	o, err := e.PublishNow(context.Background(), "p1", "token")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, o.Kind)
	assert.Equal(t, 1, tr.count())
}
