package linkedin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/post-scheduler/pkg/logger"
)

const profileKeyPrefix = "linkedin:profile:"

// RedisProfileCache 以令牌摘要为键缓存成员资料（cache-aside）
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisProfileCache{client: client, ttl: ttl}
}

func profileKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return profileKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *RedisProfileCache) Get(ctx context.Context, token string) (*Profile, bool) {
	data, err := c.client.Get(ctx, profileKey(token)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("profile cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil || p.Sub == "" {
		return nil, false
	}
	return &p, true
}

func (c *RedisProfileCache) Set(ctx context.Context, token string, p *Profile) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, profileKey(token), payload, c.ttl).Err(); err != nil {
		logger.Warn("profile cache write failed", zap.Error(err))
	}
}
