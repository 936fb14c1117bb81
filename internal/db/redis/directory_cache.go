package redisdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"stocknest/internal/domain/collab"
	applog "stocknest/internal/platform/log"
)

// DirectoryCache 协作目录快照的 Redis 缓存（服务端使用）。
// 目录是幂等读，短 TTL 即可，不做主动失效。
type DirectoryCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewDirectoryCache 创建目录缓存。
func NewDirectoryCache(rdb *redis.Client, ttlSeconds int) *DirectoryCache {
	ttl := 30 * time.Second
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &DirectoryCache{
		redis:  rdb,
		ttl:    ttl,
		prefix: "inv:directory:",
	}
}

// Get 读缓存；任何错误都按未命中处理。
func (c *DirectoryCache) Get(ctx context.Context, userID string) (*collab.DirectoryContext, bool) {
	data, err := c.redis.Get(ctx, c.prefix+userID).Bytes()
	if err != nil {
		return nil, false
	}

	var dir collab.DirectoryContext
	if err := json.Unmarshal(data, &dir); err != nil {
		applog.Warn("[Directory/Cache] Failed to unmarshal cached context", "error", err)
		return nil, false
	}

	applog.Debug("[Directory/Cache] Hit", "user_id", userID)
	return &dir, true
}

// Set 写缓存；失败只记日志。
func (c *DirectoryCache) Set(ctx context.Context, userID string, dir *collab.DirectoryContext) {
	data, err := json.Marshal(dir)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.prefix+userID, data, c.ttl).Err(); err != nil {
		applog.Warn("[Directory/Cache] Failed to set cache", "user_id", userID, "error", err)
	}
}
