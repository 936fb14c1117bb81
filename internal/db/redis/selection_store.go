// Package redisdb Redis 持久化：共用终端/一体机部署下的选择存储，
// 以及服务端的协作目录缓存。
package redisdb

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// SelectionStore Redis 实现，满足 session.SelectionStore。
// key 按登录用户分隔；不设 TTL，选择只被显式覆盖。
type SelectionStore struct {
	redis  *redis.Client
	prefix string
}

// NewSelectionStore 创建 Redis 选择存储。
func NewSelectionStore(rdb *redis.Client) *SelectionStore {
	return &SelectionStore{
		redis:  rdb,
		prefix: "inv:selected:",
	}
}

// Get 返回 userID 上次选中的拥有者 id；无记录返回空字符串。
func (s *SelectionStore) Get(ctx context.Context, userID string) (string, error) {
	val, err := s.redis.Get(ctx, s.prefix+userID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("selection store: get: %w", err)
	}
	return val, nil
}

// Set 记录 userID 的选择。
func (s *SelectionStore) Set(ctx context.Context, userID, ownerID string) error {
	if err := s.redis.Set(ctx, s.prefix+userID, ownerID, 0).Err(); err != nil {
		return fmt.Errorf("selection store: set: %w", err)
	}
	return nil
}
