package data

import (
	"context"
	"fmt"

	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	"github.com/lk2023060901/course-content-backend/internal/pkg/redis"
)

// scanBatchSize SCAN 每轮游标的建议批量
const scanBatchSize = 100

// redisCache 基于 Redis 的键值缓存
type redisCache struct {
	client *redis.Client
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(client *redis.Client) biz.Cache {
	return &redisCache{client: client}
}

// DeleteByPrefix 游标扫描并批量删除前缀下的全部键
// 使用 SCAN 而非 KEYS，不阻塞整个键空间
func (c *redisCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	match := prefix + "*"

	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, scanBatchSize)
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...)
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
