package redisstate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisPresenceRepository 在线成员集合，score 为加入时间 (毫秒)
type RedisPresenceRepository struct {
	client *redis.Client
	keys   keys
}

// NewRedisPresenceRepository 创建 RedisPresenceRepository 实例
func NewRedisPresenceRepository(client *redis.Client, keyPrefix string) *RedisPresenceRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisPresenceRepository")
	}
	return &RedisPresenceRepository{client: client, keys: newKeys(keyPrefix)}
}

func (r *RedisPresenceRepository) Join(ctx context.Context, roomUUID, userUUID string, at time.Time) error {
	key := r.keys.online(roomUUID)
	err := r.client.ZAdd(ctx, key, &redis.Z{Score: float64(at.UnixMilli()), Member: userUUID}).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to add %s to %s: %w", userUUID, key, err)
	}
	return nil
}

func (r *RedisPresenceRepository) Leave(ctx context.Context, roomUUID, userUUID string) error {
	key := r.keys.online(roomUUID)
	if err := r.client.ZRem(ctx, key, userUUID).Err(); err != nil {
		return fmt.Errorf("redis: failed to remove %s from %s: %w", userUUID, key, err)
	}
	return nil
}

func (r *RedisPresenceRepository) Count(ctx context.Context, roomUUID string) (int64, error) {
	key := r.keys.online(roomUUID)
	n, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to count %s: %w", key, err)
	}
	return n, nil
}
