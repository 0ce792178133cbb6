package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// RedisInviteCodeRepository 邀请码双向映射，正反两个 key 使用相同的 TTL
type RedisInviteCodeRepository struct {
	client *redis.Client
	keys   keys
}

// NewRedisInviteCodeRepository 创建 RedisInviteCodeRepository 实例
func NewRedisInviteCodeRepository(client *redis.Client, keyPrefix string) *RedisInviteCodeRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisInviteCodeRepository")
	}
	return &RedisInviteCodeRepository{client: client, keys: newKeys(keyPrefix)}
}

func (r *RedisInviteCodeRepository) Reserve(ctx context.Context, code, roomUUID string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.keys.invite(code), roomUUID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to reserve invite code %s: %w", code, err)
	}
	if !ok {
		return false, nil
	}
	if err := r.client.Set(ctx, r.keys.inviteReverse(roomUUID), code, ttl).Err(); err != nil {
		// 反向 key 写失败时释放已占用的 code
		_ = r.client.Del(ctx, r.keys.invite(code)).Err()
		return false, fmt.Errorf("redis: failed to bind invite code %s to room %s: %w", code, roomUUID, err)
	}
	return true, nil
}

func (r *RedisInviteCodeRepository) Resolve(ctx context.Context, code string) (string, error) {
	return r.get(ctx, r.keys.invite(code))
}

func (r *RedisInviteCodeRepository) CodeOf(ctx context.Context, roomUUID string) (string, error) {
	return r.get(ctx, r.keys.inviteReverse(roomUUID))
}

func (r *RedisInviteCodeRepository) Release(ctx context.Context, roomUUID string) error {
	code, err := r.CodeOf(ctx, roomUUID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.keys.invite(code), r.keys.inviteReverse(roomUUID)).Err(); err != nil {
		return fmt.Errorf("redis: failed to release invite code of room %s: %w", roomUUID, err)
	}
	return nil
}

func (r *RedisInviteCodeRepository) get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis: failed to get %s: %w", key, err)
	}
	return value, nil
}
