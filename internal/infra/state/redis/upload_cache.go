package redisstate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
)

const (
	fieldFileName      = "fileName"
	fieldFileSize      = "fileSize"
	fieldTargetDirPath = "targetDirectoryPath"
	fieldResourceType  = "fileResourceType"
	fieldOSSFilePath   = "ossFilePath"
)

// RedisUploadCache 是 UploadCache 接口的 Redis 实现，每个上传一个 Hash
type RedisUploadCache struct {
	client *redis.Client
	keys   keys
}

// NewRedisUploadCache 创建 RedisUploadCache 实例
func NewRedisUploadCache(client *redis.Client, keyPrefix string) *RedisUploadCache {
	if client == nil {
		panic("redis client cannot be nil for RedisUploadCache")
	}
	return &RedisUploadCache{client: client, keys: newKeys(keyPrefix)}
}

func (c *RedisUploadCache) SaveUpload(ctx context.Context, userUUID, fileUUID string, info repository.UploadInfo, ttl time.Duration) error {
	key := c.keys.upload(userUUID, fileUUID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key,
		fieldFileName, info.FileName,
		fieldFileSize, strconv.FormatInt(info.FileSize, 10),
		fieldTargetDirPath, info.TargetDirectoryPath,
		fieldResourceType, string(info.FileResourceType),
		fieldOSSFilePath, info.OSSFilePath,
	)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to save upload %s: %w", key, err)
	}
	return nil
}

func (c *RedisUploadCache) GetUpload(ctx context.Context, userUUID, fileUUID string) (*repository.UploadInfo, error) {
	key := c.keys.upload(userUUID, fileUUID)
	values, err := c.client.HMGet(ctx, key, fieldFileName, fieldFileSize, fieldTargetDirPath, fieldResourceType, fieldOSSFilePath).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get upload %s: %w", key, err)
	}
	fields := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, repository.ErrNotFound
		}
		fields[i] = s
	}
	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return &repository.UploadInfo{
		FileName:            fields[0],
		FileSize:            size,
		TargetDirectoryPath: fields[2],
		FileResourceType:    domain.FileResourceType(fields[3]),
		OSSFilePath:         fields[4],
	}, nil
}

func (c *RedisUploadCache) DeleteUploads(ctx context.Context, userUUID string, fileUUIDs ...string) error {
	var keys []string
	if len(fileUUIDs) == 0 {
		found, err := c.scanUploadKeys(ctx, userUUID, 0)
		if err != nil {
			return err
		}
		keys = found
	} else {
		for _, fileUUID := range fileUUIDs {
			keys = append(keys, c.keys.upload(userUUID, fileUUID))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete %d uploads of user %s: %w", len(keys), userUUID, err)
	}
	return nil
}

func (c *RedisUploadCache) InFlightUploads(ctx context.Context, userUUID string, limit int) ([]repository.InFlightUpload, error) {
	keys, err := c.scanUploadKeys(ctx, userUUID, limit)
	if err != nil || len(keys) == 0 {
		return nil, err
	}

	pipe := c.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGet(ctx, key, fieldFileSize)
	}
	// 扫描到执行之间 key 可能过期，单条 redis.Nil 不算失败
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis: failed to read in-flight uploads of user %s: %w", userUUID, err)
	}

	uploads := make([]repository.InFlightUpload, 0, len(keys))
	for i, cmd := range cmds {
		size, err := cmd.Int64()
		if err != nil {
			continue
		}
		uploads = append(uploads, repository.InFlightUpload{
			FileUUID: keys[i][strings.LastIndex(keys[i], ":")+1:],
			FileSize: size,
		})
	}
	return uploads, nil
}

// scanUploadKeys limit <= 0 表示不限制
func (c *RedisUploadCache) scanUploadKeys(ctx context.Context, userUUID string, limit int) ([]string, error) {
	pattern := c.keys.uploadPattern(userUUID)
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: failed to scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		if limit > 0 && len(keys) >= limit {
			return keys[:limit], nil
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
