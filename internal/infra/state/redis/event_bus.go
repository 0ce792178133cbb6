package redisstate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
)

// RedisRoomEventBus 通过 Redis Pub/Sub 在多个实例之间广播房间事件
type RedisRoomEventBus struct {
	client *redis.Client
	keys   keys
}

// NewRedisRoomEventBus 创建 RedisRoomEventBus 实例
func NewRedisRoomEventBus(client *redis.Client, keyPrefix string) *RedisRoomEventBus {
	if client == nil {
		panic("redis client cannot be nil for RedisRoomEventBus")
	}
	return &RedisRoomEventBus{client: client, keys: newKeys(keyPrefix)}
}

// PublishRoomEvent 将事件发布到房间对应的频道
func (b *RedisRoomEventBus) PublishRoomEvent(ctx context.Context, event domain.RoomEvent) error {
	channel := b.keys.roomEvents(event.RoomUUID)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal room event %s: %w", event.Type, err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"event":        event.Type,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish room event to channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe 订阅所有房间的事件，直到 ctx 结束。handler 收到的是原始 JSON。
func (b *RedisRoomEventBus) Subscribe(ctx context.Context, handler func(roomUUID string, payload []byte)) error {
	pattern := b.keys.roomEventsPattern()
	pubsub := b.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	// 等待订阅确认，保证返回前的事件不会丢
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: failed to psubscribe %s: %w", pattern, err)
	}
	logrus.WithField("pattern", pattern).Info("Subscribed to room events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			roomUUID := b.keys.roomOfEventChannel(msg.Channel)
			if roomUUID == "" {
				logrus.WithField("channel", msg.Channel).Warn("Ignoring message from unexpected channel")
				continue
			}
			handler(roomUUID, []byte(msg.Payload))
		}
	}
}
