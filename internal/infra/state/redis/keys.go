// Package redisstate 实现基于 Redis 的临时状态：上传握手、邀请码、在线成员以及房间事件广播。
package redisstate

import "fmt"

const defaultKeyPrefix = "flat:"

type keys struct {
	prefix string
}

func newKeys(prefix string) keys {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return keys{prefix: prefix}
}

func (k keys) upload(userUUID, fileUUID string) string {
	return fmt.Sprintf("%scloudStorage:%s:%s", k.prefix, userUUID, fileUUID)
}

func (k keys) uploadPattern(userUUID string) string {
	return fmt.Sprintf("%scloudStorage:%s:*", k.prefix, userUUID)
}

func (k keys) invite(code string) string {
	return fmt.Sprintf("%sroom:invite:%s", k.prefix, code)
}

func (k keys) inviteReverse(roomUUID string) string {
	return fmt.Sprintf("%sroom:inviteReverse:%s", k.prefix, roomUUID)
}

func (k keys) online(roomUUID string) string {
	return fmt.Sprintf("%sonline:%s", k.prefix, roomUUID)
}

func (k keys) roomEvents(roomUUID string) string {
	return fmt.Sprintf("%sroom:%s:events", k.prefix, roomUUID)
}

func (k keys) roomEventsPattern() string {
	return k.prefix + "room:*:events"
}

// roomOfEventChannel 从频道名中取出 roomUUID，格式不符时返回空串
func (k keys) roomOfEventChannel(channel string) string {
	head := k.prefix + "room:"
	const tail = ":events"
	if len(channel) <= len(head)+len(tail) || channel[:len(head)] != head || channel[len(channel)-len(tail):] != tail {
		return ""
	}
	return channel[len(head) : len(channel)-len(tail)]
}
