package domain

import "time"

// RoomEventType 房间事件类型
type RoomEventType string

const (
	RoomEventStatus       RoomEventType = "room-status"
	RoomEventNextRoom     RoomEventType = "next-room"
	RoomEventCancelled    RoomEventType = "room-cancelled"
	RoomEventUpdated      RoomEventType = "room-updated"
	RoomEventMemberJoined RoomEventType = "member-joined"
	RoomEventMemberLeft   RoomEventType = "member-left"
)

// RoomEvent 推送给房间内 websocket 连接的事件
type RoomEvent struct {
	Type       RoomEventType `json:"type"`
	RoomUUID   string        `json:"roomUUID"`
	RoomStatus RoomStatus    `json:"roomStatus,omitempty"`
	UserUUID   string        `json:"userUUID,omitempty"`
	// NextRoomUUID 周期房间结束后滚动出的下一节课
	NextRoomUUID string    `json:"nextRoomUUID,omitempty"`
	Online       int64     `json:"online,omitempty"`
	At           time.Time `json:"at"`
}
