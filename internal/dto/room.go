// Package dto 定义 HTTP 接口的请求与响应结构
package dto

import "time"

// DocDTO 房间课件
type DocDTO struct {
	UUID string `json:"uuid" binding:"required,max=40"`
	Type string `json:"type" binding:"required,oneof=Dynamic Static"`
}

// CreateRoomRequest 创建普通房间。beginTime/endTime 为毫秒时间戳，endTime 可省略。
type CreateRoomRequest struct {
	Title     string   `json:"title" binding:"required,max=150"`
	Type      string   `json:"type" binding:"required,oneof=OneToOne SmallClass BigClass"`
	Region    string   `json:"region" binding:"required"`
	BeginTime int64    `json:"beginTime" binding:"required,gt=0"`
	EndTime   int64    `json:"endTime" binding:"omitempty,gt=0"`
	Docs      []DocDTO `json:"docs" binding:"omitempty,max=10,dive"`
}

// PeriodicDTO 周期规则，rate 与 endTime 只能提供一个
type PeriodicDTO struct {
	Weeks   []int `json:"weeks" binding:"required,min=1,max=7,weekdays"`
	Rate    int   `json:"rate" binding:"omitempty,min=1,max=50"`
	EndTime int64 `json:"endTime" binding:"omitempty,gt=0"`
}

// ScheduleRoomRequest 创建周期房间
type ScheduleRoomRequest struct {
	Title     string      `json:"title" binding:"required,max=150"`
	Type      string      `json:"type" binding:"required,oneof=OneToOne SmallClass BigClass"`
	Region    string      `json:"region" binding:"required"`
	BeginTime int64       `json:"beginTime" binding:"required,gt=0"`
	EndTime   int64       `json:"endTime" binding:"required,gt=0"`
	Periodic  PeriodicDTO `json:"periodic" binding:"required"`
	Docs      []DocDTO    `json:"docs" binding:"omitempty,max=10,dive"`
}

// CreateRoomResponse 新建房间
type CreateRoomResponse struct {
	RoomUUID     string `json:"roomUUID"`
	PeriodicUUID string `json:"periodicUUID,omitempty"`
	InviteCode   string `json:"inviteCode"`
}

// RoomUUIDRequest 只携带 roomUUID 的请求
type RoomUUIDRequest struct {
	RoomUUID string `json:"roomUUID" binding:"required,max=40"`
}

// JoinRoomRequest uuid 可以是 roomUUID、periodicUUID 或邀请码
type JoinRoomRequest struct {
	UUID string `json:"uuid" binding:"required,max=40"`
}

// JoinRoomResponse 加入房间
type JoinRoomResponse struct {
	RoomUUID            string `json:"roomUUID"`
	PeriodicUUID        string `json:"periodicUUID,omitempty"`
	OwnerUUID           string `json:"ownerUUID"`
	RoomType            string `json:"roomType"`
	Region              string `json:"region"`
	WhiteboardRoomUUID  string `json:"whiteboardRoomUUID"`
	WhiteboardRoomToken string `json:"whiteboardRoomToken"`
	RtcUID              string `json:"rtcUID"`
	RtcToken            string `json:"rtcToken"`
	RtmToken            string `json:"rtmToken"`
}

// RoomInfoResponse 房间详情
type RoomInfoResponse struct {
	RoomUUID     string    `json:"roomUUID"`
	PeriodicUUID string    `json:"periodicUUID,omitempty"`
	OwnerUUID    string    `json:"ownerUUID"`
	Title        string    `json:"title"`
	RoomType     string    `json:"roomType"`
	RoomStatus   string    `json:"roomStatus"`
	Region       string    `json:"region"`
	BeginTime    time.Time `json:"beginTime"`
	EndTime      time.Time `json:"endTime"`
	InviteCode   string    `json:"inviteCode"`
	OnlineCount  int64     `json:"onlineCount"`
}

// RoomListItem 房间列表项
type RoomListItem struct {
	RoomUUID     string    `json:"roomUUID"`
	PeriodicUUID string    `json:"periodicUUID,omitempty"`
	OwnerUUID    string    `json:"ownerUUID"`
	Title        string    `json:"title"`
	RoomType     string    `json:"roomType"`
	RoomStatus   string    `json:"roomStatus"`
	BeginTime    time.Time `json:"beginTime"`
	EndTime      time.Time `json:"endTime"`
}

// PeriodicRoomItem 周期系列中的一节课
type PeriodicRoomItem struct {
	RoomUUID   string    `json:"roomUUID"`
	RoomStatus string    `json:"roomStatus"`
	BeginTime  time.Time `json:"beginTime"`
	EndTime    time.Time `json:"endTime"`
}

// PeriodicInfoResponse 周期系列详情
type PeriodicInfoResponse struct {
	PeriodicUUID   string             `json:"periodicUUID"`
	OwnerUUID      string             `json:"ownerUUID"`
	Title          string             `json:"title"`
	RoomType       string             `json:"roomType"`
	Region         string             `json:"region"`
	Rate           int                `json:"rate,omitempty"`
	EndTime        time.Time          `json:"endTime"`
	PeriodicStatus string             `json:"periodicStatus"`
	Rooms          []PeriodicRoomItem `json:"rooms"`
}

// BanRoomsRequest 管理员批量封禁
type BanRoomsRequest struct {
	RoomUUIDs []string `json:"roomUUIDs" binding:"required,min=1,max=50,dive,required"`
}

// BanRoomsResponse 实际被封禁的房间
type BanRoomsResponse struct {
	Banned []string `json:"banned"`
}

// PeriodicUUIDRequest 只携带 periodicUUID 的请求
type PeriodicUUIDRequest struct {
	PeriodicUUID string `json:"periodicUUID" binding:"required,max=40"`
}

// RoomListQuery 房间列表分页参数
type RoomListQuery struct {
	Page int `form:"page" binding:"required,min=1"`
	Size int `form:"size" binding:"omitempty,min=1,max=50"`
}

// UpdateOrdinaryRequest 编辑普通房间
type UpdateOrdinaryRequest struct {
	RoomUUID  string `json:"roomUUID" binding:"required,max=40"`
	Title     string `json:"title" binding:"required,max=150"`
	Type      string `json:"type" binding:"required,oneof=OneToOne SmallClass BigClass"`
	BeginTime int64  `json:"beginTime" binding:"required,gt=0"`
	EndTime   int64  `json:"endTime" binding:"required,gt=0"`
}

// UpdatePeriodicRequest 编辑整个周期系列，规则同创建
type UpdatePeriodicRequest struct {
	PeriodicUUID string      `json:"periodicUUID" binding:"required,max=40"`
	Title        string      `json:"title" binding:"required,max=150"`
	Type         string      `json:"type" binding:"required,oneof=OneToOne SmallClass BigClass"`
	BeginTime    int64       `json:"beginTime" binding:"required,gt=0"`
	EndTime      int64       `json:"endTime" binding:"required,gt=0"`
	Periodic     PeriodicDTO `json:"periodic" binding:"required"`
	Docs         []DocDTO    `json:"docs" binding:"omitempty,max=10,dive"`
}

// UpdatePeriodicSubRoomRequest 修改系列中某一节课的时间
type UpdatePeriodicSubRoomRequest struct {
	PeriodicUUID string `json:"periodicUUID" binding:"required,max=40"`
	RoomUUID     string `json:"roomUUID" binding:"required,max=40"`
	BeginTime    int64  `json:"beginTime" binding:"required,gt=0"`
	EndTime      int64  `json:"endTime" binding:"required,gt=0"`
}
