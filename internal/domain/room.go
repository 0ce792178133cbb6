package domain

import "time"

// Room 表示一节具体的课 (普通房间，或周期房间中已经物化出来的那一次)。
type Room struct {
	Base
	RoomUUID           string     `gorm:"column:room_uuid;type:varchar(40);uniqueIndex;not null"`
	PeriodicUUID       string     `gorm:"column:periodic_uuid;type:varchar(40);index;not null"` // 空串表示非周期房间
	OwnerUUID          string     `gorm:"column:owner_uuid;type:varchar(40);index;not null"`
	Title              string     `gorm:"type:varchar(150);not null"`
	RoomType           RoomType   `gorm:"column:room_type;type:varchar(20);not null"`
	RoomStatus         RoomStatus `gorm:"column:room_status;type:varchar(20);index;not null"`
	BeginTime          time.Time  `gorm:"column:begin_time;not null"`
	EndTime            time.Time  `gorm:"column:end_time;not null"`
	WhiteboardRoomUUID string     `gorm:"column:whiteboard_room_uuid;type:varchar(40);not null"`
	Region             Region     `gorm:"type:varchar(10);not null"`
}

// IsPeriodic 是否属于某个周期系列
func (r *Room) IsPeriodic() bool { return r.PeriodicUUID != "" }

// RoomPeriodicConfig 周期房间的重复规则，每个系列一行。
// Rate 与 EndTime 只有一个有意义：Rate > 0 时按次数，否则按结束日期。
type RoomPeriodicConfig struct {
	Base
	PeriodicUUID string    `gorm:"column:periodic_uuid;type:varchar(40);uniqueIndex;not null"`
	OwnerUUID    string    `gorm:"column:owner_uuid;type:varchar(40);index;not null"`
	Title        string    `gorm:"type:varchar(150);not null"`
	RoomType     RoomType  `gorm:"column:room_type;type:varchar(20);not null"`
	Region       Region    `gorm:"type:varchar(10);not null"`
	Rate         int       `gorm:"not null"`
	EndTime      time.Time `gorm:"column:end_time;not null"` // 系列的最后日期
	// 创建或最近一次编辑时第一节课的时间，编辑系列时用来判断时间是否被修改
	OriginBeginTime time.Time      `gorm:"column:origin_begin_time;not null"`
	OriginEndTime   time.Time      `gorm:"column:origin_end_time;not null"`
	PeriodicStatus  PeriodicStatus `gorm:"column:periodic_status;type:varchar(20);not null"`
}

// RoomPeriodic 周期系列中的一次计划课程 (占位行)。
// FakeRoomUUID 在物化为 Room 时直接作为 Room.RoomUUID 使用。
type RoomPeriodic struct {
	Base
	PeriodicUUID string     `gorm:"column:periodic_uuid;type:varchar(40);index;not null"`
	FakeRoomUUID string     `gorm:"column:fake_room_uuid;type:varchar(40);uniqueIndex;not null"`
	RoomStatus   RoomStatus `gorm:"column:room_status;type:varchar(20);not null"`
	BeginTime    time.Time  `gorm:"column:begin_time;not null"`
	EndTime      time.Time  `gorm:"column:end_time;index;not null"`
}

// RoomUser 房间成员
type RoomUser struct {
	Base
	RoomUUID string `gorm:"column:room_uuid;type:varchar(40);uniqueIndex:idx_room_user;not null"`
	UserUUID string `gorm:"column:user_uuid;type:varchar(40);uniqueIndex:idx_room_user;index;not null"`
	RtcUID   string `gorm:"column:rtc_uid;type:varchar(10);not null"` // 交给音视频层使用的数字身份
}

// RoomPeriodicUser 周期系列成员，滚动到下一节课时会复制到 RoomUser
type RoomPeriodicUser struct {
	Base
	PeriodicUUID string `gorm:"column:periodic_uuid;type:varchar(40);uniqueIndex:idx_periodic_user;not null"`
	UserUUID     string `gorm:"column:user_uuid;type:varchar(40);uniqueIndex:idx_periodic_user;not null"`
}

// RoomDoc 房间 (或整个周期系列) 关联的课件
type RoomDoc struct {
	Base
	DocUUID      string  `gorm:"column:doc_uuid;type:varchar(40);index;not null"`
	RoomUUID     string  `gorm:"column:room_uuid;type:varchar(40);index;not null"`
	PeriodicUUID string  `gorm:"column:periodic_uuid;type:varchar(40);index;not null"`
	DocType      DocType `gorm:"column:doc_type;type:varchar(20);not null"`
	IsPreload    bool    `gorm:"column:is_preload;not null"`
}
