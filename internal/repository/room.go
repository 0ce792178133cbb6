package repository

import (
	"context"
	"time"

	"github.com/netless-io/flat-server-sub001/internal/domain"
)

// RoomStatusUpdate 状态变更时一起写入的时间字段，nil 表示不修改
type RoomStatusUpdate struct {
	Status    domain.RoomStatus
	BeginTime *time.Time
	EndTime   *time.Time
}

// RoomUpdate 编辑房间时写入的字段，空值表示不修改
type RoomUpdate struct {
	Title     string
	RoomType  domain.RoomType
	BeginTime time.Time
	EndTime   time.Time
}

// RoomListFilter 房间列表的筛选方式
type RoomListFilter string

const (
	RoomListAll      RoomListFilter = "all"
	RoomListToday    RoomListFilter = "today"
	RoomListPeriodic RoomListFilter = "periodic"
	RoomListHistory  RoomListFilter = "history"
)

// RoomListQuery 查询某个用户参与的房间
type RoomListQuery struct {
	UserUUID string
	Filter   RoomListFilter
	Page     int
	Size     int
	// today 筛选使用的当日范围 [DayStart, DayEnd)
	DayStart time.Time
	DayEnd   time.Time
}

// RoomStore 定义了房间、周期系列以及成员关系的存储操作。
// 所有 Find 方法都会过滤掉 is_delete 的行，找不到时返回 ErrNotFound。
type RoomStore interface {
	// Transaction 在一个数据库事务中执行 fn，fn 返回错误时整体回滚。
	// fn 内必须只使用传入的 tx。
	Transaction(ctx context.Context, fn func(tx RoomStore) error) error

	// === Room ===
	CreateRoom(ctx context.Context, room *domain.Room) error
	FindRoom(ctx context.Context, roomUUID string) (*domain.Room, error)
	// FindRoomForUpdate 同 FindRoom，但在事务中对该行加写锁 (SELECT ... FOR UPDATE)
	FindRoomForUpdate(ctx context.Context, roomUUID string) (*domain.Room, error)
	FindRooms(ctx context.Context, roomUUIDs []string) ([]domain.Room, error)
	// FindLiveRoomByPeriodic 查找周期系列当前处于 Idle/Started/Paused 的那一节课
	FindLiveRoomByPeriodic(ctx context.Context, periodicUUID string) (*domain.Room, error)
	UpdateRoomStatus(ctx context.Context, roomUUID string, update RoomStatusUpdate) error
	UpdateRoom(ctx context.Context, roomUUID string, update RoomUpdate) error
	SoftDeleteRoom(ctx context.Context, roomUUID string) error
	ListUserRooms(ctx context.Context, query RoomListQuery) ([]domain.Room, error)

	// === Periodic ===
	CreatePeriodicConfig(ctx context.Context, config *domain.RoomPeriodicConfig) error
	FindPeriodicConfig(ctx context.Context, periodicUUID string) (*domain.RoomPeriodicConfig, error)
	// SavePeriodicConfig 按 periodic_uuid 覆盖规则字段 (标题、类型、rate、结束日期、原始时间)
	SavePeriodicConfig(ctx context.Context, config *domain.RoomPeriodicConfig) error
	// UpdatePeriodicStatus 仅当当前状态为 from 时才修改为 to，返回是否有行被修改
	UpdatePeriodicStatus(ctx context.Context, periodicUUID string, from, to domain.PeriodicStatus) (bool, error)
	CreatePeriodics(ctx context.Context, periodics []domain.RoomPeriodic) error
	FindPeriodic(ctx context.Context, fakeRoomUUID string) (*domain.RoomPeriodic, error)
	ListPeriodics(ctx context.Context, periodicUUID string) ([]domain.RoomPeriodic, error)
	UpdatePeriodicRoom(ctx context.Context, fakeRoomUUID string, update RoomStatusUpdate) error
	UpdatePeriodicTimes(ctx context.Context, fakeRoomUUID string, begin, end time.Time) error
	// SoftDeletePendingPeriodics 逻辑删除系列中所有未结束的计划课次
	SoftDeletePendingPeriodics(ctx context.Context, periodicUUID string) error
	// FindNextPeriodic 下一节待物化的课: 状态 Idle，end_time >= after，按 end_time、id 升序取第一条
	FindNextPeriodic(ctx context.Context, periodicUUID, excludeFakeRoomUUID string, after time.Time) (*domain.RoomPeriodic, error)

	// === Members ===
	// AddRoomUsers 幂等插入成员，已存在的成员保持原来的 rtc_uid (被取消过的成员恢复可见)
	AddRoomUsers(ctx context.Context, users []domain.RoomUser) error
	FindRoomUser(ctx context.Context, roomUUID, userUUID string) (*domain.RoomUser, error)
	// RemoveRoomUsers 逻辑删除成员，userUUIDs 为空时删除房间的全部成员
	RemoveRoomUsers(ctx context.Context, roomUUID string, userUUIDs []string) error
	// MoveRoomUsers 把成员整体转移到另一个房间
	MoveRoomUsers(ctx context.Context, fromRoomUUID, toRoomUUID string) error
	AddPeriodicUsers(ctx context.Context, users []domain.RoomPeriodicUser) error
	ListPeriodicUsers(ctx context.Context, periodicUUID string) ([]domain.RoomPeriodicUser, error)
	RemovePeriodicUsers(ctx context.Context, periodicUUID string, userUUIDs []string) error

	// === Docs ===
	CreateRoomDocs(ctx context.Context, docs []domain.RoomDoc) error
	ListPeriodicDocs(ctx context.Context, periodicUUID string) ([]domain.RoomDoc, error)
	RemovePeriodicDocs(ctx context.Context, periodicUUID string, docUUIDs []string) error
}
