package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
)

const (
	maxTitleLength     = 50
	defaultRoomLength  = 30 * time.Minute
	beginTimeTolerance = time.Minute
	inviteCodeTTL      = 50 * 24 * time.Hour
	inviteCodeAttempts = 10
)

// RoomService 负责房间的创建、加入、生命周期以及周期房间的滚动。
type RoomService struct {
	store      repository.RoomStore
	invites    repository.InviteCodeRepository
	presence   repository.PresenceRepository
	renderer   RoomRenderer
	tokens     TokenIssuer
	dispatcher TaskDispatcher
	events     RoomEventPublisher
	loc        *time.Location
	now        func() time.Time
}

// NewRoomService 创建 RoomService 实例。loc 用于周期规则中的星期与“今天”的计算。
func NewRoomService(
	store repository.RoomStore,
	invites repository.InviteCodeRepository,
	presence repository.PresenceRepository,
	renderer RoomRenderer,
	tokens TokenIssuer,
	dispatcher TaskDispatcher,
	events RoomEventPublisher,
	loc *time.Location,
) *RoomService {
	if store == nil {
		panic("RoomStore cannot be nil for RoomService")
	}
	if invites == nil || presence == nil {
		panic("redis repositories cannot be nil for RoomService")
	}
	if renderer == nil || tokens == nil {
		panic("RoomRenderer and TokenIssuer cannot be nil for RoomService")
	}
	if dispatcher == nil || events == nil {
		panic("TaskDispatcher and RoomEventPublisher cannot be nil for RoomService")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RoomService{
		store:      store,
		invites:    invites,
		presence:   presence,
		renderer:   renderer,
		tokens:     tokens,
		dispatcher: dispatcher,
		events:     events,
		loc:        loc,
		now:        time.Now,
	}
}

// WithClock 替换时钟，测试用
func (s *RoomService) WithClock(now func() time.Time) *RoomService {
	s.now = now
	return s
}

func (s *RoomService) clock() time.Time { return s.now().UTC() }

// DocInput 创建房间时附带的课件
type DocInput struct {
	DocUUID string
	DocType domain.DocType
}

// CreateRoomInput 创建普通房间的参数，EndTime 为零值时默认 BeginTime + 30 分钟
type CreateRoomInput struct {
	Title     string
	Type      domain.RoomType
	Region    domain.Region
	BeginTime time.Time
	EndTime   time.Time
	Docs      []DocInput
}

// CreateRoomResult 新建房间的标识
type CreateRoomResult struct {
	RoomUUID   string
	InviteCode string
}

// Create 创建一个普通 (非周期) 房间，房间、创建者成员和课件在同一个事务中写入。
func (s *RoomService) Create(ctx context.Context, ownerUUID string, in CreateRoomInput) (*CreateRoomResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": ownerUUID, "operation": "CreateRoom"})

	now := s.clock()
	if in.EndTime.IsZero() {
		in.EndTime = in.BeginTime.Add(defaultRoomLength)
	}
	if err := validateRoomBasics(in.Title, in.Type, in.Region); err != nil {
		logCtx.WithError(err).Info("Rejected room creation")
		return nil, err
	}
	if in.BeginTime.Before(now.Add(-beginTimeTolerance)) || in.EndTime.Before(in.BeginTime) {
		logCtx.Info("Rejected room creation: invalid time range")
		return nil, ErrParamsCheckFailed.Wrap(errors.New("invalid begin/end time"))
	}

	whiteboardUUID, err := s.renderer.CreateRoom(ctx, in.Region)
	if err != nil {
		logCtx.WithError(err).Error("Failed to create whiteboard room")
		return nil, ErrServerFail.Wrap(err)
	}

	room := &domain.Room{
		RoomUUID:           uuid.NewString(),
		OwnerUUID:          ownerUUID,
		Title:              in.Title,
		RoomType:           in.Type,
		RoomStatus:         domain.RoomStatusIdle,
		BeginTime:          in.BeginTime.UTC(),
		EndTime:            in.EndTime.UTC(),
		WhiteboardRoomUUID: whiteboardUUID,
		Region:             in.Region,
	}
	logCtx = logCtx.WithField("room_uuid", room.RoomUUID)

	err = s.store.Transaction(ctx, func(tx repository.RoomStore) error {
		if err := tx.CreateRoom(ctx, room); err != nil {
			return err
		}
		owner := domain.RoomUser{RoomUUID: room.RoomUUID, UserUUID: ownerUUID, RtcUID: newRtcUID()}
		if err := tx.AddRoomUsers(ctx, []domain.RoomUser{owner}); err != nil {
			return err
		}
		return tx.CreateRoomDocs(ctx, buildDocs(in.Docs, room.RoomUUID, ""))
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to persist new room")
		s.banWhiteboard(ctx, room.Region, whiteboardUUID)
		return nil, wrapInternal(err, "create room")
	}

	code := s.assignInviteCode(ctx, room.RoomUUID)
	logCtx.WithField("invite_code", code).Info("Room created successfully")
	return &CreateRoomResult{RoomUUID: room.RoomUUID, InviteCode: code}, nil
}

// RoomInfo 房间详情
type RoomInfo struct {
	RoomUUID     string
	PeriodicUUID string
	OwnerUUID    string
	Title        string
	RoomType     domain.RoomType
	RoomStatus   domain.RoomStatus
	Region       domain.Region
	BeginTime    time.Time
	EndTime      time.Time
	InviteCode   string
	OnlineCount  int64
}

// Info 返回房间详情，调用者必须是房间成员。
func (s *RoomService) Info(ctx context.Context, roomUUID, userUUID string) (*RoomInfo, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "room_uuid": roomUUID})

	if _, err := s.store.FindRoomUser(ctx, roomUUID, userUUID); err != nil {
		return nil, s.roomLookupError(logCtx, err)
	}
	room, err := s.store.FindRoom(ctx, roomUUID)
	if err != nil {
		return nil, s.roomLookupError(logCtx, err)
	}

	online, err := s.presence.Count(ctx, roomUUID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to count online members")
	}
	return &RoomInfo{
		RoomUUID:     room.RoomUUID,
		PeriodicUUID: room.PeriodicUUID,
		OwnerUUID:    room.OwnerUUID,
		Title:        room.Title,
		RoomType:     room.RoomType,
		RoomStatus:   room.RoomStatus,
		Region:       room.Region,
		BeginTime:    room.BeginTime,
		EndTime:      room.EndTime,
		InviteCode:   s.inviteCodeOf(ctx, room.RoomUUID),
		OnlineCount:  online,
	}, nil
}

// List 列出用户参与的房间
func (s *RoomService) List(ctx context.Context, userUUID string, filter repository.RoomListFilter, page, size int) ([]domain.Room, error) {
	switch filter {
	case repository.RoomListAll, repository.RoomListToday, repository.RoomListPeriodic, repository.RoomListHistory:
	default:
		return nil, ErrParamsCheckFailed.Wrap(fmt.Errorf("unknown filter %q", filter))
	}
	if page < 1 || size < 1 || size > 50 {
		return nil, ErrParamsCheckFailed.Wrap(errors.New("invalid page or size"))
	}

	local := s.clock().In(s.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	rooms, err := s.store.ListUserRooms(ctx, repository.RoomListQuery{
		UserUUID: userUUID,
		Filter:   filter,
		Page:     page,
		Size:     size,
		DayStart: dayStart.UTC(),
		DayEnd:   dayStart.AddDate(0, 0, 1).UTC(),
	})
	if err != nil {
		logrus.WithField("user_uuid", userUUID).WithError(err).Error("Failed to list rooms")
		return nil, wrapInternal(err, "list rooms")
	}
	return rooms, nil
}

// --- 私有辅助函数 ---

func validateRoomBasics(title string, roomType domain.RoomType, region domain.Region) error {
	if err := validateTitleAndType(title, roomType); err != nil {
		return err
	}
	if !region.Valid() {
		return ErrParamsCheckFailed.Wrap(fmt.Errorf("invalid region %q", region))
	}
	return nil
}

func validateTitleAndType(title string, roomType domain.RoomType) error {
	if n := utf8.RuneCountInString(title); n == 0 || n > maxTitleLength {
		return ErrParamsCheckFailed.Wrap(errors.New("invalid title"))
	}
	if !roomType.Valid() {
		return ErrParamsCheckFailed.Wrap(fmt.Errorf("invalid room type %q", roomType))
	}
	return nil
}

func buildDocs(docs []DocInput, roomUUID, periodicUUID string) []domain.RoomDoc {
	rows := make([]domain.RoomDoc, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, domain.RoomDoc{
			DocUUID:      d.DocUUID,
			RoomUUID:     roomUUID,
			PeriodicUUID: periodicUUID,
			DocType:      d.DocType,
		})
	}
	return rows
}

// roomLookupError 把仓库层的 not found 映射成 RoomNotFound
func (s *RoomService) roomLookupError(logCtx *logrus.Entry, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		logCtx.Info("Room not found")
		return ErrRoomNotFound
	}
	logCtx.WithError(err).Error("Failed to load room")
	return wrapInternal(err, "load room")
}

// randomDigits 生成首位非 0 的 n 位数字串
func randomDigits(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		limit := int64(10)
		if i == 0 {
			limit = 9
		}
		v, err := rand.Int(rand.Reader, big.NewInt(limit))
		if err != nil {
			return "", err
		}
		if i == 0 {
			v.Add(v, big.NewInt(1))
		}
		b[i] = byte('0' + v.Int64())
	}
	return string(b), nil
}

// newRtcUID 音视频层使用的 10 位数字身份
func newRtcUID() string {
	uid, err := randomDigits(10)
	if err != nil {
		// 系统随机数不可用时退化为时间戳，仍然是 10 位数字
		return fmt.Sprintf("%010d", time.Now().UnixNano()%9000000000+1000000000)
	}
	return uid
}

// isInviteCode 邀请码是 10 位纯数字
func isInviteCode(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// assignInviteCode 为房间分配邀请码，任何失败都退化为直接使用 roomUUID
func (s *RoomService) assignInviteCode(ctx context.Context, roomUUID string) string {
	logCtx := logrus.WithField("room_uuid", roomUUID)
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := randomDigits(10)
		if err != nil {
			logCtx.WithError(err).Warn("Failed to generate invite code, falling back to room uuid")
			return roomUUID
		}
		ok, err := s.invites.Reserve(ctx, code, roomUUID, inviteCodeTTL)
		if err != nil {
			logCtx.WithError(err).Warn("Failed to reserve invite code, falling back to room uuid")
			return roomUUID
		}
		if ok {
			return code
		}
		logCtx.WithField("invite_code", code).Debugf("Invite code taken, retrying (attempt %d)", attempt+1)
	}
	logCtx.Warnf("No free invite code after %d attempts, falling back to room uuid", inviteCodeAttempts)
	return roomUUID
}

func (s *RoomService) inviteCodeOf(ctx context.Context, roomUUID string) string {
	code, err := s.invites.CodeOf(ctx, roomUUID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logrus.WithField("room_uuid", roomUUID).WithError(err).Warn("Failed to load invite code")
		}
		return roomUUID
	}
	return code
}

// publish 事件广播失败只记录日志
func (s *RoomService) publish(ctx context.Context, event domain.RoomEvent) {
	event.At = s.clock()
	if err := s.events.PublishRoomEvent(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{"room_uuid": event.RoomUUID, "event": event.Type}).
			WithError(err).Warn("Failed to publish room event")
	}
}
