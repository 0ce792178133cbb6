package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
	"github.com/netless-io/flat-server-sub001/internal/timeinterval"
)

const (
	minPeriodicRoomLength = 15 * time.Minute
	maxPeriodicRate       = 50
	maxRoomDocs           = 10
)

// ScheduleRoomInput 创建周期房间的参数。Rate 与 RecurrenceEndTime 必须且只能提供一个。
type ScheduleRoomInput struct {
	Title             string
	Type              domain.RoomType
	Region            domain.Region
	BeginTime         time.Time
	EndTime           time.Time
	Weeks             []time.Weekday
	Rate              int
	RecurrenceEndTime *time.Time
	Docs              []DocInput
}

// ScheduleRoomResult 周期房间的标识，RoomUUID 为第一节课
type ScheduleRoomResult struct {
	PeriodicUUID string
	RoomUUID     string
	InviteCode   string
	Occurrences  int
}

// Schedule 创建周期房间：立即物化第一节课，其余课次作为 Idle 占位写入 RoomPeriodic，
// 在上一节课结束时才依次物化。
func (s *RoomService) Schedule(ctx context.Context, ownerUUID string, in ScheduleRoomInput) (*ScheduleRoomResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": ownerUUID, "operation": "ScheduleRoom"})

	intervals, err := s.expandSchedule(in)
	if err != nil {
		logCtx.WithError(err).Info("Rejected periodic room creation")
		return nil, err
	}

	whiteboardUUID, err := s.renderer.CreateRoom(ctx, in.Region)
	if err != nil {
		logCtx.WithError(err).Error("Failed to create whiteboard room")
		return nil, ErrServerFail.Wrap(err)
	}

	periodicUUID := uuid.NewString()
	logCtx = logCtx.WithField("periodic_uuid", periodicUUID)

	periodics := make([]domain.RoomPeriodic, 0, len(intervals))
	for _, iv := range intervals {
		periodics = append(periodics, domain.RoomPeriodic{
			PeriodicUUID: periodicUUID,
			FakeRoomUUID: uuid.NewString(),
			RoomStatus:   domain.RoomStatusIdle,
			BeginTime:    iv.Begin.UTC(),
			EndTime:      iv.End.UTC(),
		})
	}
	first := periodics[0]

	config := &domain.RoomPeriodicConfig{
		PeriodicUUID:   periodicUUID,
		OwnerUUID:      ownerUUID,
		Title:          in.Title,
		RoomType:       in.Type,
		Region:         in.Region,
		Rate:           in.Rate,
		EndTime:        periodics[len(periodics)-1].EndTime,
		PeriodicStatus: domain.PeriodicStatusIdle,

		OriginBeginTime: first.BeginTime,
		OriginEndTime:   first.EndTime,
	}
	room := &domain.Room{
		RoomUUID:           first.FakeRoomUUID,
		PeriodicUUID:       periodicUUID,
		OwnerUUID:          ownerUUID,
		Title:              in.Title,
		RoomType:           in.Type,
		RoomStatus:         domain.RoomStatusIdle,
		BeginTime:          first.BeginTime,
		EndTime:            first.EndTime,
		WhiteboardRoomUUID: whiteboardUUID,
		Region:             in.Region,
	}

	err = s.store.Transaction(ctx, func(tx repository.RoomStore) error {
		if err := tx.CreatePeriodicConfig(ctx, config); err != nil {
			return err
		}
		if err := tx.CreatePeriodics(ctx, periodics); err != nil {
			return err
		}
		if err := tx.CreateRoom(ctx, room); err != nil {
			return err
		}
		owner := domain.RoomUser{RoomUUID: room.RoomUUID, UserUUID: ownerUUID, RtcUID: newRtcUID()}
		if err := tx.AddRoomUsers(ctx, []domain.RoomUser{owner}); err != nil {
			return err
		}
		if err := tx.AddPeriodicUsers(ctx, []domain.RoomPeriodicUser{{PeriodicUUID: periodicUUID, UserUUID: ownerUUID}}); err != nil {
			return err
		}
		return tx.CreateRoomDocs(ctx, buildDocs(in.Docs, "", periodicUUID))
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to persist periodic room")
		s.banWhiteboard(ctx, in.Region, whiteboardUUID)
		return nil, wrapInternal(err, "schedule periodic room")
	}

	code := s.assignInviteCode(ctx, room.RoomUUID)
	logCtx.WithFields(logrus.Fields{"room_uuid": room.RoomUUID, "occurrences": len(periodics)}).
		Info("Periodic room scheduled successfully")
	return &ScheduleRoomResult{
		PeriodicUUID: periodicUUID,
		RoomUUID:     room.RoomUUID,
		InviteCode:   code,
		Occurrences:  len(periodics),
	}, nil
}

// expandSchedule 校验参数并展开所有课次
func (s *RoomService) expandSchedule(in ScheduleRoomInput) ([]timeinterval.Interval, error) {
	if err := validateRoomBasics(in.Title, in.Type, in.Region); err != nil {
		return nil, err
	}
	if in.BeginTime.Before(s.clock().Add(-beginTimeTolerance)) {
		return nil, ErrParamsCheckFailed.Wrap(errors.New("begin time is in the past"))
	}
	return s.expandRule(in)
}

// expandRule 校验时长、星期、课件数量和重复规则，展开全部课次。不检查开始时间是否已过去。
func (s *RoomService) expandRule(in ScheduleRoomInput) ([]timeinterval.Interval, error) {
	if !in.BeginTime.Before(in.EndTime) {
		return nil, ErrParamsCheckFailed.Wrap(errors.New("invalid begin/end time"))
	}
	if in.EndTime.Sub(in.BeginTime) < minPeriodicRoomLength {
		return nil, ErrParamsCheckFailed.Wrap(errors.New("room is shorter than 15 minutes"))
	}
	if len(in.Weeks) == 0 || len(in.Weeks) > 7 {
		return nil, ErrParamsCheckFailed.Wrap(errors.New("weeks must contain 1 to 7 days"))
	}
	seen := make(map[time.Weekday]bool, len(in.Weeks))
	for _, w := range in.Weeks {
		if seen[w] {
			return nil, ErrParamsCheckFailed.Wrap(fmt.Errorf("duplicate weekday %d", w))
		}
		seen[w] = true
	}
	if len(in.Docs) > maxRoomDocs {
		return nil, ErrParamsCheckFailed.Wrap(errors.New("too many docs"))
	}

	var (
		intervals []timeinterval.Interval
		err       error
	)
	switch {
	case in.Rate > 0 && in.RecurrenceEndTime == nil:
		if in.Rate > maxPeriodicRate {
			return nil, ErrParamsCheckFailed.Wrap(fmt.Errorf("rate %d exceeds %d", in.Rate, maxPeriodicRate))
		}
		intervals, err = timeinterval.ByRate(in.BeginTime, in.EndTime, in.Weeks, in.Rate, s.loc)
	case in.Rate == 0 && in.RecurrenceEndTime != nil:
		until := in.RecurrenceEndTime.In(s.loc)
		endDay := in.EndTime.In(s.loc)
		if until.Before(time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 0, 0, 0, 0, s.loc)) {
			return nil, ErrParamsCheckFailed.Wrap(errors.New("recurrence end is before room end"))
		}
		intervals, err = timeinterval.ByEndTime(in.BeginTime, in.EndTime, in.Weeks, until, s.loc)
	default:
		return nil, ErrParamsCheckFailed.Wrap(errors.New("exactly one of rate and recurrence end time is required"))
	}
	if err != nil {
		return nil, ErrParamsCheckFailed.Wrap(err)
	}
	if len(intervals) == 0 {
		return nil, ErrParamsCheckFailed.Wrap(errors.New("recurrence rule yields no occurrence"))
	}
	return intervals, nil
}

// PeriodicRoom 周期系列中的一次课
type PeriodicRoom struct {
	RoomUUID   string
	RoomStatus domain.RoomStatus
	BeginTime  time.Time
	EndTime    time.Time
}

// PeriodicInfo 周期系列详情
type PeriodicInfo struct {
	PeriodicUUID   string
	OwnerUUID      string
	Title          string
	RoomType       domain.RoomType
	Region         domain.Region
	Rate           int
	EndTime        time.Time
	PeriodicStatus domain.PeriodicStatus
	Rooms          []PeriodicRoom
}

// PeriodicInfo 返回系列配置以及全部计划课次，调用者必须是系列成员。
func (s *RoomService) PeriodicInfo(ctx context.Context, periodicUUID, userUUID string) (*PeriodicInfo, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "periodic_uuid": periodicUUID})

	config, err := s.store.FindPeriodicConfig(ctx, periodicUUID)
	if err != nil {
		return nil, periodicLookupError(logCtx, err)
	}
	members, err := s.store.ListPeriodicUsers(ctx, periodicUUID)
	if err != nil {
		return nil, periodicLookupError(logCtx, err)
	}
	isMember := false
	for _, m := range members {
		if m.UserUUID == userUUID {
			isMember = true
			break
		}
	}
	if !isMember {
		logCtx.Info("Caller is not a member of the periodic room")
		return nil, ErrPeriodicNotFound
	}

	periodics, err := s.store.ListPeriodics(ctx, periodicUUID)
	if err != nil {
		return nil, periodicLookupError(logCtx, err)
	}
	info := &PeriodicInfo{
		PeriodicUUID:   config.PeriodicUUID,
		OwnerUUID:      config.OwnerUUID,
		Title:          config.Title,
		RoomType:       config.RoomType,
		Region:         config.Region,
		Rate:           config.Rate,
		EndTime:        config.EndTime,
		PeriodicStatus: config.PeriodicStatus,
		Rooms:          make([]PeriodicRoom, 0, len(periodics)),
	}
	for _, p := range periodics {
		info.Rooms = append(info.Rooms, PeriodicRoom{
			RoomUUID:   p.FakeRoomUUID,
			RoomStatus: p.RoomStatus,
			BeginTime:  p.BeginTime,
			EndTime:    p.EndTime,
		})
	}
	return info, nil
}

func periodicLookupError(logCtx *logrus.Entry, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		logCtx.Info("Periodic room not found")
		return ErrPeriodicNotFound
	}
	logCtx.WithError(err).Error("Failed to load periodic room")
	return wrapInternal(err, "load periodic room")
}

// rollover 在 tx 中物化系列的下一节课；没有剩余课次时把系列标记为 Stopped。
// 返回新房间的 UUID，系列结束时返回空串。
func (s *RoomService) rollover(ctx context.Context, tx repository.RoomStore, periodicUUID, currentRoomUUID string, now time.Time) (string, error) {
	logCtx := logrus.WithFields(logrus.Fields{"periodic_uuid": periodicUUID, "room_uuid": currentRoomUUID})

	config, err := tx.FindPeriodicConfig(ctx, periodicUUID)
	if err != nil {
		return "", fmt.Errorf("load periodic config: %w", err)
	}

	next, err := tx.FindNextPeriodic(ctx, periodicUUID, currentRoomUUID, now.Add(time.Minute))
	if errors.Is(err, repository.ErrNotFound) {
		if _, err := tx.UpdatePeriodicStatus(ctx, periodicUUID, config.PeriodicStatus, domain.PeriodicStatusStopped); err != nil {
			return "", fmt.Errorf("stop periodic series: %w", err)
		}
		logCtx.Info("Periodic series has no remaining occurrence, marked stopped")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find next occurrence: %w", err)
	}

	whiteboardUUID, err := s.renderer.CreateRoom(ctx, config.Region)
	if err != nil {
		return "", ErrServerFail.Wrap(err)
	}
	room := &domain.Room{
		RoomUUID:           next.FakeRoomUUID,
		PeriodicUUID:       periodicUUID,
		OwnerUUID:          config.OwnerUUID,
		Title:              config.Title,
		RoomType:           config.RoomType,
		RoomStatus:         domain.RoomStatusIdle,
		BeginTime:          next.BeginTime,
		EndTime:            next.EndTime,
		WhiteboardRoomUUID: whiteboardUUID,
		Region:             config.Region,
	}
	if err := tx.CreateRoom(ctx, room); err != nil {
		return "", fmt.Errorf("materialize next occurrence: %w", err)
	}

	members, err := tx.ListPeriodicUsers(ctx, periodicUUID)
	if err != nil {
		return "", fmt.Errorf("list periodic members: %w", err)
	}
	users := make([]domain.RoomUser, 0, len(members))
	for _, m := range members {
		users = append(users, domain.RoomUser{RoomUUID: room.RoomUUID, UserUUID: m.UserUUID, RtcUID: newRtcUID()})
	}
	if err := tx.AddRoomUsers(ctx, users); err != nil {
		return "", fmt.Errorf("copy periodic members: %w", err)
	}

	logCtx.WithFields(logrus.Fields{"next_room_uuid": room.RoomUUID, "members": len(users)}).
		Info("Materialized next periodic occurrence")
	return room.RoomUUID, nil
}
