package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// UpdateRoomInput 编辑普通房间的参数
type UpdateRoomInput struct {
	Title     string
	Type      domain.RoomType
	BeginTime time.Time
	EndTime   time.Time
}

// UpdatePeriodicInput 编辑整个周期系列的参数，规则与 ScheduleRoomInput 相同
type UpdatePeriodicInput struct {
	PeriodicUUID      string
	Title             string
	Type              domain.RoomType
	BeginTime         time.Time
	EndTime           time.Time
	Weeks             []time.Weekday
	Rate              int
	RecurrenceEndTime *time.Time
	Docs              []DocInput
}

// checkEditTimes 时间没有变化时不做校验；变化后要求 begin < end 且至少 15 分钟，
// 修改了开始时间时不能早于当前时间一分钟以上。
func checkEditTimes(begin, end, oldBegin, oldEnd, now time.Time) error {
	beginChanged := !begin.Equal(oldBegin)
	if !beginChanged && end.Equal(oldEnd) {
		return nil
	}
	if !begin.Before(end) {
		return ErrParamsCheckFailed.Wrap(errors.New("invalid begin/end time"))
	}
	if end.Sub(begin) < minPeriodicRoomLength {
		return ErrParamsCheckFailed.Wrap(errors.New("room is shorter than 15 minutes"))
	}
	if beginChanged && begin.Before(now.Add(-beginTimeTolerance)) {
		return ErrParamsCheckFailed.Wrap(errors.New("begin time is in the past"))
	}
	return nil
}

// UpdateOrdinary 修改普通房间的标题、类型和时间，只有创建者能修改未开始的房间。
func (s *RoomService) UpdateOrdinary(ctx context.Context, userUUID, roomUUID string, in UpdateRoomInput) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "room_uuid": roomUUID, "operation": "UpdateOrdinaryRoom"})

	if err := validateTitleAndType(in.Title, in.Type); err != nil {
		logCtx.WithError(err).Info("Rejected room update")
		return err
	}
	now := s.clock()

	err := s.store.Transaction(ctx, func(tx repository.RoomStore) error {
		room, err := tx.FindRoomForUpdate(ctx, roomUUID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRoomNotFound
			}
			return err
		}
		if room.OwnerUUID != userUUID {
			return ErrRoomNotFound
		}
		if room.IsPeriodic() {
			return ErrParamsCheckFailed.Wrap(errors.New("periodic occurrence must be edited through its series"))
		}
		if room.RoomStatus != domain.RoomStatusIdle {
			return ErrRoomNotIsIdle
		}
		if err := checkEditTimes(in.BeginTime, in.EndTime, room.BeginTime, room.EndTime, now); err != nil {
			return err
		}
		return tx.UpdateRoom(ctx, roomUUID, repository.RoomUpdate{
			Title:     in.Title,
			RoomType:  in.Type,
			BeginTime: in.BeginTime.UTC(),
			EndTime:   in.EndTime.UTC(),
		})
	})
	if err != nil {
		return serviceError(logCtx, err, "update room")
	}

	s.publish(ctx, domain.RoomEvent{Type: domain.RoomEventUpdated, RoomUUID: roomUUID, RoomStatus: domain.RoomStatusIdle})
	logCtx.Info("Room updated")
	return nil
}

// UpdatePeriodic 按新的规则重建整个系列：未开始的课次全部替换，当前待上的房间换成新的第一节课，
// 成员随之迁移，旧房间的白板被封禁。系列中有课正在进行时不能修改。
func (s *RoomService) UpdatePeriodic(ctx context.Context, userUUID string, in UpdatePeriodicInput) (*ScheduleRoomResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "periodic_uuid": in.PeriodicUUID, "operation": "UpdatePeriodicRoom"})

	config, err := s.store.FindPeriodicConfig(ctx, in.PeriodicUUID)
	if err != nil {
		return nil, periodicLookupError(logCtx, err)
	}
	if config.OwnerUUID != userUUID {
		logCtx.Info("Caller does not own the periodic room")
		return nil, ErrPeriodicNotFound
	}
	if config.PeriodicStatus == domain.PeriodicStatusStopped {
		return nil, ErrPeriodicIsEnded
	}
	if err := validateTitleAndType(in.Title, in.Type); err != nil {
		logCtx.WithError(err).Info("Rejected periodic room update")
		return nil, err
	}
	if err := checkEditTimes(in.BeginTime, in.EndTime, config.OriginBeginTime, config.OriginEndTime, s.clock()); err != nil {
		logCtx.WithError(err).Info("Rejected periodic room update")
		return nil, err
	}
	intervals, err := s.expandRule(ScheduleRoomInput{
		Title:             in.Title,
		Type:              in.Type,
		Region:            config.Region,
		BeginTime:         in.BeginTime,
		EndTime:           in.EndTime,
		Weeks:             in.Weeks,
		Rate:              in.Rate,
		RecurrenceEndTime: in.RecurrenceEndTime,
		Docs:              in.Docs,
	})
	if err != nil {
		logCtx.WithError(err).Info("Rejected periodic room update")
		return nil, err
	}

	whiteboardUUID, err := s.renderer.CreateRoom(ctx, config.Region)
	if err != nil {
		logCtx.WithError(err).Error("Failed to create whiteboard room")
		return nil, ErrServerFail.Wrap(err)
	}

	periodics := make([]domain.RoomPeriodic, 0, len(intervals))
	for _, iv := range intervals {
		periodics = append(periodics, domain.RoomPeriodic{
			PeriodicUUID: in.PeriodicUUID,
			FakeRoomUUID: uuid.NewString(),
			RoomStatus:   domain.RoomStatusIdle,
			BeginTime:    iv.Begin.UTC(),
			EndTime:      iv.End.UTC(),
		})
	}
	first := periodics[0]
	room := &domain.Room{
		RoomUUID:           first.FakeRoomUUID,
		PeriodicUUID:       in.PeriodicUUID,
		OwnerUUID:          userUUID,
		Title:              in.Title,
		RoomType:           in.Type,
		RoomStatus:         domain.RoomStatusIdle,
		BeginTime:          first.BeginTime,
		EndTime:            first.EndTime,
		WhiteboardRoomUUID: whiteboardUUID,
		Region:             config.Region,
	}

	var old *domain.Room
	err = s.store.Transaction(ctx, func(tx repository.RoomStore) error {
		current, err := tx.ListPeriodics(ctx, in.PeriodicUUID)
		if err != nil {
			return err
		}
		for _, p := range current {
			if p.RoomStatus.IsRunning() {
				return ErrPeriodicSubRoomHasRunning
			}
		}
		live, err := tx.FindLiveRoomByPeriodic(ctx, in.PeriodicUUID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRoomNotFound
			}
			return err
		}
		if old, err = tx.FindRoomForUpdate(ctx, live.RoomUUID); err != nil {
			return err
		}
		if old.RoomStatus != domain.RoomStatusIdle {
			return ErrPeriodicSubRoomHasRunning
		}

		if err := tx.SavePeriodicConfig(ctx, &domain.RoomPeriodicConfig{
			PeriodicUUID:    in.PeriodicUUID,
			Title:           in.Title,
			RoomType:        in.Type,
			Rate:            in.Rate,
			EndTime:         periodics[len(periodics)-1].EndTime,
			OriginBeginTime: in.BeginTime.UTC(),
			OriginEndTime:   in.EndTime.UTC(),
		}); err != nil {
			return err
		}
		if err := tx.SoftDeletePendingPeriodics(ctx, in.PeriodicUUID); err != nil {
			return err
		}
		if err := tx.CreatePeriodics(ctx, periodics); err != nil {
			return err
		}
		if err := s.syncPeriodicDocs(ctx, tx, in.PeriodicUUID, in.Docs); err != nil {
			return err
		}

		if err := tx.SoftDeleteRoom(ctx, old.RoomUUID); err != nil {
			return err
		}
		if err := tx.CreateRoom(ctx, room); err != nil {
			return err
		}
		return tx.MoveRoomUsers(ctx, old.RoomUUID, room.RoomUUID)
	})
	if err != nil {
		s.banWhiteboard(ctx, config.Region, whiteboardUUID)
		return nil, serviceError(logCtx, err, "update periodic room")
	}

	if err := s.invites.Release(ctx, old.RoomUUID); err != nil {
		logCtx.WithError(err).Warn("Failed to release invite code")
	}
	code := s.assignInviteCode(ctx, room.RoomUUID)
	s.publish(ctx, domain.RoomEvent{Type: domain.RoomEventUpdated, RoomUUID: old.RoomUUID, NextRoomUUID: room.RoomUUID})
	s.banWhiteboard(ctx, old.Region, old.WhiteboardRoomUUID)

	logCtx.WithFields(logrus.Fields{"room_uuid": room.RoomUUID, "replaced_room_uuid": old.RoomUUID, "occurrences": len(periodics)}).
		Info("Periodic room updated")
	return &ScheduleRoomResult{
		PeriodicUUID: in.PeriodicUUID,
		RoomUUID:     room.RoomUUID,
		InviteCode:   code,
		Occurrences:  len(periodics),
	}, nil
}

// syncPeriodicDocs 让系列的课件与 docs 一致：多余的删除，缺少的补上
func (s *RoomService) syncPeriodicDocs(ctx context.Context, tx repository.RoomStore, periodicUUID string, docs []DocInput) error {
	existing, err := tx.ListPeriodicDocs(ctx, periodicUUID)
	if err != nil {
		return err
	}
	wanted := make(map[string]bool, len(docs))
	for _, d := range docs {
		wanted[d.DocUUID] = true
	}
	have := make(map[string]bool, len(existing))
	var stale []string
	for _, d := range existing {
		have[d.DocUUID] = true
		if !wanted[d.DocUUID] {
			stale = append(stale, d.DocUUID)
		}
	}
	var added []DocInput
	for _, d := range docs {
		if !have[d.DocUUID] {
			added = append(added, d)
		}
	}
	if err := tx.RemovePeriodicDocs(ctx, periodicUUID, stale); err != nil {
		return err
	}
	if len(added) == 0 {
		return nil
	}
	return tx.CreateRoomDocs(ctx, buildDocs(added, "", periodicUUID))
}

// UpdatePeriodicSubRoom 修改系列中某一节未开始的课的时间。
// 新的开始时间必须晚于上一节课的开始时间，新的结束时间必须早于下一节课的结束时间。
func (s *RoomService) UpdatePeriodicSubRoom(ctx context.Context, userUUID, periodicUUID, roomUUID string, begin, end time.Time) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"user_uuid":     userUUID,
		"periodic_uuid": periodicUUID,
		"room_uuid":     roomUUID,
		"operation":     "UpdatePeriodicSubRoom",
	})

	config, err := s.store.FindPeriodicConfig(ctx, periodicUUID)
	if err != nil {
		return periodicLookupError(logCtx, err)
	}
	if config.OwnerUUID != userUUID {
		logCtx.Info("Caller does not own the periodic room")
		return ErrPeriodicNotFound
	}
	now := s.clock()
	begin, end = begin.UTC(), end.UTC()

	err = s.store.Transaction(ctx, func(tx repository.RoomStore) error {
		periodics, err := tx.ListPeriodics(ctx, periodicUUID)
		if err != nil {
			return err
		}
		idx := -1
		for i := range periodics {
			if periodics[i].FakeRoomUUID == roomUUID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrRoomNotFound
		}
		target := periodics[idx]
		if target.RoomStatus != domain.RoomStatusIdle {
			return ErrRoomNotIsIdle
		}

		beginChanged := !begin.Equal(target.BeginTime)
		endChanged := !end.Equal(target.EndTime)
		if !beginChanged && !endChanged {
			return nil
		}
		if !begin.Before(end) || end.Sub(begin) < minPeriodicRoomLength {
			return ErrParamsCheckFailed.Wrap(errors.New("invalid begin/end time"))
		}
		if beginChanged {
			if idx > 0 {
				if !begin.After(periodics[idx-1].BeginTime) {
					return ErrParamsCheckFailed.Wrap(errors.New("begin time must be after the previous occurrence"))
				}
			} else if begin.Before(now.Add(-beginTimeTolerance)) {
				return ErrParamsCheckFailed.Wrap(errors.New("begin time is in the past"))
			}
		}
		if endChanged && idx+1 < len(periodics) && !end.Before(periodics[idx+1].EndTime) {
			return ErrParamsCheckFailed.Wrap(errors.New("end time must be before the next occurrence"))
		}

		if err := tx.UpdatePeriodicTimes(ctx, roomUUID, begin, end); err != nil {
			return err
		}
		// 只有已经物化的那一节课需要同步 rooms 表
		err = tx.UpdateRoom(ctx, roomUUID, repository.RoomUpdate{BeginTime: begin, EndTime: end})
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return serviceError(logCtx, err, "update periodic sub room")
	}

	s.publish(ctx, domain.RoomEvent{Type: domain.RoomEventUpdated, RoomUUID: roomUUID, RoomStatus: domain.RoomStatusIdle})
	logCtx.Info("Periodic occurrence updated")
	return nil
}
