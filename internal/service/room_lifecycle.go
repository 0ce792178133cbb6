package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// Start 开始上课，只有创建者可以调用。
// Idle -> Started 时把 begin_time 改为当前时间；Paused -> Started 为恢复；Started 重复调用无副作用。
// 周期系列中第一节开始的课会把整个系列从 Idle 推进到 Started。
func (s *RoomService) Start(ctx context.Context, roomUUID, callerUUID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": callerUUID, "room_uuid": roomUUID, "operation": "StartRoom"})
	now := s.clock()
	changed := false

	err := s.store.Transaction(ctx, func(tx repository.RoomStore) error {
		room, err := lockOwnedRoom(ctx, tx, roomUUID, callerUUID)
		if err != nil {
			return err
		}
		switch room.RoomStatus {
		case domain.RoomStatusStarted:
			return nil
		case domain.RoomStatusStopped:
			return ErrRoomIsEnded
		}

		update := repository.RoomStatusUpdate{Status: domain.RoomStatusStarted}
		if room.RoomStatus == domain.RoomStatusIdle {
			update.BeginTime = &now
		}
		if err := tx.UpdateRoomStatus(ctx, roomUUID, update); err != nil {
			return err
		}
		if room.IsPeriodic() {
			if err := tx.UpdatePeriodicRoom(ctx, roomUUID, update); err != nil {
				return err
			}
			if _, err := tx.UpdatePeriodicStatus(ctx, room.PeriodicUUID, domain.PeriodicStatusIdle, domain.PeriodicStatusStarted); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return serviceError(logCtx, err, "room transition")
	}
	if changed {
		s.publish(ctx, domain.RoomEvent{Type: domain.RoomEventStatus, RoomUUID: roomUUID, RoomStatus: domain.RoomStatusStarted})
		logCtx.Info("Room started")
	}
	return nil
}

// Pause 暂停上课，只允许 Started -> Paused，Paused 重复调用无副作用。
func (s *RoomService) Pause(ctx context.Context, roomUUID, callerUUID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": callerUUID, "room_uuid": roomUUID, "operation": "PauseRoom"})
	changed := false

	err := s.store.Transaction(ctx, func(tx repository.RoomStore) error {
		room, err := lockOwnedRoom(ctx, tx, roomUUID, callerUUID)
		if err != nil {
			return err
		}
		switch room.RoomStatus {
		case domain.RoomStatusPaused:
			return nil
		case domain.RoomStatusStarted:
		default:
			return ErrRoomNotIsRunning
		}

		update := repository.RoomStatusUpdate{Status: domain.RoomStatusPaused}
		if err := tx.UpdateRoomStatus(ctx, roomUUID, update); err != nil {
			return err
		}
		if room.IsPeriodic() {
			if err := tx.UpdatePeriodicRoom(ctx, roomUUID, update); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return serviceError(logCtx, err, "room transition")
	}
	if changed {
		s.publish(ctx, domain.RoomEvent{Type: domain.RoomEventStatus, RoomUUID: roomUUID, RoomStatus: domain.RoomStatusPaused})
		logCtx.Info("Room paused")
	}
	return nil
}

// Stop 结束上课，只允许从 Started/Paused 结束。周期房间在同一事务中滚动到下一节课。
func (s *RoomService) Stop(ctx context.Context, roomUUID, callerUUID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": callerUUID, "room_uuid": roomUUID, "operation": "StopRoom"})
	now := s.clock()

	var (
		room     *domain.Room
		nextUUID string
	)
	err := s.store.Transaction(ctx, func(tx repository.RoomStore) error {
		var err error
		room, err = lockOwnedRoom(ctx, tx, roomUUID, callerUUID)
		if err != nil {
			return err
		}
		if !room.RoomStatus.IsRunning() {
			return ErrRoomNotIsRunning
		}
		nextUUID, err = s.stopLocked(ctx, tx, room, now)
		return err
	})
	if err != nil {
		return serviceError(logCtx, err, "room transition")
	}

	s.afterStop(ctx, room, nextUUID, domain.RoomEventStatus)
	logCtx.WithField("next_room_uuid", nextUUID).Info("Room stopped")
	return nil
}

// Cancel 取消房间。
// 非创建者只是退出房间；创建者只能取消未开始的房间 (房间和全部成员被逻辑删除，周期房间随之滚动)，
// 已结束的房间则只从创建者的历史中移除。
func (s *RoomService) Cancel(ctx context.Context, roomUUID, userUUID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "room_uuid": roomUUID, "operation": "CancelRoom"})

	room, err := s.store.FindRoom(ctx, roomUUID)
	if err != nil {
		return s.roomLookupError(logCtx, err)
	}

	if room.OwnerUUID != userUUID || room.RoomStatus == domain.RoomStatusStopped {
		if _, err := s.store.FindRoomUser(ctx, roomUUID, userUUID); err != nil {
			return s.roomLookupError(logCtx, err)
		}
		if err := s.store.RemoveRoomUsers(ctx, roomUUID, []string{userUUID}); err != nil {
			logCtx.WithError(err).Error("Failed to remove room member")
			return wrapInternal(err, "remove room member")
		}
		logCtx.Info("Member left room")
		return nil
	}

	now := s.clock()
	var nextUUID string
	err = s.store.Transaction(ctx, func(tx repository.RoomStore) error {
		locked, err := lockOwnedRoom(ctx, tx, roomUUID, userUUID)
		if err != nil {
			return err
		}
		if locked.RoomStatus != domain.RoomStatusIdle {
			return ErrRoomIsRunning
		}
		if err := tx.SoftDeleteRoom(ctx, roomUUID); err != nil {
			return err
		}
		if err := tx.RemoveRoomUsers(ctx, roomUUID, nil); err != nil {
			return err
		}
		if !locked.IsPeriodic() {
			return nil
		}
		if err := tx.UpdatePeriodicRoom(ctx, roomUUID, repository.RoomStatusUpdate{Status: domain.RoomStatusStopped}); err != nil {
			return err
		}
		nextUUID, err = s.rollover(ctx, tx, locked.PeriodicUUID, roomUUID, now)
		return err
	})
	if err != nil {
		return serviceError(logCtx, err, "room transition")
	}

	s.afterStop(ctx, room, nextUUID, domain.RoomEventCancelled)
	logCtx.WithField("next_room_uuid", nextUUID).Info("Room cancelled by owner")
	return nil
}

// CancelPeriodic 取消整个周期系列。
// 非创建者退出系列，之后滚动出来的课不会再带上他；创建者结束系列，
// 当前待上的房间和所有未开始的课次被删除。
func (s *RoomService) CancelPeriodic(ctx context.Context, periodicUUID, userUUID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "periodic_uuid": periodicUUID, "operation": "CancelPeriodic"})

	config, err := s.store.FindPeriodicConfig(ctx, periodicUUID)
	if err != nil {
		return periodicLookupError(logCtx, err)
	}
	members, err := s.store.ListPeriodicUsers(ctx, periodicUUID)
	if err != nil {
		return periodicLookupError(logCtx, err)
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
		return ErrPeriodicNotFound
	}
	isOwner := config.OwnerUUID == userUUID

	var room *domain.Room
	err = s.store.Transaction(ctx, func(tx repository.RoomStore) error {
		live, err := tx.FindLiveRoomByPeriodic(ctx, periodicUUID)
		if errors.Is(err, repository.ErrNotFound) {
			if config.PeriodicStatus == domain.PeriodicStatusStopped {
				return ErrPeriodicIsEnded
			}
			return ErrCanRetry
		}
		if err != nil {
			return err
		}
		if room, err = tx.FindRoomForUpdate(ctx, live.RoomUUID); err != nil {
			return err
		}
		if isOwner && room.RoomStatus.IsRunning() {
			return ErrRoomIsRunning
		}

		if err := tx.RemoveRoomUsers(ctx, room.RoomUUID, []string{userUUID}); err != nil {
			return err
		}
		if err := tx.RemovePeriodicUsers(ctx, periodicUUID, []string{userUUID}); err != nil {
			return err
		}
		if !isOwner {
			return nil
		}

		if err := tx.SoftDeleteRoom(ctx, room.RoomUUID); err != nil {
			return err
		}
		if err := tx.RemoveRoomUsers(ctx, room.RoomUUID, nil); err != nil {
			return err
		}
		if err := tx.SoftDeletePendingPeriodics(ctx, periodicUUID); err != nil {
			return err
		}
		current, err := tx.FindPeriodicConfig(ctx, periodicUUID)
		if err != nil {
			return err
		}
		_, err = tx.UpdatePeriodicStatus(ctx, periodicUUID, current.PeriodicStatus, domain.PeriodicStatusStopped)
		return err
	})
	if err != nil {
		return serviceError(logCtx, err, "cancel periodic room")
	}

	if !isOwner {
		logCtx.WithField("room_uuid", room.RoomUUID).Info("Member left periodic room")
		return nil
	}
	s.afterStop(ctx, room, "", domain.RoomEventCancelled)
	logCtx.WithField("room_uuid", room.RoomUUID).Info("Periodic room cancelled by owner")
	return nil
}

// BanRooms 管理员强制结束房间，已结束或不存在的房间跳过。返回实际被结束的房间。
func (s *RoomService) BanRooms(ctx context.Context, roomUUIDs []string) ([]string, error) {
	logCtx := logrus.WithField("operation", "BanRooms")
	var (
		banned []string
		errs   []error
	)
	for _, roomUUID := range roomUUIDs {
		now := s.clock()
		var (
			room     *domain.Room
			nextUUID string
		)
		err := s.store.Transaction(ctx, func(tx repository.RoomStore) error {
			var err error
			room, err = tx.FindRoomForUpdate(ctx, roomUUID)
			if err != nil {
				return err
			}
			if room.RoomStatus == domain.RoomStatusStopped {
				room = nil
				return nil
			}
			nextUUID, err = s.stopLocked(ctx, tx, room, now)
			return err
		})
		if errors.Is(err, repository.ErrNotFound) {
			logCtx.WithField("room_uuid", roomUUID).Info("Skip banning unknown room")
			continue
		}
		if err != nil {
			logCtx.WithField("room_uuid", roomUUID).WithError(err).Error("Failed to ban room")
			errs = append(errs, err)
			continue
		}
		if room == nil {
			continue
		}
		s.afterStop(ctx, room, nextUUID, domain.RoomEventStatus)
		banned = append(banned, roomUUID)
	}
	logCtx.WithField("banned", len(banned)).Info("Ban rooms finished")
	if len(errs) > 0 {
		return banned, wrapInternal(errors.Join(errs...), "ban rooms")
	}
	return banned, nil
}

// stopLocked 把已加锁的房间置为 Stopped，周期房间同时滚动
func (s *RoomService) stopLocked(ctx context.Context, tx repository.RoomStore, room *domain.Room, now time.Time) (string, error) {
	update := repository.RoomStatusUpdate{Status: domain.RoomStatusStopped, EndTime: &now}
	if err := tx.UpdateRoomStatus(ctx, room.RoomUUID, update); err != nil {
		return "", err
	}
	if !room.IsPeriodic() {
		return "", nil
	}
	if err := tx.UpdatePeriodicRoom(ctx, room.RoomUUID, update); err != nil {
		return "", err
	}
	return s.rollover(ctx, tx, room.PeriodicUUID, room.RoomUUID, now)
}

// afterStop 事务提交之后的副作用：广播事件、回收邀请码、封禁白板，全部 best-effort
func (s *RoomService) afterStop(ctx context.Context, room *domain.Room, nextUUID string, eventType domain.RoomEventType) {
	logCtx := logrus.WithField("room_uuid", room.RoomUUID)

	s.publish(ctx, domain.RoomEvent{
		Type:         eventType,
		RoomUUID:     room.RoomUUID,
		RoomStatus:   domain.RoomStatusStopped,
		NextRoomUUID: nextUUID,
	})
	if nextUUID != "" {
		code := s.assignInviteCode(ctx, nextUUID)
		logCtx.WithFields(logrus.Fields{"next_room_uuid": nextUUID, "invite_code": code}).Debug("Invite code assigned to next occurrence")
		s.publish(ctx, domain.RoomEvent{Type: domain.RoomEventNextRoom, RoomUUID: room.RoomUUID, NextRoomUUID: nextUUID})
	}

	if err := s.invites.Release(ctx, room.RoomUUID); err != nil {
		logCtx.WithError(err).Warn("Failed to release invite code")
	}

	s.banWhiteboard(ctx, room.Region, room.WhiteboardRoomUUID)
}

// banWhiteboard 优先交给后台任务封禁白板房间，入队失败时直接调用
func (s *RoomService) banWhiteboard(ctx context.Context, region domain.Region, whiteboardUUID string) {
	logCtx := logrus.WithField("whiteboard_room_uuid", whiteboardUUID)
	if err := s.dispatcher.BanWhiteboard(ctx, region, whiteboardUUID); err != nil {
		logCtx.WithError(err).Warn("Failed to enqueue whiteboard ban, banning inline")
		if err := s.renderer.BanRoom(ctx, region, whiteboardUUID); err != nil {
			logCtx.WithError(err).Warn("Failed to ban whiteboard room")
		}
	}
}

// lockOwnedRoom 加锁读取房间并校验调用者是创建者
func lockOwnedRoom(ctx context.Context, tx repository.RoomStore, roomUUID, callerUUID string) (*domain.Room, error) {
	room, err := tx.FindRoomForUpdate(ctx, roomUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if room.OwnerUUID != callerUUID {
		return nil, ErrNotPermission
	}
	return room, nil
}
