package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// JoinResult 加入房间后客户端需要的全部信息
type JoinResult struct {
	RoomUUID            string
	PeriodicUUID        string
	OwnerUUID           string
	RoomType            domain.RoomType
	Region              domain.Region
	WhiteboardRoomUUID  string
	WhiteboardRoomToken string
	RtcUID              string
	RtcToken            string
	RtmToken            string
}

// Join 加入房间。uuid 可以是 roomUUID、periodicUUID 或 10 位邀请码。
// 重复加入是幂等的，成员已有的 rtcUID 保持不变。
func (s *RoomService) Join(ctx context.Context, userUUID, id string) (*JoinResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "uuid": id, "operation": "JoinRoom"})

	if isInviteCode(id) {
		roomUUID, err := s.invites.Resolve(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				logCtx.Info("Invite code not found")
				return nil, ErrRoomNotFound
			}
			logCtx.WithError(err).Error("Failed to resolve invite code")
			return nil, wrapInternal(err, "resolve invite code")
		}
		id = roomUUID
	}

	config, err := s.store.FindPeriodicConfig(ctx, id)
	switch {
	case err == nil:
		return s.joinPeriodic(ctx, logCtx.WithField("periodic_uuid", id), userUUID, config)
	case !errors.Is(err, repository.ErrNotFound):
		logCtx.WithError(err).Error("Failed to load periodic config")
		return nil, wrapInternal(err, "load periodic config")
	}

	room, err := s.store.FindRoom(ctx, id)
	if err != nil {
		return nil, s.roomLookupError(logCtx, err)
	}
	logCtx = logCtx.WithField("room_uuid", room.RoomUUID)
	if room.RoomStatus == domain.RoomStatusStopped {
		logCtx.Info("Rejected join: room is ended")
		return nil, ErrRoomIsEnded
	}

	err = s.store.AddRoomUsers(ctx, []domain.RoomUser{{RoomUUID: room.RoomUUID, UserUUID: userUUID, RtcUID: newRtcUID()}})
	if err != nil {
		logCtx.WithError(err).Error("Failed to add room member")
		return nil, wrapInternal(err, "add room member")
	}
	return s.joinResult(ctx, logCtx, room, userUUID)
}

func (s *RoomService) joinPeriodic(ctx context.Context, logCtx *logrus.Entry, userUUID string, config *domain.RoomPeriodicConfig) (*JoinResult, error) {
	if config.PeriodicStatus == domain.PeriodicStatusStopped {
		logCtx.Info("Rejected join: periodic room is ended")
		return nil, ErrPeriodicIsEnded
	}

	room, err := s.store.FindLiveRoomByPeriodic(ctx, config.PeriodicUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 正在滚动到下一节课，客户端稍后重试
			logCtx.Warn("No live occurrence for periodic room")
			return nil, ErrCanRetry
		}
		logCtx.WithError(err).Error("Failed to load live occurrence")
		return nil, wrapInternal(err, "load live occurrence")
	}
	logCtx = logCtx.WithField("room_uuid", room.RoomUUID)

	err = s.store.Transaction(ctx, func(tx repository.RoomStore) error {
		if err := tx.AddRoomUsers(ctx, []domain.RoomUser{{RoomUUID: room.RoomUUID, UserUUID: userUUID, RtcUID: newRtcUID()}}); err != nil {
			return err
		}
		return tx.AddPeriodicUsers(ctx, []domain.RoomPeriodicUser{{PeriodicUUID: config.PeriodicUUID, UserUUID: userUUID}})
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to add periodic member")
		return nil, wrapInternal(err, "add periodic member")
	}
	return s.joinResult(ctx, logCtx, room, userUUID)
}

func (s *RoomService) joinResult(ctx context.Context, logCtx *logrus.Entry, room *domain.Room, userUUID string) (*JoinResult, error) {
	member, err := s.store.FindRoomUser(ctx, room.RoomUUID, userUUID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load room member after join")
		return nil, wrapInternal(err, "load room member")
	}

	whiteboardToken, err := s.tokens.RoomToken(room.WhiteboardRoomUUID)
	if err != nil {
		return nil, ErrServerFail.Wrap(err)
	}
	rtcToken, err := s.tokens.RTCToken(room.RoomUUID, member.RtcUID)
	if err != nil {
		return nil, ErrServerFail.Wrap(err)
	}
	rtmToken, err := s.tokens.RTMToken(userUUID)
	if err != nil {
		return nil, ErrServerFail.Wrap(err)
	}

	logCtx.Info("User joined room successfully")
	return &JoinResult{
		RoomUUID:            room.RoomUUID,
		PeriodicUUID:        room.PeriodicUUID,
		OwnerUUID:           room.OwnerUUID,
		RoomType:            room.RoomType,
		Region:              room.Region,
		WhiteboardRoomUUID:  room.WhiteboardRoomUUID,
		WhiteboardRoomToken: whiteboardToken,
		RtcUID:              member.RtcUID,
		RtcToken:            rtcToken,
		RtmToken:            rtmToken,
	}, nil
}
