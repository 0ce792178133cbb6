package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/service"
	"github.com/netless-io/flat-server-sub001/internal/tasks"
)

// taskLogger 带上任务 ID 与重试次数
func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID, _ := asynq.GetTaskID(ctx)
	queue, _ := asynq.GetQueueName(ctx)
	retry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"queue":     queue,
		"retry":     retry,
		"max_retry": maxRetry,
	})
}

// RemoveBlobsHandler 删除对象存储中已经从云盘删除的文件
type RemoveBlobsHandler struct {
	objects service.ObjectStore
}

// NewRemoveBlobsHandler 创建 Handler 实例
func NewRemoveBlobsHandler(objects service.ObjectStore) *RemoveBlobsHandler {
	if objects == nil {
		panic("ObjectStore cannot be nil for RemoveBlobsHandler")
	}
	return &RemoveBlobsHandler{objects: objects}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RemoveBlobsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	var payload tasks.RemoveBlobsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if len(payload.Paths) == 0 {
		return nil
	}
	if err := h.objects.Remove(ctx, payload.Paths); err != nil {
		logCtx.WithError(err).Warn("Failed to remove blobs")
		return fmt.Errorf("remove %d blobs: %w", len(payload.Paths), err)
	}
	logCtx.WithField("count", len(payload.Paths)).Info("Blobs removed")
	return nil
}

// BanWhiteboardHandler 房间结束后封禁白板房间，禁止继续写入
type BanWhiteboardHandler struct {
	renderer service.RoomRenderer
}

// NewBanWhiteboardHandler 创建 Handler 实例
func NewBanWhiteboardHandler(renderer service.RoomRenderer) *BanWhiteboardHandler {
	if renderer == nil {
		panic("RoomRenderer cannot be nil for BanWhiteboardHandler")
	}
	return &BanWhiteboardHandler{renderer: renderer}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *BanWhiteboardHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	var payload tasks.BanWhiteboardPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.WhiteboardRoomUUID == "" {
		logCtx.Warn("Ban whiteboard task without room uuid, skipped")
		return nil
	}
	logCtx = logCtx.WithField("whiteboard_room_uuid", payload.WhiteboardRoomUUID)
	if err := h.renderer.BanRoom(ctx, payload.Region, payload.WhiteboardRoomUUID); err != nil {
		logCtx.WithError(err).Warn("Failed to ban whiteboard room")
		return fmt.Errorf("ban whiteboard room %s: %w", payload.WhiteboardRoomUUID, err)
	}
	logCtx.Info("Whiteboard room banned")
	return nil
}
