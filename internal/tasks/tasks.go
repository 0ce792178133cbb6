package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/netless-io/flat-server-sub001/internal/domain"
)

// 任务类型
const (
	TypeRemoveBlobs    = "cloud_storage:remove_blobs"    // 删除对象存储中的文件
	TypeBanWhiteboard  = "room:ban_whiteboard"           // 房间结束后封禁白板房间
	TypeReconcileUsage = "cloud_storage:reconcile_usage" // 周期性修正用户已用空间
)

// RemoveBlobsPayload 删除对象存储文件的参数
type RemoveBlobsPayload struct {
	Paths []string `json:"paths"`
}

// BanWhiteboardPayload 封禁白板房间的参数
type BanWhiteboardPayload struct {
	Region             domain.Region `json:"region"`
	WhiteboardRoomUUID string        `json:"whiteboardRoomUUID"`
}

// NewRemoveBlobsTask 创建删除对象的任务
func NewRemoveBlobsTask(paths []string) (*asynq.Task, error) {
	payload, err := json.Marshal(RemoveBlobsPayload{Paths: paths})
	if err != nil {
		return nil, fmt.Errorf("marshal remove blobs payload: %w", err)
	}
	return asynq.NewTask(TypeRemoveBlobs, payload), nil
}

// NewBanWhiteboardTask 创建封禁白板的任务
func NewBanWhiteboardTask(region domain.Region, whiteboardRoomUUID string) (*asynq.Task, error) {
	payload, err := json.Marshal(BanWhiteboardPayload{Region: region, WhiteboardRoomUUID: whiteboardRoomUUID})
	if err != nil {
		return nil, fmt.Errorf("marshal ban whiteboard payload: %w", err)
	}
	return asynq.NewTask(TypeBanWhiteboard, payload), nil
}

// NewReconcileUsageTask 对账任务没有参数
func NewReconcileUsageTask() *asynq.Task {
	return asynq.NewTask(TypeReconcileUsage, nil)
}
