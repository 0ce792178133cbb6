package service

import (
	"context"
	"time"

	"github.com/netless-io/flat-server-sub001/internal/domain"
)

// UploadPolicy 客户端直传对象存储所需的表单字段
type UploadPolicy struct {
	AccessKeyID string
	Policy      string
	Signature   string
	Expire      time.Time
}

// ObjectStore 对象存储
type ObjectStore interface {
	// PolicyTemplate 为 path 生成只允许上传 size 字节、文件名为 fileName 的 POST policy
	PolicyTemplate(fileName, path string, size int64) (UploadPolicy, error)
	Exists(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, paths []string) error
	// Domain 访问文件的域名前缀，例如 https://bucket.oss-cn-hangzhou.aliyuncs.com
	Domain() string
}

// ConvertStatus 转码任务状态
type ConvertStatus string

const (
	ConvertWaiting    ConvertStatus = "Waiting"
	ConvertConverting ConvertStatus = "Converting"
	ConvertFinished   ConvertStatus = "Finished"
	ConvertFail       ConvertStatus = "Fail"
)

// ConversionService 白板文档转码。查询时同样带上资源地址，实现可以据此区分静态/动态转码。
type ConversionService interface {
	Create(ctx context.Context, region domain.Region, resourceURL string) (taskUUID string, err error)
	Query(ctx context.Context, region domain.Region, taskUUID, resourceURL string) (ConvertStatus, error)
}

// RoomRenderer 白板房间
type RoomRenderer interface {
	CreateRoom(ctx context.Context, region domain.Region) (string, error)
	BanRoom(ctx context.Context, region domain.Region, whiteboardRoomUUID string) error
}

// TokenIssuer 签发带角色和有效期的访问令牌
type TokenIssuer interface {
	RoomToken(whiteboardRoomUUID string) (string, error)
	TaskToken(taskUUID string) (string, error)
	RTCToken(roomUUID, rtcUID string) (string, error)
	RTMToken(userUUID string) (string, error)
}

// TaskDispatcher 把不影响主流程结果的副作用交给后台 worker
type TaskDispatcher interface {
	RemoveBlobs(ctx context.Context, paths []string) error
	BanWhiteboard(ctx context.Context, region domain.Region, whiteboardRoomUUID string) error
}

// RoomEventPublisher 广播房间事件
type RoomEventPublisher interface {
	PublishRoomEvent(ctx context.Context, event domain.RoomEvent) error
}
