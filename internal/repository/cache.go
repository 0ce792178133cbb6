package repository

import (
	"context"
	"time"

	"github.com/netless-io/flat-server-sub001/internal/domain"
)

// UploadInfo 上传握手开始时暂存的文件信息
type UploadInfo struct {
	FileName            string
	FileSize            int64
	TargetDirectoryPath string
	FileResourceType    domain.FileResourceType
	OSSFilePath         string // 对象存储中的路径，开始时按日期生成，完成时原样使用
}

// InFlightUpload 尚未完成的上传
type InFlightUpload struct {
	FileUUID string
	FileSize int64
}

// UploadCache 暂存进行中的上传，记录带 TTL，过期即视为放弃。
type UploadCache interface {
	SaveUpload(ctx context.Context, userUUID, fileUUID string, info UploadInfo, ttl time.Duration) error
	// GetUpload 记录不存在或字段不完整时返回 ErrNotFound
	GetUpload(ctx context.Context, userUUID, fileUUID string) (*UploadInfo, error)
	// DeleteUploads fileUUIDs 为空时删除该用户全部进行中的上传
	DeleteUploads(ctx context.Context, userUUID string, fileUUIDs ...string) error
	// InFlightUploads 最多返回 limit 条进行中的上传 (近似值)
	InFlightUploads(ctx context.Context, userUUID string, limit int) ([]InFlightUpload, error)
}

// InviteCodeRepository 房间邀请码 <-> 房间 UUID 的双向映射
type InviteCodeRepository interface {
	// Reserve 原子地占用 code，已被占用时返回 false
	Reserve(ctx context.Context, code, roomUUID string, ttl time.Duration) (bool, error)
	Resolve(ctx context.Context, code string) (string, error)
	CodeOf(ctx context.Context, roomUUID string) (string, error)
	Release(ctx context.Context, roomUUID string) error
}

// PresenceRepository 记录房间在线成员 (redis sorted set)
type PresenceRepository interface {
	Join(ctx context.Context, roomUUID, userUUID string, at time.Time) error
	Leave(ctx context.Context, roomUUID, userUUID string) error
	Count(ctx context.Context, roomUUID string) (int64, error)
}
