package repository

import (
	"context"

	"github.com/netless-io/flat-server-sub001/internal/domain"
)

// ListOrder 列表排序方向
type ListOrder string

const (
	OrderAsc  ListOrder = "ASC"
	OrderDesc ListOrder = "DESC"
)

// DirectoryListQuery 列出某个目录下的直接子条目
type DirectoryListQuery struct {
	UserUUID      string
	DirectoryPath string
	Page          int
	Size          int
	Order         ListOrder
}

// FileStore 定义了云盘文件、归属关系以及用量计数的存储操作。
// 文件的可见性总是同时要求 cloud_storage_files 与 cloud_storage_user_files 两边未删除。
type FileStore interface {
	// Transaction 在一个数据库事务中执行 fn，fn 内必须只使用传入的 tx
	Transaction(ctx context.Context, fn func(tx FileStore) error) error

	// DirectoryExists 用户在 parent 下是否有名为 name 的目录
	DirectoryExists(ctx context.Context, userUUID, parent, name string) (bool, error)
	// EntryExists parent 下是否已有同名条目 (任意资源类型)
	EntryExists(ctx context.Context, userUUID, parent, name string) (bool, error)
	FindUserFile(ctx context.Context, userUUID, fileUUID string) (*domain.CloudStorageFile, error)
	// ListUserFiles 一次取出用户的全部文件，作为目录操作的内存快照
	ListUserFiles(ctx context.Context, userUUID string) ([]domain.CloudStorageFile, error)
	ListDirectory(ctx context.Context, query DirectoryListQuery) ([]domain.CloudStorageFile, error)

	// CreateFile 插入文件行以及归属行
	CreateFile(ctx context.Context, userUUID string, file *domain.CloudStorageFile) error
	// UpdateDirectoryPath 按主键列表批量改写 directory_path
	UpdateDirectoryPath(ctx context.Context, fileUUIDs []string, directoryPath string) error
	RenameFile(ctx context.Context, fileUUID, fileName string) error
	UpdatePayload(ctx context.Context, fileUUID string, payload domain.FilePayload) error
	// SoftDeleteFiles 同时逻辑删除文件行和该用户的归属行
	SoftDeleteFiles(ctx context.Context, userUUID string, fileUUIDs []string) error

	// LockTotalUsage 读取并锁定用户的用量行 (不存在时视为 0)
	LockTotalUsage(ctx context.Context, userUUID string) (int64, error)
	TotalUsage(ctx context.Context, userUUID string) (int64, error)
	// SetTotalUsage 不存在则插入，存在则更新
	SetTotalUsage(ctx context.Context, userUUID string, totalUsage int64) error
	// SumUsageByUser 按用户汇总未删除的非目录文件大小，用于对账
	SumUsageByUser(ctx context.Context) (map[string]int64, error)
	ListUsageConfigs(ctx context.Context) ([]domain.CloudStorageConfig, error)
}
