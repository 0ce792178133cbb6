package gormpersistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// GormFileStore 是 FileStore 接口的 GORM 实现
type GormFileStore struct {
	db *gorm.DB
}

// NewGormFileStore 创建 GormFileStore 实例
func NewGormFileStore(db *gorm.DB) *GormFileStore {
	if db == nil {
		panic("database connection cannot be nil for GormFileStore")
	}
	return &GormFileStore{db: db}
}

func (s *GormFileStore) Transaction(ctx context.Context, fn func(tx repository.FileStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormFileStore{db: tx})
	})
}

// userFiles 用户可见文件的基础查询
func (s *GormFileStore) userFiles(ctx context.Context, userUUID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&domain.CloudStorageFile{}).
		Select("cloud_storage_files.*").
		Joins("INNER JOIN cloud_storage_user_files uf ON uf.file_uuid = cloud_storage_files.file_uuid").
		Where("uf.user_uuid = ? AND uf.is_delete = ? AND cloud_storage_files.is_delete = ?", userUUID, false, false)
}

func (s *GormFileStore) DirectoryExists(ctx context.Context, userUUID, parent, name string) (bool, error) {
	var count int64
	err := s.userFiles(ctx, userUUID).
		Where("cloud_storage_files.directory_path = ? AND cloud_storage_files.file_name = ?", parent, name).
		Where("cloud_storage_files.resource_type = ?", domain.ResourceDirectory).
		Count(&count).Error
	if err != nil {
		return false, wrapError(err, "check directory %s%s of user %s", parent, name, userUUID)
	}
	return count > 0, nil
}

func (s *GormFileStore) EntryExists(ctx context.Context, userUUID, parent, name string) (bool, error) {
	var count int64
	err := s.userFiles(ctx, userUUID).
		Where("cloud_storage_files.directory_path = ? AND cloud_storage_files.file_name = ?", parent, name).
		Count(&count).Error
	if err != nil {
		return false, wrapError(err, "check entry %s%s of user %s", parent, name, userUUID)
	}
	return count > 0, nil
}

func (s *GormFileStore) FindUserFile(ctx context.Context, userUUID, fileUUID string) (*domain.CloudStorageFile, error) {
	var file domain.CloudStorageFile
	err := s.userFiles(ctx, userUUID).
		Where("cloud_storage_files.file_uuid = ?", fileUUID).
		First(&file).Error
	if err != nil {
		return nil, wrapError(err, "find file %s of user %s", fileUUID, userUUID)
	}
	return &file, nil
}

func (s *GormFileStore) ListUserFiles(ctx context.Context, userUUID string) ([]domain.CloudStorageFile, error) {
	var files []domain.CloudStorageFile
	err := s.userFiles(ctx, userUUID).
		Order("cloud_storage_files.id ASC").
		Find(&files).Error
	if err != nil {
		return nil, wrapError(err, "list files of user %s", userUUID)
	}
	return files, nil
}

func (s *GormFileStore) ListDirectory(ctx context.Context, query repository.DirectoryListQuery) ([]domain.CloudStorageFile, error) {
	order := "cloud_storage_files.created_at DESC"
	if query.Order == repository.OrderAsc {
		order = "cloud_storage_files.created_at ASC"
	}
	var files []domain.CloudStorageFile
	err := s.userFiles(ctx, query.UserUUID).
		Where("cloud_storage_files.directory_path = ?", query.DirectoryPath).
		Order(order).
		Order("cloud_storage_files.id ASC").
		Offset((query.Page - 1) * query.Size).
		Limit(query.Size).
		Find(&files).Error
	if err != nil {
		return nil, wrapError(err, "list directory %s of user %s", query.DirectoryPath, query.UserUUID)
	}
	return files, nil
}

func (s *GormFileStore) CreateFile(ctx context.Context, userUUID string, file *domain.CloudStorageFile) error {
	db := s.db.WithContext(ctx)
	if err := db.Create(file).Error; err != nil {
		return wrapError(err, "create file %s", file.FileUUID)
	}
	owner := domain.CloudStorageUserFile{UserUUID: userUUID, FileUUID: file.FileUUID}
	if err := db.Create(&owner).Error; err != nil {
		return wrapError(err, "create owner of file %s", file.FileUUID)
	}
	return nil
}

func (s *GormFileStore) UpdateDirectoryPath(ctx context.Context, fileUUIDs []string, directoryPath string) error {
	if len(fileUUIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&domain.CloudStorageFile{}).
		Where("file_uuid IN ?", fileUUIDs).
		Update("directory_path", directoryPath).Error
	return wrapError(err, "move %d files to %s", len(fileUUIDs), directoryPath)
}

func (s *GormFileStore) RenameFile(ctx context.Context, fileUUID, fileName string) error {
	err := s.db.WithContext(ctx).Model(&domain.CloudStorageFile{}).
		Where("file_uuid = ? AND is_delete = ?", fileUUID, false).
		Update("file_name", fileName).Error
	return wrapError(err, "rename file %s", fileUUID)
}

func (s *GormFileStore) UpdatePayload(ctx context.Context, fileUUID string, payload domain.FilePayload) error {
	err := s.db.WithContext(ctx).Model(&domain.CloudStorageFile{}).
		Where("file_uuid = ? AND is_delete = ?", fileUUID, false).
		Update("payload", payload.JSON()).Error
	return wrapError(err, "update payload of file %s", fileUUID)
}

func (s *GormFileStore) SoftDeleteFiles(ctx context.Context, userUUID string, fileUUIDs []string) error {
	if len(fileUUIDs) == 0 {
		return nil
	}
	db := s.db.WithContext(ctx)
	err := db.Model(&domain.CloudStorageFile{}).
		Where("file_uuid IN ?", fileUUIDs).
		Update("is_delete", true).Error
	if err != nil {
		return wrapError(err, "soft delete %d files", len(fileUUIDs))
	}
	err = db.Model(&domain.CloudStorageUserFile{}).
		Where("user_uuid = ? AND file_uuid IN ?", userUUID, fileUUIDs).
		Update("is_delete", true).Error
	return wrapError(err, "soft delete %d owner rows of user %s", len(fileUUIDs), userUUID)
}

func (s *GormFileStore) LockTotalUsage(ctx context.Context, userUUID string) (int64, error) {
	// 先确保用量行存在，否则 FOR UPDATE 锁不到任何行，首次并发上传会同时通过额度检查
	seed := domain.CloudStorageConfig{UserUUID: userUUID}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_uuid"}},
		DoNothing: true,
	}).Create(&seed).Error
	if err != nil {
		return 0, wrapError(err, "seed total usage of user %s", userUUID)
	}

	var config domain.CloudStorageConfig
	err = s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_uuid = ? AND is_delete = ?", userUUID, false).
		Limit(1).Find(&config).Error
	if err != nil {
		return 0, wrapError(err, "lock total usage of user %s", userUUID)
	}
	return config.TotalUsage, nil
}

func (s *GormFileStore) TotalUsage(ctx context.Context, userUUID string) (int64, error) {
	var config domain.CloudStorageConfig
	err := s.db.WithContext(ctx).
		Where("user_uuid = ? AND is_delete = ?", userUUID, false).
		Limit(1).Find(&config).Error
	if err != nil {
		return 0, wrapError(err, "get total usage of user %s", userUUID)
	}
	return config.TotalUsage, nil
}

func (s *GormFileStore) SetTotalUsage(ctx context.Context, userUUID string, totalUsage int64) error {
	config := domain.CloudStorageConfig{UserUUID: userUUID, TotalUsage: totalUsage}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_usage", "updated_at"}),
	}).Create(&config).Error
	return wrapError(err, "set total usage of user %s", userUUID)
}

type usageRow struct {
	UserUUID string
	Total    int64
}

func (s *GormFileStore) SumUsageByUser(ctx context.Context) (map[string]int64, error) {
	var rows []usageRow
	err := s.db.WithContext(ctx).Model(&domain.CloudStorageFile{}).
		Select("uf.user_uuid AS user_uuid, COALESCE(SUM(cloud_storage_files.file_size), 0) AS total").
		Joins("INNER JOIN cloud_storage_user_files uf ON uf.file_uuid = cloud_storage_files.file_uuid").
		Where("uf.is_delete = ? AND cloud_storage_files.is_delete = ?", false, false).
		Where("cloud_storage_files.resource_type <> ?", domain.ResourceDirectory).
		Group("uf.user_uuid").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapError(err, "sum usage by user")
	}
	usage := make(map[string]int64, len(rows))
	for _, row := range rows {
		usage[row.UserUUID] = row.Total
	}
	return usage, nil
}

func (s *GormFileStore) ListUsageConfigs(ctx context.Context) ([]domain.CloudStorageConfig, error) {
	var configs []domain.CloudStorageConfig
	err := s.db.WithContext(ctx).
		Where("is_delete = ?", false).
		Order("id ASC").
		Find(&configs).Error
	if err != nil {
		return nil, wrapError(err, "list usage configs")
	}
	return configs, nil
}
