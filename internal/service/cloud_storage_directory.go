package service

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/pathmodel"
	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// DirectoryExists 判断用户的目录是否存在，/ 总是存在
func (s *CloudStorageService) DirectoryExists(ctx context.Context, userUUID, path string) (bool, error) {
	if !pathmodel.IsNormalized(path) {
		return false, ErrParamsCheckFailed
	}
	exists, err := directoryExists(ctx, s.files, userUUID, path)
	if err != nil {
		return false, wrapInternal(err, "check directory")
	}
	return exists, nil
}

// CreateDirectory 在 parent 下创建名为 name 的目录
func (s *CloudStorageService) CreateDirectory(ctx context.Context, userUUID, parent, name string) (*domain.CloudStorageFile, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "directory_path": parent, "name": name})

	if !pathmodel.IsNormalized(parent) || !pathmodel.ValidDirectoryName(name) {
		return nil, ErrParamsCheckFailed
	}
	if err := pathmodel.CheckLength(parent, name); err != nil {
		return nil, ErrParamsCheckFailed.Wrap(err)
	}

	dir := &domain.CloudStorageFile{
		FileUUID:      uuid.NewString(),
		FileName:      name,
		DirectoryPath: parent,
		ResourceType:  domain.ResourceDirectory,
		Payload:       domain.FilePayload{}.JSON(),
	}
	err := s.files.Transaction(ctx, func(tx repository.FileStore) error {
		if err := s.requireDirectory(ctx, tx, userUUID, parent, ErrParentDirectoryNotExists); err != nil {
			return err
		}
		exists, err := tx.DirectoryExists(ctx, userUUID, parent, name)
		if err != nil {
			return err
		}
		if exists {
			return ErrDirectoryAlreadyExists
		}
		return tx.CreateFile(ctx, userUUID, dir)
	})
	if err != nil {
		return nil, serviceError(logCtx, err, "create directory")
	}
	logCtx.WithField("file_uuid", dir.FileUUID).Info("Directory created")
	return dir, nil
}

// RenameDirectory 重命名 parent 下的目录，并把整个子树的 directory_path 前缀改写为新路径
func (s *CloudStorageService) RenameDirectory(ctx context.Context, userUUID, parent, oldName, newName string) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "directory_path": parent, "old_name": oldName, "new_name": newName})

	if !pathmodel.IsNormalized(parent) || !pathmodel.ValidDirectoryName(oldName) || !pathmodel.ValidDirectoryName(newName) {
		return ErrParamsCheckFailed
	}
	if oldName == newName {
		return nil
	}
	if err := pathmodel.CheckLength(parent, newName); err != nil {
		return ErrParamsCheckFailed.Wrap(err)
	}

	err := s.files.Transaction(ctx, func(tx repository.FileStore) error {
		return renameDirectoryTx(ctx, tx, userUUID, parent, oldName, newName)
	})
	if err != nil {
		return serviceError(logCtx, err, "rename directory")
	}
	logCtx.Info("Directory renamed")
	return nil
}

func renameDirectoryTx(ctx context.Context, tx repository.FileStore, userUUID, parent, oldName, newName string) error {
	files, err := tx.ListUserFiles(ctx, userUUID)
	if err != nil {
		return err
	}
	var dir *domain.CloudStorageFile
	for i := range files {
		f := &files[i]
		if f.IsDirectory() && f.DirectoryPath == parent && f.FileName == oldName {
			dir = f
			break
		}
	}
	if dir == nil {
		return ErrDirectoryNotExists
	}
	exists, err := tx.DirectoryExists(ctx, userUUID, parent, newName)
	if err != nil {
		return err
	}
	if exists {
		return ErrDirectoryAlreadyExists
	}

	oldFull := pathmodel.Join(parent, oldName)
	newFull := pathmodel.Join(parent, newName)
	if pathmodel.MaxDescendantLength(files, oldFull, newFull) > pathmodel.MaxPathLength {
		return ErrParamsCheckFailed.Wrap(pathmodel.ErrPathTooLong)
	}
	if err := tx.RenameFile(ctx, dir.FileUUID, newName); err != nil {
		return err
	}
	return rewriteSubtree(ctx, tx, files, oldFull, newFull)
}

// rewriteSubtree 按内存快照计算子树中每一行的新路径，再按主键批量更新
func rewriteSubtree(ctx context.Context, tx repository.FileStore, files []domain.CloudStorageFile, oldFull, newFull string) error {
	groups := pathmodel.GroupByTarget(pathmodel.Rewrite(files, oldFull, newFull))
	targets := make([]string, 0, len(groups))
	for target := range groups {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	for _, target := range targets {
		if err := tx.UpdateDirectoryPath(ctx, groups[target], target); err != nil {
			return err
		}
	}
	return nil
}

// Move 把若干文件/目录移动到 target 目录下。
// 请求的 uuid 按当前父目录分组：普通文件每组一次批量更新，目录连同子树一起改写。
func (s *CloudStorageService) Move(ctx context.Context, userUUID string, fileUUIDs []string, target string) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "target_directory_path": target, "count": len(fileUUIDs)})

	if !pathmodel.IsNormalized(target) || len(fileUUIDs) == 0 {
		return ErrParamsCheckFailed
	}

	err := s.files.Transaction(ctx, func(tx repository.FileStore) error {
		if err := s.requireDirectory(ctx, tx, userUUID, target, ErrDirectoryNotExists); err != nil {
			return err
		}
		files, err := tx.ListUserFiles(ctx, userUUID)
		if err != nil {
			return err
		}
		byUUID := make(map[string]domain.CloudStorageFile, len(files))
		taken := make(map[string]bool)
		for _, f := range files {
			byUUID[f.FileUUID] = f
			if f.DirectoryPath == target {
				taken[f.FileName] = true
			}
		}

		groups, err := pathmodel.Aggregate(byUUID, fileUUIDs)
		if errors.Is(err, pathmodel.ErrUnknownEntry) {
			return ErrParamsCheckFailed.Wrap(err)
		}
		if err != nil {
			return err
		}

		parents := make([]string, 0, len(groups))
		for parent := range groups {
			parents = append(parents, parent)
		}
		sort.Strings(parents)

		for _, parent := range parents {
			if parent == target {
				continue
			}
			group := groups[parent]
			if err := moveFiles(ctx, tx, byUUID, group.Files, target, taken); err != nil {
				return err
			}
			for _, id := range group.Dirs {
				if err := moveDirectory(ctx, tx, files, byUUID[id], target, taken); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return serviceError(logCtx, err, "move files")
	}
	logCtx.Info("Files moved")
	return nil
}

func moveFiles(ctx context.Context, tx repository.FileStore, byUUID map[string]domain.CloudStorageFile, ids []string, target string, taken map[string]bool) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		f := byUUID[id]
		if taken[f.FileName] {
			return ErrFileExists
		}
		if pathmodel.Length(target)+pathmodel.Length(f.FileName) > pathmodel.MaxPathLength {
			return ErrParamsCheckFailed.Wrap(pathmodel.ErrPathTooLong)
		}
		taken[f.FileName] = true
	}
	return tx.UpdateDirectoryPath(ctx, ids, target)
}

func moveDirectory(ctx context.Context, tx repository.FileStore, files []domain.CloudStorageFile, dir domain.CloudStorageFile, target string, taken map[string]bool) error {
	oldFull := dir.FullPath()
	if pathmodel.IsWithin(target, oldFull) {
		return ErrParamsCheckFailed.Wrap(errors.New("cannot move a directory into itself"))
	}
	if taken[dir.FileName] {
		return ErrDirectoryAlreadyExists
	}
	newFull := pathmodel.Join(target, dir.FileName)
	if pathmodel.MaxDescendantLength(files, oldFull, newFull) > pathmodel.MaxPathLength {
		return ErrParamsCheckFailed.Wrap(pathmodel.ErrPathTooLong)
	}
	taken[dir.FileName] = true

	if err := tx.UpdateDirectoryPath(ctx, []string{dir.FileUUID}, target); err != nil {
		return err
	}
	return rewriteSubtree(ctx, tx, files, oldFull, newFull)
}
