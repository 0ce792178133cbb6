package service

import (
	"context"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/pathmodel"
	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// Rename 重命名文件或目录。普通文件保留原来的扩展名。
func (s *CloudStorageService) Rename(ctx context.Context, userUUID, fileUUID, newName string) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "file_uuid": fileUUID, "new_name": newName})

	file, err := s.files.FindUserFile(ctx, userUUID, fileUUID)
	if err != nil {
		return fileLookupError(logCtx, err)
	}
	if file.IsDirectory() {
		return s.RenameDirectory(ctx, userUUID, file.DirectoryPath, file.FileName, newName)
	}

	if ext := path.Ext(file.FileName); ext != "" && !strings.EqualFold(path.Ext(newName), ext) {
		newName += ext
	}
	if !pathmodel.ValidFileName(newName) {
		return ErrParamsCheckFailed
	}
	if newName == file.FileName {
		return nil
	}

	err = s.files.Transaction(ctx, func(tx repository.FileStore) error {
		exists, err := tx.EntryExists(ctx, userUUID, file.DirectoryPath, newName)
		if err != nil {
			return err
		}
		if exists {
			return ErrFileExists
		}
		return tx.RenameFile(ctx, fileUUID, newName)
	})
	if err != nil {
		return serviceError(logCtx, err, "rename file")
	}
	logCtx.Info("File renamed")
	return nil
}

// Delete 删除文件和目录 (目录连同整个子树)，同步扣减已用空间。
// 对象存储中的文件交给后台任务删除，失败只记录日志。
func (s *CloudStorageService) Delete(ctx context.Context, userUUID string, fileUUIDs []string) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "count": len(fileUUIDs)})
	if len(fileUUIDs) == 0 {
		return ErrParamsCheckFailed
	}

	var blobs []string
	err := s.files.Transaction(ctx, func(tx repository.FileStore) error {
		files, err := tx.ListUserFiles(ctx, userUUID)
		if err != nil {
			return err
		}
		byUUID := make(map[string]domain.CloudStorageFile, len(files))
		for _, f := range files {
			byUUID[f.FileUUID] = f
		}

		selected := make(map[string]domain.CloudStorageFile)
		for _, id := range fileUUIDs {
			f, ok := byUUID[id]
			if !ok {
				return ErrFileNotFound
			}
			selected[id] = f
			if f.IsDirectory() {
				for _, child := range pathmodel.PrefixMatch(files, f.FullPath()) {
					selected[child.FileUUID] = child
				}
			}
		}

		ids := make([]string, 0, len(selected))
		var freed int64
		for id, f := range selected {
			ids = append(ids, id)
			if f.IsDirectory() {
				continue
			}
			freed += f.FileSize
			if f.ResourceType.StoredInOSS() {
				if p := s.objectPathOf(f.FileURL); p != "" {
					blobs = append(blobs, p)
				}
			}
		}

		total, err := tx.LockTotalUsage(ctx, userUUID)
		if err != nil {
			return err
		}
		if err := tx.SoftDeleteFiles(ctx, userUUID, ids); err != nil {
			return err
		}
		total -= freed
		if total < 0 {
			total = 0
		}
		return tx.SetTotalUsage(ctx, userUUID, total)
	})
	if err != nil {
		return serviceError(logCtx, err, "delete files")
	}

	if len(blobs) > 0 {
		if err := s.dispatcher.RemoveBlobs(ctx, blobs); err != nil {
			logCtx.WithError(err).Warn("Failed to enqueue blob removal")
		}
	}
	logCtx.WithField("blobs", len(blobs)).Info("Files deleted")
	return nil
}

// objectPathOf 从文件 URL 中取出对象存储路径，URL 不属于当前域名时返回空串
func (s *CloudStorageService) objectPathOf(fileURL string) string {
	prefix := strings.TrimSuffix(s.objects.Domain(), "/") + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return ""
	}
	return strings.TrimPrefix(fileURL, prefix)
}
