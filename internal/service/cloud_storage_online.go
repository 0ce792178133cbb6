package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/pathmodel"
)

const maxCoursewareURLLength = 256

var urlValidate = validator.New()

// AddURLFile 把一个在线课件 (URL) 加入云盘。文件不在对象存储中，大小记为 0，不占用容量。
func (s *CloudStorageService) AddURLFile(ctx context.Context, userUUID, fileName, fileURL, directoryPath string) (*domain.CloudStorageFile, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "file_name": fileName, "directory_path": directoryPath})

	if !pathmodel.ValidFileName(fileName) || !pathmodel.IsNormalized(directoryPath) {
		return nil, ErrParamsCheckFailed
	}
	if !hasAllowedSuffix(fileName, s.opts.AllowURLFileSuffix) {
		logCtx.Info("Rejected url file: suffix not allowed")
		return nil, ErrParamsCheckFailed.Wrap(fmt.Errorf("url file suffix of %q not allowed", fileName))
	}
	if err := urlValidate.Var(fileURL, fmt.Sprintf("required,url,max=%d", maxCoursewareURLLength)); err != nil {
		logCtx.WithError(err).Info("Rejected url file: invalid url")
		return nil, ErrParamsCheckFailed.Wrap(errors.New("invalid courseware url"))
	}
	if pathmodel.Length(directoryPath)+pathmodel.Length(fileName) > pathmodel.MaxPathLength {
		return nil, ErrParamsCheckFailed.Wrap(pathmodel.ErrPathTooLong)
	}
	if err := s.requireDirectory(ctx, s.files, userUUID, directoryPath, ErrDirectoryNotExists); err != nil {
		return nil, err
	}

	file := &domain.CloudStorageFile{
		FileUUID:      uuid.NewString(),
		FileName:      fileName,
		FileSize:      0,
		FileURL:       fileURL,
		DirectoryPath: directoryPath,
		ResourceType:  domain.ResourceOnlineCourseware,
		Payload:       domain.FilePayload{}.JSON(),
	}
	if err := s.files.CreateFile(ctx, userUUID, file); err != nil {
		logCtx.WithError(err).Error("Failed to save url file")
		return nil, wrapInternal(err, "save url file")
	}

	logCtx.WithField("file_uuid", file.FileUUID).Info("Url file added")
	return file, nil
}
