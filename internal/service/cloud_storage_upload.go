package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/pathmodel"
	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// UploadStartInput 上传开始的参数，ConvertType 只接受空值或 WhiteboardProjector
type UploadStartInput struct {
	FileName            string
	FileSize            int64
	TargetDirectoryPath string
	ConvertType         domain.FileResourceType
}

// UploadStartResult 客户端直传对象存储需要的信息
type UploadStartResult struct {
	FileUUID    string
	OSSFilePath string
	OSSDomain   string
	Policy      UploadPolicy
}

// UploadStart 校验限额并签名后才暂存上传信息，签名失败不会占用并发名额
func (s *CloudStorageService) UploadStart(ctx context.Context, userUUID string, in UploadStartInput) (*UploadStartResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "file_name": in.FileName, "file_size": in.FileSize})

	if err := s.validateUpload(in); err != nil {
		logCtx.WithError(err).Info("Rejected upload")
		return nil, err
	}

	inflight, err := s.uploads.InFlightUploads(ctx, userUUID, s.opts.Concurrent)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load in-flight uploads")
		return nil, wrapInternal(err, "load in-flight uploads")
	}
	if len(inflight) >= s.opts.Concurrent {
		logCtx.Info("Rejected upload: concurrent limit")
		return nil, ErrUploadConcurrentLimit
	}
	usage, err := s.files.TotalUsage(ctx, userUUID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load total usage")
		return nil, wrapInternal(err, "load total usage")
	}
	if usage+sumSizes(inflight, "")+in.FileSize > s.opts.TotalSize {
		logCtx.WithField("total_usage", usage).Info("Rejected upload: not enough total usage")
		return nil, ErrNotEnoughTotalUsage
	}
	if err := s.requireDirectory(ctx, s.files, userUUID, in.TargetDirectoryPath, ErrDirectoryNotExists); err != nil {
		return nil, err
	}

	fileUUID := uuid.NewString()
	ossPath := s.objectPath(fileUUID, in.FileName, s.now())
	info := repository.UploadInfo{
		FileName:            in.FileName,
		FileSize:            in.FileSize,
		TargetDirectoryPath: in.TargetDirectoryPath,
		FileResourceType:    classifyResource(in.FileName, in.ConvertType),
		OSSFilePath:         ossPath,
	}
	policy, err := s.objects.PolicyTemplate(in.FileName, ossPath, in.FileSize)
	if err != nil {
		logCtx.WithError(err).Error("Failed to sign upload policy")
		return nil, ErrServerFail.Wrap(err)
	}

	if err := s.uploads.SaveUpload(ctx, userUUID, fileUUID, info, s.opts.UploadTTL); err != nil {
		logCtx.WithError(err).Error("Failed to save upload info")
		return nil, wrapInternal(err, "save upload info")
	}

	logCtx.WithFields(logrus.Fields{"file_uuid": fileUUID, "resource_type": info.FileResourceType}).Info("Upload started")
	return &UploadStartResult{
		FileUUID:    fileUUID,
		OSSFilePath: ossPath,
		OSSDomain:   s.objects.Domain(),
		Policy:      policy,
	}, nil
}

// UploadFinish 确认对象已经上传后写入文件记录并增加已用空间
func (s *CloudStorageService) UploadFinish(ctx context.Context, userUUID, fileUUID string) (*domain.CloudStorageFile, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "file_uuid": fileUUID})

	info, err := s.uploads.GetUpload(ctx, userUUID, fileUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logCtx.Info("Upload info not found or expired")
			return nil, ErrFileNotFound
		}
		logCtx.WithError(err).Error("Failed to load upload info")
		return nil, wrapInternal(err, "load upload info")
	}
	if err := s.requireDirectory(ctx, s.files, userUUID, info.TargetDirectoryPath, ErrDirectoryNotExists); err != nil {
		return nil, err
	}

	exists, err := s.objects.Exists(ctx, info.OSSFilePath)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check uploaded object")
		return nil, ErrServerFail.Wrap(err)
	}
	if !exists {
		logCtx.WithField("oss_file_path", info.OSSFilePath).Info("Uploaded object not found")
		return nil, ErrFileNotFound
	}

	inflight, err := s.uploads.InFlightUploads(ctx, userUUID, s.opts.Concurrent)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load in-flight uploads")
		return nil, wrapInternal(err, "load in-flight uploads")
	}
	others := sumSizes(inflight, fileUUID)

	file := &domain.CloudStorageFile{
		FileUUID:      fileUUID,
		FileName:      info.FileName,
		FileSize:      info.FileSize,
		FileURL:       strings.TrimSuffix(s.objects.Domain(), "/") + "/" + info.OSSFilePath,
		DirectoryPath: info.TargetDirectoryPath,
		ResourceType:  info.FileResourceType,
		Payload:       s.initialPayload(info.FileResourceType).JSON(),
	}
	err = s.files.Transaction(ctx, func(tx repository.FileStore) error {
		total, err := tx.LockTotalUsage(ctx, userUUID)
		if err != nil {
			return err
		}
		if total+others+info.FileSize > s.opts.TotalSize {
			return ErrNotEnoughTotalUsage
		}
		if err := tx.CreateFile(ctx, userUUID, file); err != nil {
			return err
		}
		return tx.SetTotalUsage(ctx, userUUID, total+info.FileSize)
	})
	if err != nil {
		return nil, serviceError(logCtx, err, "finish upload")
	}

	if err := s.uploads.DeleteUploads(ctx, userUUID, fileUUID); err != nil {
		logCtx.WithError(err).Warn("Failed to clear upload info")
	}
	logCtx.Info("Upload finished")
	return file, nil
}

// UploadCancel 丢弃进行中的上传，fileUUIDs 为空时丢弃该用户全部进行中的上传
func (s *CloudStorageService) UploadCancel(ctx context.Context, userUUID string, fileUUIDs []string) error {
	if err := s.uploads.DeleteUploads(ctx, userUUID, fileUUIDs...); err != nil {
		logrus.WithField("user_uuid", userUUID).WithError(err).Error("Failed to cancel uploads")
		return wrapInternal(err, "cancel uploads")
	}
	return nil
}

func (s *CloudStorageService) validateUpload(in UploadStartInput) error {
	if !pathmodel.ValidFileName(in.FileName) || !pathmodel.IsNormalized(in.TargetDirectoryPath) || in.FileSize <= 0 {
		return ErrParamsCheckFailed
	}
	if in.ConvertType != "" && in.ConvertType != domain.ResourceWhiteboardProjector {
		return ErrParamsCheckFailed.Wrap(fmt.Errorf("unsupported convert type %q", in.ConvertType))
	}
	if pathmodel.Length(in.TargetDirectoryPath)+pathmodel.Length(in.FileName) > pathmodel.MaxPathLength {
		return ErrParamsCheckFailed.Wrap(pathmodel.ErrPathTooLong)
	}
	if len(s.opts.AllowFileSuffix) > 0 && !hasAllowedSuffix(in.FileName, s.opts.AllowFileSuffix) {
		return ErrParamsCheckFailed.Wrap(fmt.Errorf("file suffix of %q not allowed", in.FileName))
	}
	if in.FileSize > s.opts.SingleFileSize {
		return ErrFileSizeTooBig
	}
	return nil
}

// hasAllowedSuffix 扩展名比较忽略大小写，allowed 中的条目可以带前导点
func hasAllowedSuffix(fileName string, allowed []string) bool {
	ext := strings.TrimPrefix(path.Ext(fileName), ".")
	if ext == "" {
		return false
	}
	for _, suffix := range allowed {
		if strings.EqualFold(strings.TrimPrefix(suffix, "."), ext) {
			return true
		}
	}
	return false
}

// objectPath {prefix}/{yyyy-MM}/{dd}/{uuid}/{uuid}{ext}
func (s *CloudStorageService) objectPath(fileUUID, fileName string, at time.Time) string {
	at = at.UTC()
	p := fmt.Sprintf("%s/%s/%s%s", at.Format("2006-01"), at.Format("02"), fileUUID+"/"+fileUUID, strings.ToLower(path.Ext(fileName)))
	if s.opts.PrefixPath == "" {
		return p
	}
	return s.opts.PrefixPath + "/" + p
}

func (s *CloudStorageService) initialPayload(resourceType domain.FileResourceType) domain.FilePayload {
	switch {
	case resourceType.Convertible():
		return domain.FilePayload{Region: s.opts.ConvertRegion, ConvertStep: domain.ConvertStepNone}
	case resourceType == domain.ResourceLocalCourseware:
		return domain.FilePayload{ConvertStep: domain.ConvertStepNone}
	}
	return domain.FilePayload{}
}

// classifyResource 按扩展名判断资源类型，要求投影转码时 ppt/pptx 使用 WhiteboardProjector
func classifyResource(fileName string, convertType domain.FileResourceType) domain.FileResourceType {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".ppt", ".pptx":
		if convertType == domain.ResourceWhiteboardProjector {
			return domain.ResourceWhiteboardProjector
		}
		return domain.ResourceWhiteboardConvert
	case ".doc", ".docx", ".pdf":
		return domain.ResourceWhiteboardConvert
	case ".ice", ".vf":
		return domain.ResourceLocalCourseware
	}
	return domain.ResourceNormal
}

// sumSizes 汇总进行中上传的大小，exclude 指定的上传不计入
func sumSizes(uploads []repository.InFlightUpload, exclude string) int64 {
	var total int64
	for _, u := range uploads {
		if u.FileUUID != exclude {
			total += u.FileSize
		}
	}
	return total
}
