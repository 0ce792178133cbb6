package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/pathmodel"
	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// CloudStorageOptions 云盘限额与存储配置
type CloudStorageOptions struct {
	Concurrent      int   // 每个用户同时进行中的上传数
	SingleFileSize  int64 // 单文件上限 (字节)
	TotalSize       int64 // 每个用户的总容量 (字节)
	PrefixPath      string
	AllowFileSuffix []string // 为空表示不限制
	// 在线课件 (URL 文件) 允许的扩展名，为空时只接受 vf
	AllowURLFileSuffix []string
	ConvertRegion      domain.Region
	UploadTTL          time.Duration
}

// CloudStorageService 实现云盘的目录树、文件管理、上传握手和文档转码。
type CloudStorageService struct {
	files      repository.FileStore
	uploads    repository.UploadCache
	objects    ObjectStore
	converter  ConversionService
	projector  ConversionService
	tokens     TokenIssuer
	dispatcher TaskDispatcher
	opts       CloudStorageOptions
	now        func() time.Time
}

// NewCloudStorageService 创建 CloudStorageService 实例
func NewCloudStorageService(
	files repository.FileStore,
	uploads repository.UploadCache,
	objects ObjectStore,
	converter ConversionService,
	projector ConversionService,
	tokens TokenIssuer,
	dispatcher TaskDispatcher,
	opts CloudStorageOptions,
) *CloudStorageService {
	if files == nil || uploads == nil {
		panic("FileStore and UploadCache cannot be nil for CloudStorageService")
	}
	if objects == nil || converter == nil || projector == nil {
		panic("ObjectStore and ConversionService cannot be nil for CloudStorageService")
	}
	if tokens == nil || dispatcher == nil {
		panic("TokenIssuer and TaskDispatcher cannot be nil for CloudStorageService")
	}
	if opts.UploadTTL <= 0 {
		opts.UploadTTL = 20 * time.Minute
	}
	if opts.ConvertRegion == "" {
		opts.ConvertRegion = domain.RegionCNHZ
	}
	if len(opts.AllowURLFileSuffix) == 0 {
		opts.AllowURLFileSuffix = []string{"vf"}
	}
	opts.PrefixPath = strings.Trim(opts.PrefixPath, "/")
	return &CloudStorageService{
		files:      files,
		uploads:    uploads,
		objects:    objects,
		converter:  converter,
		projector:  projector,
		tokens:     tokens,
		dispatcher: dispatcher,
		opts:       opts,
		now:        time.Now,
	}
}

// WithClock 替换时钟，测试用
func (s *CloudStorageService) WithClock(now func() time.Time) *CloudStorageService {
	s.now = now
	return s
}

// ListResult 目录列表
type ListResult struct {
	TotalUsage int64
	Files      []domain.CloudStorageFile
}

// List 列出目录下的直接子条目
func (s *CloudStorageService) List(ctx context.Context, userUUID, directoryPath string, page, size int, order repository.ListOrder) (*ListResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "directory_path": directoryPath})

	if !pathmodel.IsNormalized(directoryPath) || page < 1 || size < 1 || size > 50 {
		return nil, ErrParamsCheckFailed
	}
	if order == "" {
		order = repository.OrderDesc
	}
	if order != repository.OrderAsc && order != repository.OrderDesc {
		return nil, ErrParamsCheckFailed.Wrap(fmt.Errorf("unknown order %q", order))
	}
	if err := s.requireDirectory(ctx, s.files, userUUID, directoryPath, ErrDirectoryNotExists); err != nil {
		return nil, err
	}

	usage, err := s.files.TotalUsage(ctx, userUUID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load total usage")
		return nil, wrapInternal(err, "load total usage")
	}
	files, err := s.files.ListDirectory(ctx, repository.DirectoryListQuery{
		UserUUID:      userUUID,
		DirectoryPath: directoryPath,
		Page:          page,
		Size:          size,
		Order:         order,
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to list directory")
		return nil, wrapInternal(err, "list directory")
	}
	return &ListResult{TotalUsage: usage, Files: files}, nil
}

// ReconcileUsage 按未删除文件重新计算每个用户的已用空间，修正发生漂移的计数。返回被修正的用户数。
func (s *CloudStorageService) ReconcileUsage(ctx context.Context) (int, error) {
	logCtx := logrus.WithField("operation", "ReconcileUsage")

	actual, err := s.files.SumUsageByUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("sum usage: %w", err)
	}
	configs, err := s.files.ListUsageConfigs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list usage configs: %w", err)
	}

	recorded := make(map[string]int64, len(configs))
	for _, c := range configs {
		recorded[c.UserUUID] = c.TotalUsage
	}
	// 有计数但已经没有文件的用户，实际用量为 0
	for user := range recorded {
		if _, ok := actual[user]; !ok {
			actual[user] = 0
		}
	}

	fixed := 0
	for user, total := range actual {
		if have, ok := recorded[user]; ok && have == total {
			continue
		}
		logCtx.WithFields(logrus.Fields{
			"user_uuid": user,
			"recorded":  recorded[user],
			"actual":    total,
		}).Warn("Total usage drifted, rewriting")
		if err := s.files.SetTotalUsage(ctx, user, total); err != nil {
			return fixed, fmt.Errorf("set total usage of %s: %w", user, err)
		}
		fixed++
	}
	logCtx.WithField("fixed", fixed).Info("Usage reconciliation finished")
	return fixed, nil
}

// requireDirectory 目录不存在时返回 missing 指定的错误
func (s *CloudStorageService) requireDirectory(ctx context.Context, store repository.FileStore, userUUID, path string, missing *Error) error {
	exists, err := directoryExists(ctx, store, userUUID, path)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "directory_path": path}).
			WithError(err).Error("Failed to check directory")
		return wrapInternal(err, "check directory")
	}
	if !exists {
		return missing
	}
	return nil
}

// directoryExists 根目录总是存在
func directoryExists(ctx context.Context, store repository.FileStore, userUUID, path string) (bool, error) {
	if path == pathmodel.Root {
		return true, nil
	}
	parent, name, err := pathmodel.Split(path)
	if err != nil {
		return false, nil
	}
	return store.DirectoryExists(ctx, userUUID, parent, name)
}

// fileLookupError 把仓库层的 not found 映射成 FileNotFound
func fileLookupError(logCtx *logrus.Entry, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		logCtx.Info("File not found")
		return ErrFileNotFound
	}
	logCtx.WithError(err).Error("Failed to load file")
	return wrapInternal(err, "load file")
}

// serviceError 业务错误记 Info，其余记 Error
func serviceError(logCtx *logrus.Entry, err error, op string) error {
	var e *Error
	if errors.As(err, &e) {
		logCtx.WithField("code", int(e.Code)).Info(op + " rejected")
		return err
	}
	logCtx.WithError(err).Error(op + " failed")
	return wrapInternal(err, op)
}
