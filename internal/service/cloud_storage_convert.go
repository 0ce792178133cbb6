package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
)

// ConvertStartResult 转码任务信息
type ConvertStartResult struct {
	ResourceType domain.FileResourceType
	TaskUUID     string
	TaskToken    string
}

// ConvertStart 为文档创建转码任务，只允许从 None 开始。
// 创建失败时把 convertStep 标记为 Failed，这次写入不依赖任何外层事务。
func (s *CloudStorageService) ConvertStart(ctx context.Context, userUUID, fileUUID string) (*ConvertStartResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "file_uuid": fileUUID})

	file, payload, err := s.loadConvertible(ctx, logCtx, userUUID, fileUUID)
	if err != nil {
		return nil, err
	}
	if payload.ConvertStep != domain.ConvertStepNone {
		logCtx.WithField("convert_step", payload.ConvertStep).Info("Convert already started")
		return nil, ErrFileNotIsConvertNone
	}

	taskUUID, err := s.conversionFor(file.ResourceType).Create(ctx, payload.Region, file.FileURL)
	if err == nil && taskUUID == "" {
		err = errors.New("conversion service returned empty task uuid")
	}
	if err != nil {
		logCtx.WithError(err).Warn("Failed to create convert task")
		payload.ConvertStep = domain.ConvertStepFailed
		if uerr := s.files.UpdatePayload(ctx, fileUUID, payload); uerr != nil {
			logCtx.WithError(uerr).Error("Failed to mark convert failed")
		}
		return nil, ErrFileConvertFailed.Wrap(err)
	}

	taskToken, err := s.tokens.TaskToken(taskUUID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to sign task token")
		return nil, ErrServerFail.Wrap(err)
	}
	payload.TaskUUID = taskUUID
	payload.TaskToken = taskToken
	payload.ConvertStep = domain.ConvertStepConverting
	if err := s.files.UpdatePayload(ctx, fileUUID, payload); err != nil {
		logCtx.WithError(err).Error("Failed to save convert task")
		return nil, wrapInternal(err, "save convert task")
	}

	logCtx.WithField("task_uuid", taskUUID).Info("Convert started")
	return &ConvertStartResult{ResourceType: file.ResourceType, TaskUUID: taskUUID, TaskToken: taskToken}, nil
}

// ConvertFinish 查询转码任务并落库结果。已经 Done 时直接返回，客户端可以反复重试。
// 查询失败按转码失败处理；Failed 落库后正常返回，客户端从文件列表中读到失败状态。
func (s *CloudStorageService) ConvertFinish(ctx context.Context, userUUID, fileUUID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "file_uuid": fileUUID})

	file, payload, err := s.loadConvertible(ctx, logCtx, userUUID, fileUUID)
	if err != nil {
		return err
	}
	switch payload.ConvertStep {
	case domain.ConvertStepDone:
		return nil
	case domain.ConvertStepConverting:
	default:
		logCtx.WithField("convert_step", payload.ConvertStep).Info("File is not converting")
		return ErrFileNotIsConverting
	}

	status, err := s.conversionFor(file.ResourceType).Query(ctx, payload.Region, payload.TaskUUID, file.FileURL)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to query convert task, marking convert failed")
		status = ConvertFail
	}

	switch status {
	case ConvertWaiting:
		return ErrFileIsConvertWaiting
	case ConvertConverting:
		return ErrFileIsConverting
	case ConvertFinished:
		payload.ConvertStep = domain.ConvertStepDone
	default:
		payload.ConvertStep = domain.ConvertStepFailed
	}
	if err := s.files.UpdatePayload(ctx, fileUUID, payload); err != nil {
		logCtx.WithError(err).Error("Failed to save convert result")
		return wrapInternal(err, "save convert result")
	}

	logCtx.WithFields(logrus.Fields{"task_uuid": payload.TaskUUID, "convert_step": payload.ConvertStep}).Info("Convert finished")
	return nil
}

func (s *CloudStorageService) loadConvertible(ctx context.Context, logCtx *logrus.Entry, userUUID, fileUUID string) (*domain.CloudStorageFile, domain.FilePayload, error) {
	file, err := s.files.FindUserFile(ctx, userUUID, fileUUID)
	if err != nil {
		return nil, domain.FilePayload{}, fileLookupError(logCtx, err)
	}
	if !file.ResourceType.Convertible() {
		logCtx.WithField("resource_type", file.ResourceType).Info("File is not convertible")
		return nil, domain.FilePayload{}, ErrParamsCheckFailed
	}
	payload, err := file.DecodePayload()
	if err != nil {
		logCtx.WithError(err).Error("Broken file payload")
		return nil, domain.FilePayload{}, wrapInternal(err, "decode payload")
	}
	if payload.ConvertStep == "" {
		payload.ConvertStep = domain.ConvertStepNone
	}
	if payload.Region == "" {
		payload.Region = s.opts.ConvertRegion
	}
	return file, payload, nil
}

func (s *CloudStorageService) conversionFor(resourceType domain.FileResourceType) ConversionService {
	if resourceType == domain.ResourceWhiteboardProjector {
		return s.projector
	}
	return s.converter
}
