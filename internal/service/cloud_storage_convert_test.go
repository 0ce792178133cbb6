package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

func (e *cloudEnv) convertStep(t *testing.T, user, fileUUID string) domain.ConvertStep {
	t.Helper()
	f, err := e.store.FindUserFile(context.Background(), user, fileUUID)
	require.NoError(t, err)
	payload, err := f.DecodePayload()
	require.NoError(t, err)
	return payload.ConvertStep
}

func TestCloudStorageService_Convert(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	doc := env.seedFile(t, "u", "/", "lesson.pdf", 1, domain.ResourceWhiteboardConvert)

	env.converter.On("Create", ctx, domain.RegionCNHZ, doc.FileURL).Return("task-1", nil).Once()
	env.tokens.On("TaskToken", "task-1").Return("task-token", nil).Once()

	started, err := env.svc.ConvertStart(ctx, "u", doc.FileUUID)
	require.NoError(t, err)
	assert.Equal(t, "task-1", started.TaskUUID)
	assert.Equal(t, "task-token", started.TaskToken)
	assert.Equal(t, domain.ConvertStepConverting, env.convertStep(t, "u", doc.FileUUID))

	// 只能从 None 开始
	_, err = env.svc.ConvertStart(ctx, "u", doc.FileUUID)
	assert.ErrorIs(t, err, service.ErrFileNotIsConvertNone)

	env.converter.On("Query", ctx, domain.RegionCNHZ, "task-1", doc.FileURL).Return(service.ConvertWaiting, nil).Once()
	err = env.svc.ConvertFinish(ctx, "u", doc.FileUUID)
	assert.ErrorIs(t, err, service.ErrFileIsConvertWaiting)

	env.converter.On("Query", ctx, domain.RegionCNHZ, "task-1", doc.FileURL).Return(service.ConvertConverting, nil).Once()
	err = env.svc.ConvertFinish(ctx, "u", doc.FileUUID)
	require.ErrorIs(t, err, service.ErrFileIsConverting)
	assert.True(t, service.CodeOf(err).Retryable())

	env.converter.On("Query", ctx, domain.RegionCNHZ, "task-1", doc.FileURL).Return(service.ConvertFinished, nil).Once()
	require.NoError(t, env.svc.ConvertFinish(ctx, "u", doc.FileUUID))
	assert.Equal(t, domain.ConvertStepDone, env.convertStep(t, "u", doc.FileUUID))

	// Done 之后重复调用不再查询
	require.NoError(t, env.svc.ConvertFinish(ctx, "u", doc.FileUUID))
	env.converter.AssertExpectations(t)
	env.tokens.AssertExpectations(t)
}

func TestCloudStorageService_ConvertStart_UsesProjector(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	doc := env.seedFile(t, "u", "/", "deck.pptx", 1, domain.ResourceWhiteboardProjector)

	env.projector.On("Create", ctx, domain.RegionCNHZ, doc.FileURL).Return("task-p", nil).Once()
	env.tokens.On("TaskToken", "task-p").Return("tt", nil).Once()

	_, err := env.svc.ConvertStart(ctx, "u", doc.FileUUID)
	require.NoError(t, err)
	env.projector.AssertExpectations(t)
}

func TestCloudStorageService_ConvertStart_Failure(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	doc := env.seedFile(t, "u", "/", "lesson.pdf", 1, domain.ResourceWhiteboardConvert)

	env.converter.On("Create", ctx, domain.RegionCNHZ, doc.FileURL).Return("", errors.New("timeout")).Once()

	_, err := env.svc.ConvertStart(ctx, "u", doc.FileUUID)
	assert.ErrorIs(t, err, service.ErrFileConvertFailed)
	assert.Equal(t, domain.ConvertStepFailed, env.convertStep(t, "u", doc.FileUUID), "失败状态必须落库")

	err = env.svc.ConvertFinish(ctx, "u", doc.FileUUID)
	assert.ErrorIs(t, err, service.ErrFileNotIsConverting)
}

func TestCloudStorageService_ConvertFinish_TaskFailed(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	doc := env.seedFile(t, "u", "/", "lesson.pdf", 1, domain.ResourceWhiteboardConvert)
	require.NoError(t, env.store.UpdatePayload(ctx, doc.FileUUID, domain.FilePayload{
		Region: domain.RegionSG, ConvertStep: domain.ConvertStepConverting, TaskUUID: "task-9",
	}))

	env.converter.On("Query", ctx, domain.RegionSG, "task-9", doc.FileURL).Return(service.ConvertFail, nil).Once()
	require.NoError(t, env.svc.ConvertFinish(ctx, "u", doc.FileUUID), "失败状态落库后正常返回")
	assert.Equal(t, domain.ConvertStepFailed, env.convertStep(t, "u", doc.FileUUID))

	err := env.svc.ConvertFinish(ctx, "u", doc.FileUUID)
	assert.ErrorIs(t, err, service.ErrFileNotIsConverting)
}

func TestCloudStorageService_ConvertFinish_QueryErrorMarksFailed(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	doc := env.seedFile(t, "u", "/", "lesson.pdf", 1, domain.ResourceWhiteboardConvert)
	require.NoError(t, env.store.UpdatePayload(ctx, doc.FileUUID, domain.FilePayload{
		Region: domain.RegionCNHZ, ConvertStep: domain.ConvertStepConverting, TaskUUID: "task-3",
	}))

	env.converter.On("Query", ctx, domain.RegionCNHZ, "task-3", doc.FileURL).Return(service.ConvertStatus(""), errors.New("503")).Once()
	require.NoError(t, env.svc.ConvertFinish(ctx, "u", doc.FileUUID))
	assert.Equal(t, domain.ConvertStepFailed, env.convertStep(t, "u", doc.FileUUID))
	env.converter.AssertExpectations(t)
}

func TestCloudStorageService_Convert_NotConvertible(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	img := env.seedFile(t, "u", "/", "pic.png", 1, domain.ResourceNormal)

	_, err := env.svc.ConvertStart(ctx, "u", img.FileUUID)
	assert.ErrorIs(t, err, service.ErrParamsCheckFailed)
	_, err = env.svc.ConvertStart(ctx, "u", "missing")
	assert.ErrorIs(t, err, service.ErrFileNotFound)
}
