package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

func TestCloudStorageService_UploadStart_Projector(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()

	env.uploads.On("InFlightUploads", ctx, "u", 2).Return([]repository.InFlightUpload{}, nil).Once()
	env.uploads.On("SaveUpload", ctx, "u", mock.AnythingOfType("string"), mock.MatchedBy(func(info repository.UploadInfo) bool {
		return info.FileResourceType == domain.ResourceWhiteboardProjector &&
			info.FileName == "slides.pptx" && info.FileSize == 50
	}), mock.Anything).Return(nil).Once()
	env.objects.On("PolicyTemplate", "slides.pptx", mock.AnythingOfType("string"), int64(50)).
		Return(service.UploadPolicy{AccessKeyID: "ak", Policy: "p", Signature: "s"}, nil).Once()

	res, err := env.svc.UploadStart(ctx, "u", service.UploadStartInput{
		FileName:            "slides.pptx",
		FileSize:            50,
		TargetDirectoryPath: "/",
		ConvertType:         domain.ResourceWhiteboardProjector,
	})
	require.NoError(t, err)
	assert.Equal(t, "cloud-storage/2024-03/04/"+res.FileUUID+"/"+res.FileUUID+".pptx", res.OSSFilePath)
	assert.Equal(t, ossDomain, res.OSSDomain)
	assert.Equal(t, "s", res.Policy.Signature)

	env.uploads.AssertExpectations(t)
	env.objects.AssertExpectations(t)
}

func TestCloudStorageService_UploadStart_Limits(t *testing.T) {
	ctx := context.Background()
	input := func(name string, size int64, dir string) service.UploadStartInput {
		return service.UploadStartInput{FileName: name, FileSize: size, TargetDirectoryPath: dir}
	}

	t.Run("file too big", func(t *testing.T) {
		env := newCloudEnv(t)
		_, err := env.svc.UploadStart(ctx, "u", input("a.pdf", 101, "/"))
		assert.ErrorIs(t, err, service.ErrFileSizeTooBig)
	})

	t.Run("suffix not allowed", func(t *testing.T) {
		env := newCloudEnv(t)
		_, err := env.svc.UploadStart(ctx, "u", input("a.exe", 1, "/"))
		assert.ErrorIs(t, err, service.ErrParamsCheckFailed)
	})

	t.Run("concurrent limit", func(t *testing.T) {
		env := newCloudEnv(t)
		env.uploads.On("InFlightUploads", ctx, "u", 2).Return([]repository.InFlightUpload{
			{FileUUID: "x", FileSize: 1}, {FileUUID: "y", FileSize: 1},
		}, nil).Once()
		_, err := env.svc.UploadStart(ctx, "u", input("a.pdf", 1, "/"))
		assert.ErrorIs(t, err, service.ErrUploadConcurrentLimit)
		env.uploads.AssertExpectations(t)
	})

	t.Run("not enough total usage", func(t *testing.T) {
		env := newCloudEnv(t)
		require.NoError(t, env.store.SetTotalUsage(ctx, "u", 900))
		// 进行中的上传同样占用容量
		env.uploads.On("InFlightUploads", ctx, "u", 2).Return([]repository.InFlightUpload{
			{FileUUID: "x", FileSize: 60},
		}, nil).Once()
		_, err := env.svc.UploadStart(ctx, "u", input("a.pdf", 50, "/"))
		assert.ErrorIs(t, err, service.ErrNotEnoughTotalUsage)
	})

	t.Run("target directory missing", func(t *testing.T) {
		env := newCloudEnv(t)
		env.uploads.On("InFlightUploads", ctx, "u", 2).Return([]repository.InFlightUpload{}, nil).Once()
		_, err := env.svc.UploadStart(ctx, "u", input("a.pdf", 1, "/nope/"))
		assert.ErrorIs(t, err, service.ErrDirectoryNotExists)
	})

	t.Run("policy signing fails", func(t *testing.T) {
		env := newCloudEnv(t)
		env.uploads.On("InFlightUploads", ctx, "u", 2).Return([]repository.InFlightUpload{}, nil).Once()
		env.objects.On("PolicyTemplate", mock.Anything, mock.Anything, mock.Anything).
			Return(service.UploadPolicy{}, errors.New("bad key")).Once()
		_, err := env.svc.UploadStart(ctx, "u", input("a.pdf", 1, "/"))
		assert.ErrorIs(t, err, service.ErrServerFail)
		// 签名失败不能留下占用并发名额的上传记录
		env.uploads.AssertNotCalled(t, "SaveUpload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCloudStorageService_UploadFinish_WithoutStart(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	env.uploads.On("GetUpload", ctx, "u", "never-started").Return(nil, repository.ErrNotFound).Once()

	_, err := env.svc.UploadFinish(ctx, "u", "never-started")
	assert.ErrorIs(t, err, service.ErrFileNotFound)
	env.uploads.AssertExpectations(t)
}

func TestCloudStorageService_UploadFinish(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	info := &repository.UploadInfo{
		FileName:            "slides.pptx",
		FileSize:            40,
		TargetDirectoryPath: "/",
		FileResourceType:    domain.ResourceWhiteboardConvert,
		OSSFilePath:         "cloud-storage/2024-03/04/fid/fid.pptx",
	}
	require.NoError(t, env.store.SetTotalUsage(ctx, "u", 10))

	env.uploads.On("GetUpload", ctx, "u", "fid").Return(info, nil).Once()
	env.objects.On("Exists", ctx, info.OSSFilePath).Return(true, nil).Once()
	env.uploads.On("InFlightUploads", ctx, "u", 2).Return([]repository.InFlightUpload{{FileUUID: "fid", FileSize: 40}}, nil).Once()
	env.uploads.On("DeleteUploads", ctx, "u", []string{"fid"}).Return(nil).Once()

	file, err := env.svc.UploadFinish(ctx, "u", "fid")
	require.NoError(t, err)
	assert.Equal(t, ossDomain+"/"+info.OSSFilePath, file.FileURL)

	stored, err := env.store.FindUserFile(ctx, "u", "fid")
	require.NoError(t, err)
	payload, err := stored.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, domain.ConvertStepNone, payload.ConvertStep)
	assert.Equal(t, domain.RegionCNHZ, payload.Region)

	usage, err := env.store.TotalUsage(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(50), usage)

	env.uploads.AssertExpectations(t)
	env.objects.AssertExpectations(t)
}

func TestCloudStorageService_UploadFinish_ObjectMissing(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	info := &repository.UploadInfo{FileName: "a.txt", FileSize: 1, TargetDirectoryPath: "/", FileResourceType: domain.ResourceNormal, OSSFilePath: "p/a.txt"}

	env.uploads.On("GetUpload", ctx, "u", "fid").Return(info, nil).Once()
	env.objects.On("Exists", ctx, "p/a.txt").Return(false, nil).Once()

	_, err := env.svc.UploadFinish(ctx, "u", "fid")
	assert.ErrorIs(t, err, service.ErrFileNotFound)
}

func TestCloudStorageService_UploadCancel(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	env.uploads.On("DeleteUploads", ctx, "u", []string(nil)).Return(nil).Once()

	require.NoError(t, env.svc.UploadCancel(ctx, "u", nil))
	env.uploads.AssertExpectations(t)
}
