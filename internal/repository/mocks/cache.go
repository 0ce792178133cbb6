// Package mocks 提供仓库接口的 testify mock 实现
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// UploadCache 是 repository.UploadCache 的 mock
type UploadCache struct {
	mock.Mock
}

func (m *UploadCache) SaveUpload(ctx context.Context, userUUID, fileUUID string, info repository.UploadInfo, ttl time.Duration) error {
	args := m.Called(ctx, userUUID, fileUUID, info, ttl)
	return args.Error(0)
}

func (m *UploadCache) GetUpload(ctx context.Context, userUUID, fileUUID string) (*repository.UploadInfo, error) {
	args := m.Called(ctx, userUUID, fileUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.UploadInfo), args.Error(1)
}

func (m *UploadCache) DeleteUploads(ctx context.Context, userUUID string, fileUUIDs ...string) error {
	args := m.Called(ctx, userUUID, fileUUIDs)
	return args.Error(0)
}

func (m *UploadCache) InFlightUploads(ctx context.Context, userUUID string, limit int) ([]repository.InFlightUpload, error) {
	args := m.Called(ctx, userUUID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.InFlightUpload), args.Error(1)
}

// InviteCodeRepository 是 repository.InviteCodeRepository 的 mock
type InviteCodeRepository struct {
	mock.Mock
}

func (m *InviteCodeRepository) Reserve(ctx context.Context, code, roomUUID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, code, roomUUID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *InviteCodeRepository) Resolve(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func (m *InviteCodeRepository) CodeOf(ctx context.Context, roomUUID string) (string, error) {
	args := m.Called(ctx, roomUUID)
	return args.String(0), args.Error(1)
}

func (m *InviteCodeRepository) Release(ctx context.Context, roomUUID string) error {
	args := m.Called(ctx, roomUUID)
	return args.Error(0)
}

// PresenceRepository 是 repository.PresenceRepository 的 mock
type PresenceRepository struct {
	mock.Mock
}

func (m *PresenceRepository) Join(ctx context.Context, roomUUID, userUUID string, at time.Time) error {
	args := m.Called(ctx, roomUUID, userUUID, at)
	return args.Error(0)
}

func (m *PresenceRepository) Leave(ctx context.Context, roomUUID, userUUID string) error {
	args := m.Called(ctx, roomUUID, userUUID)
	return args.Error(0)
}

func (m *PresenceRepository) Count(ctx context.Context, roomUUID string) (int64, error) {
	args := m.Called(ctx, roomUUID)
	return args.Get(0).(int64), args.Error(1)
}
