// Package mocks 提供外部能力接口的 testify mock 实现
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

type ObjectStore struct {
	mock.Mock
}

func (m *ObjectStore) PolicyTemplate(fileName, path string, size int64) (service.UploadPolicy, error) {
	args := m.Called(fileName, path, size)
	return args.Get(0).(service.UploadPolicy), args.Error(1)
}

func (m *ObjectStore) Exists(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

func (m *ObjectStore) Remove(ctx context.Context, paths []string) error {
	args := m.Called(ctx, paths)
	return args.Error(0)
}

func (m *ObjectStore) Domain() string {
	args := m.Called()
	return args.String(0)
}

type ConversionService struct {
	mock.Mock
}

func (m *ConversionService) Create(ctx context.Context, region domain.Region, resourceURL string) (string, error) {
	args := m.Called(ctx, region, resourceURL)
	return args.String(0), args.Error(1)
}

func (m *ConversionService) Query(ctx context.Context, region domain.Region, taskUUID, resourceURL string) (service.ConvertStatus, error) {
	args := m.Called(ctx, region, taskUUID, resourceURL)
	return args.Get(0).(service.ConvertStatus), args.Error(1)
}

type RoomRenderer struct {
	mock.Mock
}

func (m *RoomRenderer) CreateRoom(ctx context.Context, region domain.Region) (string, error) {
	args := m.Called(ctx, region)
	return args.String(0), args.Error(1)
}

func (m *RoomRenderer) BanRoom(ctx context.Context, region domain.Region, whiteboardRoomUUID string) error {
	args := m.Called(ctx, region, whiteboardRoomUUID)
	return args.Error(0)
}

type TokenIssuer struct {
	mock.Mock
}

func (m *TokenIssuer) RoomToken(whiteboardRoomUUID string) (string, error) {
	args := m.Called(whiteboardRoomUUID)
	return args.String(0), args.Error(1)
}

func (m *TokenIssuer) TaskToken(taskUUID string) (string, error) {
	args := m.Called(taskUUID)
	return args.String(0), args.Error(1)
}

func (m *TokenIssuer) RTCToken(roomUUID, rtcUID string) (string, error) {
	args := m.Called(roomUUID, rtcUID)
	return args.String(0), args.Error(1)
}

func (m *TokenIssuer) RTMToken(userUUID string) (string, error) {
	args := m.Called(userUUID)
	return args.String(0), args.Error(1)
}

type TaskDispatcher struct {
	mock.Mock
}

func (m *TaskDispatcher) RemoveBlobs(ctx context.Context, paths []string) error {
	args := m.Called(ctx, paths)
	return args.Error(0)
}

func (m *TaskDispatcher) BanWhiteboard(ctx context.Context, region domain.Region, whiteboardRoomUUID string) error {
	args := m.Called(ctx, region, whiteboardRoomUUID)
	return args.Error(0)
}

type RoomEventPublisher struct {
	mock.Mock
}

func (m *RoomEventPublisher) PublishRoomEvent(ctx context.Context, event domain.RoomEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
