package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

type mockRoomService struct{ mock.Mock }

func (m *mockRoomService) Create(ctx context.Context, ownerUUID string, in service.CreateRoomInput) (*service.CreateRoomResult, error) {
	args := m.Called(ctx, ownerUUID, in)
	res, _ := args.Get(0).(*service.CreateRoomResult)
	return res, args.Error(1)
}

func (m *mockRoomService) Schedule(ctx context.Context, ownerUUID string, in service.ScheduleRoomInput) (*service.ScheduleRoomResult, error) {
	args := m.Called(ctx, ownerUUID, in)
	res, _ := args.Get(0).(*service.ScheduleRoomResult)
	return res, args.Error(1)
}

func (m *mockRoomService) Join(ctx context.Context, userUUID, id string) (*service.JoinResult, error) {
	args := m.Called(ctx, userUUID, id)
	res, _ := args.Get(0).(*service.JoinResult)
	return res, args.Error(1)
}

func (m *mockRoomService) Info(ctx context.Context, roomUUID, userUUID string) (*service.RoomInfo, error) {
	args := m.Called(ctx, roomUUID, userUUID)
	res, _ := args.Get(0).(*service.RoomInfo)
	return res, args.Error(1)
}

func (m *mockRoomService) PeriodicInfo(ctx context.Context, periodicUUID, userUUID string) (*service.PeriodicInfo, error) {
	args := m.Called(ctx, periodicUUID, userUUID)
	res, _ := args.Get(0).(*service.PeriodicInfo)
	return res, args.Error(1)
}

func (m *mockRoomService) List(ctx context.Context, userUUID string, filter repository.RoomListFilter, page, size int) ([]domain.Room, error) {
	args := m.Called(ctx, userUUID, filter, page, size)
	res, _ := args.Get(0).([]domain.Room)
	return res, args.Error(1)
}

func (m *mockRoomService) Start(ctx context.Context, roomUUID, callerUUID string) error {
	return m.Called(ctx, roomUUID, callerUUID).Error(0)
}

func (m *mockRoomService) Pause(ctx context.Context, roomUUID, callerUUID string) error {
	return m.Called(ctx, roomUUID, callerUUID).Error(0)
}

func (m *mockRoomService) Stop(ctx context.Context, roomUUID, callerUUID string) error {
	return m.Called(ctx, roomUUID, callerUUID).Error(0)
}

func (m *mockRoomService) Cancel(ctx context.Context, roomUUID, userUUID string) error {
	return m.Called(ctx, roomUUID, userUUID).Error(0)
}

func (m *mockRoomService) CancelPeriodic(ctx context.Context, periodicUUID, userUUID string) error {
	return m.Called(ctx, periodicUUID, userUUID).Error(0)
}

func (m *mockRoomService) UpdateOrdinary(ctx context.Context, userUUID, roomUUID string, in service.UpdateRoomInput) error {
	return m.Called(ctx, userUUID, roomUUID, in).Error(0)
}

func (m *mockRoomService) UpdatePeriodic(ctx context.Context, userUUID string, in service.UpdatePeriodicInput) (*service.ScheduleRoomResult, error) {
	args := m.Called(ctx, userUUID, in)
	res, _ := args.Get(0).(*service.ScheduleRoomResult)
	return res, args.Error(1)
}

func (m *mockRoomService) UpdatePeriodicSubRoom(ctx context.Context, userUUID, periodicUUID, roomUUID string, begin, end time.Time) error {
	return m.Called(ctx, userUUID, periodicUUID, roomUUID, begin, end).Error(0)
}

func (m *mockRoomService) BanRooms(ctx context.Context, roomUUIDs []string) ([]string, error) {
	args := m.Called(ctx, roomUUIDs)
	res, _ := args.Get(0).([]string)
	return res, args.Error(1)
}

type mockCloudStorageService struct{ mock.Mock }

func (m *mockCloudStorageService) List(ctx context.Context, userUUID, directoryPath string, page, size int, order repository.ListOrder) (*service.ListResult, error) {
	args := m.Called(ctx, userUUID, directoryPath, page, size, order)
	res, _ := args.Get(0).(*service.ListResult)
	return res, args.Error(1)
}

func (m *mockCloudStorageService) CreateDirectory(ctx context.Context, userUUID, parent, name string) (*domain.CloudStorageFile, error) {
	args := m.Called(ctx, userUUID, parent, name)
	res, _ := args.Get(0).(*domain.CloudStorageFile)
	return res, args.Error(1)
}

func (m *mockCloudStorageService) Rename(ctx context.Context, userUUID, fileUUID, newName string) error {
	return m.Called(ctx, userUUID, fileUUID, newName).Error(0)
}

func (m *mockCloudStorageService) Move(ctx context.Context, userUUID string, fileUUIDs []string, target string) error {
	return m.Called(ctx, userUUID, fileUUIDs, target).Error(0)
}

func (m *mockCloudStorageService) Delete(ctx context.Context, userUUID string, fileUUIDs []string) error {
	return m.Called(ctx, userUUID, fileUUIDs).Error(0)
}

func (m *mockCloudStorageService) UploadStart(ctx context.Context, userUUID string, in service.UploadStartInput) (*service.UploadStartResult, error) {
	args := m.Called(ctx, userUUID, in)
	res, _ := args.Get(0).(*service.UploadStartResult)
	return res, args.Error(1)
}

func (m *mockCloudStorageService) UploadFinish(ctx context.Context, userUUID, fileUUID string) (*domain.CloudStorageFile, error) {
	args := m.Called(ctx, userUUID, fileUUID)
	res, _ := args.Get(0).(*domain.CloudStorageFile)
	return res, args.Error(1)
}

func (m *mockCloudStorageService) UploadCancel(ctx context.Context, userUUID string, fileUUIDs []string) error {
	return m.Called(ctx, userUUID, fileUUIDs).Error(0)
}

func (m *mockCloudStorageService) AddURLFile(ctx context.Context, userUUID, fileName, fileURL, directoryPath string) (*domain.CloudStorageFile, error) {
	args := m.Called(ctx, userUUID, fileName, fileURL, directoryPath)
	res, _ := args.Get(0).(*domain.CloudStorageFile)
	return res, args.Error(1)
}

func (m *mockCloudStorageService) ConvertStart(ctx context.Context, userUUID, fileUUID string) (*service.ConvertStartResult, error) {
	args := m.Called(ctx, userUUID, fileUUID)
	res, _ := args.Get(0).(*service.ConvertStartResult)
	return res, args.Error(1)
}

func (m *mockCloudStorageService) ConvertFinish(ctx context.Context, userUUID, fileUUID string) error {
	return m.Called(ctx, userUUID, fileUUID).Error(0)
}
