package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	gormpersistence "github.com/netless-io/flat-server-sub001/internal/infra/persistence/gorm"
	"github.com/netless-io/flat-server-sub001/internal/repository"
	repomocks "github.com/netless-io/flat-server-sub001/internal/repository/mocks"
	"github.com/netless-io/flat-server-sub001/internal/service"
	"github.com/netless-io/flat-server-sub001/internal/service/mocks"
	"github.com/netless-io/flat-server-sub001/internal/testutil"
)

const ossDomain = "https://bucket.oss.example.com"

type cloudEnv struct {
	svc        *service.CloudStorageService
	store      *gormpersistence.GormFileStore
	uploads    *repomocks.UploadCache
	objects    *mocks.ObjectStore
	converter  *mocks.ConversionService
	projector  *mocks.ConversionService
	tokens     *mocks.TokenIssuer
	dispatcher *mocks.TaskDispatcher
}

func newCloudEnv(t *testing.T) *cloudEnv {
	t.Helper()
	env := &cloudEnv{
		store:      gormpersistence.NewGormFileStore(testutil.NewSQLiteDB(t)),
		uploads:    new(repomocks.UploadCache),
		objects:    new(mocks.ObjectStore),
		converter:  new(mocks.ConversionService),
		projector:  new(mocks.ConversionService),
		tokens:     new(mocks.TokenIssuer),
		dispatcher: new(mocks.TaskDispatcher),
	}
	env.objects.On("Domain").Return(ossDomain).Maybe()
	env.svc = service.NewCloudStorageService(
		env.store, env.uploads, env.objects, env.converter, env.projector, env.tokens, env.dispatcher,
		service.CloudStorageOptions{
			Concurrent:      2,
			SingleFileSize:  100,
			TotalSize:       1000,
			PrefixPath:      "/cloud-storage/",
			AllowFileSuffix: []string{"pdf", "pptx", "png", "txt"},
			ConvertRegion:   domain.RegionCNHZ,
		},
	).WithClock(func() time.Time { return fixedNow })
	return env
}

// seedFile 直接写入一个普通文件并累加用量
func (e *cloudEnv) seedFile(t *testing.T, user, dir, name string, size int64, rt domain.FileResourceType) *domain.CloudStorageFile {
	t.Helper()
	ctx := context.Background()
	f := &domain.CloudStorageFile{
		FileUUID:      "f-" + name + "-" + dir,
		FileName:      name,
		FileSize:      size,
		FileURL:       ossDomain + "/cloud-storage/2024-03/04/" + name,
		DirectoryPath: dir,
		ResourceType:  rt,
		Payload:       domain.FilePayload{ConvertStep: domain.ConvertStepNone}.JSON(),
	}
	require.NoError(t, e.store.CreateFile(ctx, user, f))
	total, err := e.store.TotalUsage(ctx, user)
	require.NoError(t, err)
	require.NoError(t, e.store.SetTotalUsage(ctx, user, total+size))
	return f
}

func (e *cloudEnv) pathOf(t *testing.T, user, fileUUID string) string {
	t.Helper()
	f, err := e.store.FindUserFile(context.Background(), user, fileUUID)
	require.NoError(t, err)
	return f.FullPath()
}

func TestCloudStorageService_CreateDirectory(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()

	a, err := env.svc.CreateDirectory(ctx, "u", "/", "a")
	require.NoError(t, err)
	assert.Equal(t, "/a/", a.FullPath())

	_, err = env.svc.CreateDirectory(ctx, "u", "/a/", "b")
	require.NoError(t, err)

	_, err = env.svc.CreateDirectory(ctx, "u", "/", "a")
	assert.ErrorIs(t, err, service.ErrDirectoryAlreadyExists)
	_, err = env.svc.CreateDirectory(ctx, "u", "/missing/", "c")
	assert.ErrorIs(t, err, service.ErrParentDirectoryNotExists)
	_, err = env.svc.CreateDirectory(ctx, "u", "/", "x/y")
	assert.ErrorIs(t, err, service.ErrParamsCheckFailed)
	_, err = env.svc.CreateDirectory(ctx, "u", "a/", "c")
	assert.ErrorIs(t, err, service.ErrParamsCheckFailed)

	exists, err := env.svc.DirectoryExists(ctx, "u", "/a/b/")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = env.svc.DirectoryExists(ctx, "other", "/a/")
	require.NoError(t, err)
	assert.False(t, exists, "目录按用户隔离")
}

func TestCloudStorageService_RenameDirectory_RoundTrip(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateDirectory(ctx, "u", "/", "a")
	require.NoError(t, err)
	b, err := env.svc.CreateDirectory(ctx, "u", "/a/", "b")
	require.NoError(t, err)
	file := env.seedFile(t, "u", "/a/b/", "x.txt", 1, domain.ResourceNormal)
	outside := env.seedFile(t, "u", "/", "ab.txt", 1, domain.ResourceNormal)

	require.NoError(t, env.svc.RenameDirectory(ctx, "u", "/", "a", "c"))
	assert.Equal(t, "/c/b/", env.pathOf(t, "u", b.FileUUID))
	assert.Equal(t, "/c/b/x.txt", env.pathOf(t, "u", file.FileUUID))
	assert.Equal(t, "/ab.txt", env.pathOf(t, "u", outside.FileUUID), "子树以外的条目不受影响")

	require.NoError(t, env.svc.RenameDirectory(ctx, "u", "/", "c", "a"))
	assert.Equal(t, "/a/b/x.txt", env.pathOf(t, "u", file.FileUUID), "改回原名后路径复原")

	_, err = env.svc.CreateDirectory(ctx, "u", "/", "d")
	require.NoError(t, err)
	assert.ErrorIs(t, env.svc.RenameDirectory(ctx, "u", "/", "a", "d"), service.ErrDirectoryAlreadyExists)
	assert.ErrorIs(t, env.svc.RenameDirectory(ctx, "u", "/", "zzz", "y"), service.ErrDirectoryNotExists)
}

func TestCloudStorageService_Rename(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()

	doc := env.seedFile(t, "u", "/", "report.pdf", 1, domain.ResourceWhiteboardConvert)
	env.seedFile(t, "u", "/", "taken.pdf", 1, domain.ResourceNormal)

	require.NoError(t, env.svc.Rename(ctx, "u", doc.FileUUID, "final"))
	f, err := env.store.FindUserFile(ctx, "u", doc.FileUUID)
	require.NoError(t, err)
	assert.Equal(t, "final.pdf", f.FileName, "普通文件保留扩展名")

	assert.ErrorIs(t, env.svc.Rename(ctx, "u", doc.FileUUID, "taken"), service.ErrFileExists)
	assert.ErrorIs(t, env.svc.Rename(ctx, "u", doc.FileUUID, "a/b"), service.ErrParamsCheckFailed)
	assert.ErrorIs(t, env.svc.Rename(ctx, "u", "missing", "x"), service.ErrFileNotFound)

	// 目录交给目录重命名处理
	dir, err := env.svc.CreateDirectory(ctx, "u", "/", "old")
	require.NoError(t, err)
	require.NoError(t, env.svc.Rename(ctx, "u", dir.FileUUID, "new"))
	assert.Equal(t, "/new/", env.pathOf(t, "u", dir.FileUUID))
}

func TestCloudStorageService_Move(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()

	target, err := env.svc.CreateDirectory(ctx, "u", "/", "target")
	require.NoError(t, err)
	sub, err := env.svc.CreateDirectory(ctx, "u", "/", "sub")
	require.NoError(t, err)
	inner := env.seedFile(t, "u", "/sub/", "inner.txt", 1, domain.ResourceNormal)
	x := env.seedFile(t, "u", "/", "x.txt", 1, domain.ResourceNormal)

	// 重复的 uuid 只处理一次
	require.NoError(t, env.svc.Move(ctx, "u", []string{x.FileUUID, sub.FileUUID, x.FileUUID}, "/target/"))
	assert.Equal(t, "/target/x.txt", env.pathOf(t, "u", x.FileUUID))
	assert.Equal(t, "/target/sub/", env.pathOf(t, "u", sub.FileUUID))
	assert.Equal(t, "/target/sub/inner.txt", env.pathOf(t, "u", inner.FileUUID))

	assert.ErrorIs(t, env.svc.Move(ctx, "u", []string{target.FileUUID}, "/target/sub/"), service.ErrParamsCheckFailed,
		"目录不能移动到自己的子目录")
	assert.ErrorIs(t, env.svc.Move(ctx, "u", []string{"unknown"}, "/"), service.ErrParamsCheckFailed)
	assert.ErrorIs(t, env.svc.Move(ctx, "u", []string{x.FileUUID}, "/nowhere/"), service.ErrDirectoryNotExists)

	clash := env.seedFile(t, "u", "/", "inner.txt", 1, domain.ResourceNormal)
	assert.ErrorIs(t, env.svc.Move(ctx, "u", []string{clash.FileUUID}, "/target/sub/"), service.ErrFileExists)
	assert.Equal(t, "/inner.txt", env.pathOf(t, "u", clash.FileUUID), "失败的移动整体回滚")
}

func TestCloudStorageService_Delete(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()

	dir, err := env.svc.CreateDirectory(ctx, "u", "/", "docs")
	require.NoError(t, err)
	_, err = env.svc.CreateDirectory(ctx, "u", "/docs/", "deep")
	require.NoError(t, err)
	a := env.seedFile(t, "u", "/docs/", "a.pdf", 10, domain.ResourceWhiteboardConvert)
	b := env.seedFile(t, "u", "/docs/deep/", "b.png", 20, domain.ResourceNormal)
	keep := env.seedFile(t, "u", "/", "keep.txt", 5, domain.ResourceNormal)

	env.dispatcher.On("RemoveBlobs", mock.Anything, mock.MatchedBy(func(paths []string) bool {
		return assert.ElementsMatch(t, []string{"cloud-storage/2024-03/04/a.pdf", "cloud-storage/2024-03/04/b.png"}, paths)
	})).Return(nil).Once()

	require.NoError(t, env.svc.Delete(ctx, "u", []string{dir.FileUUID}))

	for _, id := range []string{dir.FileUUID, a.FileUUID, b.FileUUID} {
		_, err := env.store.FindUserFile(ctx, "u", id)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}
	_, err = env.store.FindUserFile(ctx, "u", keep.FileUUID)
	assert.NoError(t, err)

	usage, err := env.store.TotalUsage(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(5), usage, "删除后扣减子树中文件的大小")

	assert.ErrorIs(t, env.svc.Delete(ctx, "u", []string{"unknown"}), service.ErrFileNotFound)
	env.dispatcher.AssertExpectations(t)
}

func TestCloudStorageService_List(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	env.seedFile(t, "u", "/", "a.txt", 3, domain.ResourceNormal)
	env.seedFile(t, "u", "/", "b.txt", 4, domain.ResourceNormal)

	res, err := env.svc.List(ctx, "u", "/", 1, 10, repository.OrderAsc)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.TotalUsage)
	assert.Len(t, res.Files, 2)

	_, err = env.svc.List(ctx, "u", "/missing/", 1, 10, "")
	assert.ErrorIs(t, err, service.ErrDirectoryNotExists)
	_, err = env.svc.List(ctx, "u", "/", 1, 10, "sideways")
	assert.ErrorIs(t, err, service.ErrParamsCheckFailed)
}

func TestCloudStorageService_ReconcileUsage(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	env.seedFile(t, "u", "/", "a.txt", 3, domain.ResourceNormal)
	require.NoError(t, env.store.SetTotalUsage(ctx, "u", 999))
	require.NoError(t, env.store.SetTotalUsage(ctx, "ghost", 50))

	fixed, err := env.svc.ReconcileUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)

	usage, err := env.store.TotalUsage(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage)
	usage, err = env.store.TotalUsage(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage)

	fixed, err = env.svc.ReconcileUsage(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed, "没有漂移时不改写")
}
