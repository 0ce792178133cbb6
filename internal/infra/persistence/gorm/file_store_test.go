package gormpersistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	gormpersistence "github.com/netless-io/flat-server-sub001/internal/infra/persistence/gorm"
	"github.com/netless-io/flat-server-sub001/internal/repository"
	"github.com/netless-io/flat-server-sub001/internal/testutil"
)

func newFileStore(t *testing.T) *gormpersistence.GormFileStore {
	return gormpersistence.NewGormFileStore(testutil.NewSQLiteDB(t))
}

func createFile(t *testing.T, store repository.FileStore, user string, file domain.CloudStorageFile) {
	t.Helper()
	require.NoError(t, store.CreateFile(context.Background(), user, &file))
}

func TestGormFileStore_VisibilityAndLookup(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	createFile(t, store, "u", domain.CloudStorageFile{FileUUID: "d1", FileName: "docs", DirectoryPath: "/", ResourceType: domain.ResourceDirectory})
	createFile(t, store, "u", domain.CloudStorageFile{FileUUID: "f1", FileName: "a.png", FileSize: 10, DirectoryPath: "/docs/", ResourceType: domain.ResourceNormal})
	createFile(t, store, "other", domain.CloudStorageFile{FileUUID: "f2", FileName: "b.png", FileSize: 20, DirectoryPath: "/", ResourceType: domain.ResourceNormal})

	exists, err := store.DirectoryExists(ctx, "u", "/", "docs")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.DirectoryExists(ctx, "other", "/", "docs")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = store.EntryExists(ctx, "u", "/docs/", "a.png")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = store.FindUserFile(ctx, "u", "f2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	files, err := store.ListUserFiles(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	require.NoError(t, store.SoftDeleteFiles(ctx, "u", []string{"f1"}))
	_, err = store.FindUserFile(ctx, "u", "f1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGormFileStore_ListDirectoryPaging(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	for _, name := range []string{"1", "2", "3"} {
		createFile(t, store, "u", domain.CloudStorageFile{FileUUID: "f" + name, FileName: name, DirectoryPath: "/", ResourceType: domain.ResourceNormal})
	}
	createFile(t, store, "u", domain.CloudStorageFile{FileUUID: "deep", FileName: "x", DirectoryPath: "/sub/", ResourceType: domain.ResourceNormal})

	page, err := store.ListDirectory(ctx, repository.DirectoryListQuery{UserUUID: "u", DirectoryPath: "/", Page: 1, Size: 2, Order: repository.OrderAsc})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "f1", page[0].FileUUID)

	page, err = store.ListDirectory(ctx, repository.DirectoryListQuery{UserUUID: "u", DirectoryPath: "/", Page: 2, Size: 2, Order: repository.OrderAsc})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "f3", page[0].FileUUID)
}

func TestGormFileStore_UpdatesAndPayload(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	createFile(t, store, "u", domain.CloudStorageFile{
		FileUUID: "f", FileName: "a.pptx", DirectoryPath: "/", ResourceType: domain.ResourceWhiteboardConvert,
		Payload: domain.FilePayload{Region: domain.RegionCNHZ, ConvertStep: domain.ConvertStepNone}.JSON(),
	})

	require.NoError(t, store.RenameFile(ctx, "f", "b.pptx"))
	require.NoError(t, store.UpdateDirectoryPath(ctx, []string{"f"}, "/x/"))
	require.NoError(t, store.UpdatePayload(ctx, "f", domain.FilePayload{
		Region: domain.RegionCNHZ, ConvertStep: domain.ConvertStepConverting, TaskUUID: "task", TaskToken: "tok",
	}))

	file, err := store.FindUserFile(ctx, "u", "f")
	require.NoError(t, err)
	assert.Equal(t, "b.pptx", file.FileName)
	assert.Equal(t, "/x/", file.DirectoryPath)
	payload, err := file.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, domain.ConvertStepConverting, payload.ConvertStep)
	assert.Equal(t, "task", payload.TaskUUID)
}

func TestGormFileStore_Usage(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	total, err := store.TotalUsage(ctx, "u")
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, store.SetTotalUsage(ctx, "u", 100))
	require.NoError(t, store.SetTotalUsage(ctx, "u", 250))

	err = store.Transaction(ctx, func(tx repository.FileStore) error {
		locked, err := tx.LockTotalUsage(ctx, "u")
		require.NoError(t, err)
		assert.Equal(t, int64(250), locked)
		return nil
	})
	require.NoError(t, err)

	configs, err := store.ListUsageConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)

	createFile(t, store, "u", domain.CloudStorageFile{FileUUID: "a", FileName: "a", FileSize: 30, DirectoryPath: "/", ResourceType: domain.ResourceNormal})
	createFile(t, store, "u", domain.CloudStorageFile{FileUUID: "b", FileName: "b", FileSize: 12, DirectoryPath: "/", ResourceType: domain.ResourceNormal})
	createFile(t, store, "u", domain.CloudStorageFile{FileUUID: "d", FileName: "d", DirectoryPath: "/", ResourceType: domain.ResourceDirectory})
	createFile(t, store, "v", domain.CloudStorageFile{FileUUID: "c", FileName: "c", FileSize: 7, DirectoryPath: "/", ResourceType: domain.ResourceNormal})
	require.NoError(t, store.SoftDeleteFiles(ctx, "u", []string{"b"}))

	sums, err := store.SumUsageByUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"u": 30, "v": 7}, sums)
}

func TestGormFileStore_LockTotalUsage_SeedsMissingRow(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	err := store.Transaction(ctx, func(tx repository.FileStore) error {
		locked, err := tx.LockTotalUsage(ctx, "fresh")
		require.NoError(t, err)
		assert.Zero(t, locked)
		return nil
	})
	require.NoError(t, err)

	// 首次加锁时补出用量行，后续并发事务会在这一行上排队
	configs, err := store.ListUsageConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "fresh", configs[0].UserUUID)
	assert.Zero(t, configs[0].TotalUsage)

	// 已有计数不会被补行覆盖
	require.NoError(t, store.SetTotalUsage(ctx, "fresh", 40))
	err = store.Transaction(ctx, func(tx repository.FileStore) error {
		locked, err := tx.LockTotalUsage(ctx, "fresh")
		require.NoError(t, err)
		assert.Equal(t, int64(40), locked)
		return nil
	})
	require.NoError(t, err)
}
