package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

const coursewareURL = "https://courseware.example.com/lesson/1"

func TestCloudStorageService_AddURLFile(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()
	env.seedFile(t, "u", "/", "notes.txt", 7, domain.ResourceNormal)

	file, err := env.svc.AddURLFile(ctx, "u", "lesson.vf", coursewareURL, "/")
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceOnlineCourseware, file.ResourceType)
	assert.Equal(t, int64(0), file.FileSize)
	assert.Equal(t, coursewareURL, file.FileURL)

	res, err := env.svc.List(ctx, "u", "/", 1, 10, repository.OrderAsc)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.TotalUsage, "在线课件不占用容量")
	var names []string
	for _, f := range res.Files {
		names = append(names, f.FileName)
	}
	assert.ElementsMatch(t, []string{"notes.txt", "lesson.vf"}, names)

	// 重命名保留扩展名
	require.NoError(t, env.svc.Rename(ctx, "u", file.FileUUID, "intro"))
	assert.Equal(t, "/intro.vf", env.pathOf(t, "u", file.FileUUID))

	// 删除时不涉及对象存储
	require.NoError(t, env.svc.Delete(ctx, "u", []string{file.FileUUID}))
	_, err = env.store.FindUserFile(ctx, "u", file.FileUUID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	env.dispatcher.AssertNotCalled(t, "RemoveBlobs", mock.Anything, mock.Anything)

	usage, err := env.store.TotalUsage(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(7), usage)
}

func TestCloudStorageService_AddURLFile_Validation(t *testing.T) {
	env := newCloudEnv(t)
	ctx := context.Background()

	cases := map[string]struct {
		name, url, dir string
		want           error
	}{
		"suffix not allowed": {"lesson.pdf", coursewareURL, "/", service.ErrParamsCheckFailed},
		"no suffix":          {"lesson", coursewareURL, "/", service.ErrParamsCheckFailed},
		"empty url":          {"lesson.vf", "", "/", service.ErrParamsCheckFailed},
		"not a url":          {"lesson.vf", "lesson-1", "/", service.ErrParamsCheckFailed},
		"url too long":       {"lesson.vf", coursewareURL + "/" + strings.Repeat("a", 256), "/", service.ErrParamsCheckFailed},
		"bad directory":      {"lesson.vf", coursewareURL, "docs", service.ErrParamsCheckFailed},
		"missing directory":  {"lesson.vf", coursewareURL, "/docs/", service.ErrDirectoryNotExists},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.AddURLFile(ctx, "u", tc.name, tc.url, tc.dir)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
