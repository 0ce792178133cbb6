package service_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/netless-io/flat-server-sub001/internal/service"
)

func TestError_IsComparesCode(t *testing.T) {
	wrapped := service.ErrRoomNotFound.Wrap(errors.New("gorm: record not found"))
	assert.ErrorIs(t, wrapped, service.ErrRoomNotFound)
	assert.NotErrorIs(t, wrapped, service.ErrRoomIsEnded)

	outer := fmt.Errorf("join: %w", wrapped)
	assert.ErrorIs(t, outer, service.ErrRoomNotFound, "经过 fmt.Errorf 包装后仍可比较")
	assert.Contains(t, wrapped.Error(), "record not found")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, service.CodeFileExists, service.CodeOf(service.ErrFileExists))
	assert.Equal(t, service.CodeCurrentProcessFailed, service.CodeOf(errors.New("boom")), "非业务错误统一为 CurrentProcessFailed")
	assert.Equal(t, 700003, int(service.CodeOf(service.ErrFileNotFound)))
}

func TestErrorCode_Retryable(t *testing.T) {
	assert.True(t, service.CodeCanRetry.Retryable())
	assert.True(t, service.CodeFileIsConverting.Retryable())
	assert.True(t, service.CodeFileIsConvertWaiting.Retryable())
	assert.False(t, service.CodeRoomNotFound.Retryable())
	assert.False(t, service.CodeFileConvertFailed.Retryable())
}
