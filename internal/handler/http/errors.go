package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/service"
)

// HandleServiceError 把 service 层错误映射为 HTTP 状态码和稳定错误码。
// 非业务错误一律按 CurrentProcessFailed 返回，不暴露内部信息。
func HandleServiceError(c *gin.Context, err error) {
	code := service.CodeOf(err)
	status := httpStatusOf(code)

	logCtx := logrus.WithFields(logrus.Fields{
		"path": c.FullPath(),
		"code": int(code),
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		logCtx.Error("Request failed")
	} else {
		logCtx.Info("Request rejected")
	}

	ErrorResponse(c, status, int(code), code.Retryable())
}

// BindError 请求参数绑定或校验失败
func BindError(c *gin.Context, err error) {
	logrus.WithField("path", c.FullPath()).WithError(err).Info("Invalid request parameters")
	ErrorResponse(c, http.StatusBadRequest, int(service.CodeParamsCheckFailed), false)
}

func httpStatusOf(code service.ErrorCode) int {
	if code.Retryable() {
		return http.StatusConflict
	}
	switch code {
	case service.CodeParamsCheckFailed, service.CodeFileSizeTooBig:
		return http.StatusBadRequest
	case service.CodeNeedLoginAgain:
		return http.StatusUnauthorized
	case service.CodeNotPermission, service.CodeNotEnoughTotalUsage:
		return http.StatusForbidden
	case service.CodeUploadConcurrentLimit:
		return http.StatusTooManyRequests
	case service.CodeRoomNotFound, service.CodePeriodicNotFound, service.CodeRecordNotFound,
		service.CodeFileNotFound, service.CodeDirectoryNotExists, service.CodeParentDirectoryNotExists:
		return http.StatusNotFound
	case service.CodeServerFail, service.CodeFileConvertFailed:
		return http.StatusBadGateway
	case service.CodeCurrentProcessFailed:
		return http.StatusInternalServerError
	}
	// 状态不满足或资源冲突
	return http.StatusConflict
}

// currentUser 取出 Auth 中间件写入的 user_uuid，缺失时直接写 401 响应
func currentUser(c *gin.Context) (string, bool) {
	v, ok := c.Get("user_uuid")
	userUUID, _ := v.(string)
	if !ok || userUUID == "" {
		logrus.WithField("path", c.FullPath()).Warn("user_uuid not found in context, auth middleware missing?")
		ErrorResponse(c, http.StatusUnauthorized, int(service.CodeNeedLoginAgain), false)
		return "", false
	}
	return userUUID, true
}
