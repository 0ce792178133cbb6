package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 响应体中的 status 字段
const (
	statusSuccess = 0
	statusFailed  = 1
)

// SuccessResponse 统一的成功响应 {"status":0,"data":...}
func SuccessResponse(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "data": data})
}

// ErrorResponse 统一的失败响应 {"status":1,"code":...}，retry 为 true 时附带 "retry": true
func ErrorResponse(c *gin.Context, httpStatus int, code int, retry bool) {
	body := gin.H{"status": statusFailed, "code": code}
	if retry {
		body["retry"] = true
	}
	c.AbortWithStatusJSON(httpStatus, body)
}
