package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/service"
)

// RateLimit 返回一个 Gin 中间件，按登录用户 (未登录时按客户端 IP) 做固定窗口限流。
// keyPrefix 与其他 redis 键共用同一个前缀。
func RateLimit(redisClient *redis.Client, keyPrefix string, maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient == nil {
		panic("Redis client cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		subject := c.ClientIP()
		if userUUID := c.GetString(ContextUserUUID); userUUID != "" {
			subject = userUUID
		}
		key := keyPrefix + "ratelimit:" + subject
		ctx := c.Request.Context()

		// INCR 与 EXPIRE 放在同一个 pipeline
		pipe := redisClient.Pipeline()
		incrCmd := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			// redis 故障时放行，不影响业务接口
			logrus.WithError(err).Error("RateLimit: Redis Pipeline failed")
			c.Next()
			return
		}

		if incrCmd.Val() > int64(maxRequests) {
			logrus.WithField("subject", subject).Warn("RateLimit: too many requests")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status": 1,
				"code":   int(service.CodeCanRetry),
				"retry":  true,
			})
			return
		}

		c.Next()
	}
}
