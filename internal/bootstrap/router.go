package bootstrap

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	httpHandler "github.com/netless-io/flat-server-sub001/internal/handler/http"
	wsHandler "github.com/netless-io/flat-server-sub001/internal/handler/websocket"
	"github.com/netless-io/flat-server-sub001/internal/hub"
	"github.com/netless-io/flat-server-sub001/internal/middleware"
)

// Services 路由依赖的业务服务
type Services struct {
	Rooms        httpHandler.RoomService
	CloudStorage httpHandler.CloudStorageService
	Hub          *hub.Hub
}

// NewRouter 组装 gin Engine：恢复、日志、CORS、鉴权、限流以及全部路由
func NewRouter(cfg *Config, log *logrus.Logger, redisClient *redis.Client, svc Services) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := httpHandler.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	roomHandler := httpHandler.NewRoomHandler(svc.Rooms)
	cloudStorageHandler := httpHandler.NewCloudStorageHandler(svc.CloudStorage)
	websocketHandler := wsHandler.NewWebSocketHandler(svc.Hub, svc.Rooms, cfg.CORS.AllowedOrigins)

	auth := middleware.Auth(cfg.JWT.Secret)
	limit := middleware.RateLimit(redisClient, cfg.Redis.KeyPrefix, cfg.RateLimit.Max, cfg.RateLimit.Window)

	v1 := router.Group("/v1", auth, limit)
	roomHandler.Register(v1)
	cloudStorageHandler.Register(v1)

	if cfg.Admin.Secret != "" {
		roomHandler.RegisterAdmin(router.Group("/v1/admin", middleware.AdminSecret(cfg.Admin.Secret)))
	} else {
		log.Warn("admin.secret not set, admin routes disabled")
	}

	router.GET("/ws/rooms/:roomUUID", auth, websocketHandler.HandleConnection)
	router.GET("/health-check", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": 0}) })
	return router, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		allowAll = allowAll || o == "*"
	}
	if allowAll {
		c.AllowOriginFunc = func(string) bool { return true }
		return c
	}
	c.AllowOrigins = origins
	return c
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})
		if user := c.GetString("user_uuid"); user != "" {
			entry = entry.WithField("user_uuid", user)
		}

		switch {
		case errorMessage != "":
			entry.Error(errorMessage)
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
