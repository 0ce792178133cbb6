package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/hub"
	"github.com/netless-io/flat-server-sub001/internal/infra/external"
	gormpersistence "github.com/netless-io/flat-server-sub001/internal/infra/persistence/gorm"
	"github.com/netless-io/flat-server-sub001/internal/infra/setup"
	redisstate "github.com/netless-io/flat-server-sub001/internal/infra/state/redis"
	"github.com/netless-io/flat-server-sub001/internal/service"
	"github.com/netless-io/flat-server-sub001/internal/tasks"
	"github.com/netless-io/flat-server-sub001/internal/worker"
)

// reconcileSchedule 已用空间校正任务的执行周期
const reconcileSchedule = "@every 1h"

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Scheduler   *asynq.Scheduler
	Hub         *hub.Hub
	EventBus    *redisstate.RedisRoomEventBus
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	cancel         context.CancelFunc
}

// NewLogger 按配置创建 logger，生产环境输出 JSON
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	// 各层直接使用 logrus 包级函数，保持同样的格式和级别
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(level)
	return log
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := NewLogger(cfg)
	log.Infof("Logger initialized (Level: %s, Env: %s)", log.GetLevel(), cfg.Server.Env)

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(setup.MySQLOptions{
		User:     cfg.MySQL.User,
		Password: cfg.MySQL.Password,
		Host:     cfg.MySQL.Host,
		Port:     cfg.MySQL.Port,
		Database: cfg.MySQL.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}

	redisClient, err := setup.InitRedis(context.Background(), setup.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Infrastructure initialized successfully")

	// 4. 外部服务
	tokens, err := external.NewTokenService(cfg.Token.Secret, cfg.Token.RoomTTL, cfg.Token.TaskTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}
	sdkSecret := cfg.Whiteboard.SecretKey
	if sdkSecret == "" {
		sdkSecret = cfg.Token.Secret
	}
	sdkTokens, err := external.NewTokenService(sdkSecret, time.Hour, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to create whiteboard sdk token service: %w", err)
	}
	whiteboard := external.NewWhiteboardClient(cfg.Whiteboard.APIBase, cfg.Whiteboard.Timeout, sdkTokens)
	convertRegion := domain.Region(cfg.Whiteboard.ConvertRegion)
	objects, err := external.NewOSSStore(external.OSSOptions{
		AccessKeyID:     cfg.OSS.AccessKeyID,
		AccessKeySecret: cfg.OSS.AccessKeySecret,
		Endpoint:        cfg.OSS.Endpoint,
		Bucket:          cfg.OSS.Bucket,
		Region:          cfg.OSS.Region,
		Domain:          cfg.OSS.Domain,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init OSS: %w", err)
	}

	// 5. 仓库
	roomStore := gormpersistence.NewGormRoomStore(db)
	fileStore := gormpersistence.NewGormFileStore(db)
	invites := redisstate.NewRedisInviteCodeRepository(redisClient, cfg.Redis.KeyPrefix)
	presence := redisstate.NewRedisPresenceRepository(redisClient, cfg.Redis.KeyPrefix)
	uploads := redisstate.NewRedisUploadCache(redisClient, cfg.Redis.KeyPrefix)
	eventBus := redisstate.NewRedisRoomEventBus(redisClient, cfg.Redis.KeyPrefix)
	dispatcher := tasks.NewDispatcher(asynqClient)

	// 6. Services
	roomService := service.NewRoomService(roomStore, invites, presence, whiteboard, tokens, dispatcher, eventBus, loc)
	cloudStorageService := service.NewCloudStorageService(
		fileStore,
		uploads,
		objects,
		external.NewConversionClient(whiteboard),
		external.NewProjectorClient(whiteboard, convertRegion),
		tokens,
		dispatcher,
		service.CloudStorageOptions{
			Concurrent:         cfg.CloudStorage.Concurrent,
			SingleFileSize:     cfg.CloudStorage.SingleFileSize,
			TotalSize:          cfg.CloudStorage.TotalSize,
			PrefixPath:         cfg.CloudStorage.PrefixPath,
			AllowFileSuffix:    cfg.CloudStorage.AllowFileSuffix,
			AllowURLFileSuffix: cfg.CloudStorage.AllowURLFileSuffix,
			ConvertRegion:      convertRegion,
		},
	)
	log.Info("Services initialized")

	// 7. Hub 与 Worker
	hubInstance := hub.NewHub(presence, eventBus)
	workerServer := worker.NewWorkerServer(redisClientOpt, cfg.Worker.Concurrency, worker.Handlers{
		Objects:    objects,
		Renderer:   whiteboard,
		Reconciler: cloudStorageService,
	}, log)

	// 8. 路由与 HTTP Server
	router, err := NewRouter(cfg, log, redisClient, Services{
		Rooms:        roomService,
		CloudStorage: cloudStorageService,
		Hub:          hubInstance,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Application assembled successfully")
	return &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		EventBus:       eventBus,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}, nil
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go a.Hub.Run(ctx)
	go func() {
		if err := a.EventBus.Subscribe(ctx, a.Hub.Deliver); err != nil {
			a.Log.Errorf("Room event subscription stopped: %v", err)
		}
	}()
	a.Log.Info("Hub and room event subscription started")

	go a.AsynqServer.Start()
	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{
		Logger: a.Log.WithField("component", "scheduler"),
	})

	entryID, err := scheduler.Register(reconcileSchedule, tasks.NewReconcileUsageTask(), asynq.Queue("low"))
	if err != nil {
		a.Log.Errorf("Could not register usage reconcile task: %v", err)
		return
	}
	a.Log.Infof("Usage reconcile task registered with schedule '%s' (EntryID: %s)", reconcileSchedule, entryID)
	a.Scheduler = scheduler

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
		}
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 先停止接收新请求
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 停止 Hub 与事件订阅
	if a.cancel != nil {
		a.cancel()
	}

	// 3. 停止定时任务与 Worker
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 4. 关闭连接
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Errorf("Error closing database connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}
