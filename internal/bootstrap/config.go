package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用配置，来源依次为默认值、config.yaml、环境变量 (如 MYSQL_HOST)
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	MySQL        MySQLConfig        `mapstructure:"mysql"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Admin        AdminConfig        `mapstructure:"admin"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Whiteboard   WhiteboardConfig   `mapstructure:"whiteboard"`
	Token        TokenConfig        `mapstructure:"token"`
	CloudStorage CloudStorageConfig `mapstructure:"cloud_storage"`
	OSS          OSSConfig          `mapstructure:"oss"`
	Schedule     ScheduleConfig     `mapstructure:"schedule"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // development / production
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MySQLConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	DB       string `mapstructure:"db"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

// AdminConfig Secret 为空时不注册管理员路由
type AdminConfig struct {
	Secret string `mapstructure:"secret"`
}

type RateLimitConfig struct {
	Max    int           `mapstructure:"max"`
	Window time.Duration `mapstructure:"window"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type WhiteboardConfig struct {
	APIBase       string        `mapstructure:"api_base"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	ConvertRegion string        `mapstructure:"convert_region"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// TokenConfig Secret 为空时沿用 jwt.secret
type TokenConfig struct {
	Secret  string        `mapstructure:"secret"`
	RoomTTL time.Duration `mapstructure:"room_ttl"`
	TaskTTL time.Duration `mapstructure:"task_ttl"`
}

type CloudStorageConfig struct {
	Concurrent      int      `mapstructure:"concurrent"`
	SingleFileSize  int64    `mapstructure:"single_file_size"`
	TotalSize       int64    `mapstructure:"total_size"`
	PrefixPath      string   `mapstructure:"prefix_path"`
	AllowFileSuffix []string `mapstructure:"allow_file_suffix"`
	// 在线课件 (url-cloud) 允许的扩展名
	AllowURLFileSuffix []string `mapstructure:"allow_url_file_suffix"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	Domain          string `mapstructure:"domain"`
}

type ScheduleConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"server.port":                    "8080",
		"server.env":                     "development",
		"log.level":                      "info",
		"mysql.user":                     "",
		"mysql.password":                 "",
		"mysql.host":                     "127.0.0.1",
		"mysql.port":                     "3306",
		"mysql.db":                       "flat_server",
		"redis.addr":                     "",
		"redis.password":                 "",
		"redis.db":                       0,
		"redis.key_prefix":               "flat:",
		"jwt.secret":                     "",
		"jwt.expiry_hours":               24 * 30,
		"admin.secret":                   "",
		"ratelimit.max":                  100,
		"ratelimit.window":               time.Second,
		"cors.allowed_origins":           []string{"http://localhost:3000"},
		"whiteboard.api_base":            "https://api.netless.link/v5",
		"whiteboard.access_key":          "",
		"whiteboard.secret_key":          "",
		"whiteboard.convert_region":      "cn-hz",
		"whiteboard.timeout":             10 * time.Second,
		"token.secret":                   "",
		"token.room_ttl":                 24 * time.Hour,
		"token.task_ttl":                 24 * time.Hour,
		"cloud_storage.concurrent":       3,
		"cloud_storage.single_file_size": 500 * 1024 * 1024,
		"cloud_storage.total_size":       2 * 1024 * 1024 * 1024,
		"cloud_storage.prefix_path":      "cloud-storage",
		"cloud_storage.allow_file_suffix": []string{
			"ppt", "pptx", "doc", "docx", "pdf", "png", "jpg", "jpeg", "gif",
			"mp3", "mp4", "ice", "vf",
		},
		"cloud_storage.allow_url_file_suffix": []string{"vf"},
		"oss.endpoint":                        "https://oss-cn-hangzhou.aliyuncs.com",
		"oss.region":                          "cn-hangzhou",
		"oss.bucket":                          "",
		"oss.access_key_id":                   "",
		"oss.access_key_secret":               "",
		"oss.domain":                          "",
		"schedule.timezone":                   "Asia/Shanghai",
		"worker.concurrency":                  10,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// LoadConfig 加载配置。.env 与 config.yaml 都是可选的。
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decodeConfig(v)
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr (REDIS_ADDR) must be set")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret (JWT_SECRET) must be set")
	}
	if cfg.Token.Secret == "" {
		cfg.Token.Secret = cfg.JWT.Secret
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		logrus.Warnf("Invalid log.level '%s', using default 'info'", cfg.Log.Level)
		cfg.Log.Level = "info"
	}
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return nil, fmt.Errorf("invalid schedule.timezone %q: %w", cfg.Schedule.Timezone, err)
	}
	return cfg, nil
}

// IsProduction 是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
