package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLOptions 数据库连接参数
type MySQLOptions struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

// DSN 构建 MySQL 连接字符串，时间统一按 UTC 读写
func (o MySQLOptions) DSN() (string, error) {
	if o.User == "" {
		return "", fmt.Errorf("mysql user not set")
	}
	if o.Password == "" {
		return "", fmt.Errorf("mysql password not set")
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		o.User, o.Password, o.Host, o.Port, o.Database), nil
}

// InitDB 初始化数据库连接
func InitDB(opts MySQLOptions) (*gorm.DB, error) {
	dsn, err := opts.DSN()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	logrus.Infof("MySQL connected (%s:%s/%s)", opts.Host, opts.Port, opts.Database)
	return db, nil
}

// RedisOptions Redis 连接参数
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// InitRedis 初始化 Redis 连接并 Ping 一次
func InitRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", opts.Addr, err)
	}
	logrus.Infof("Redis connected (%s db=%d)", opts.Addr, opts.DB)
	return client, nil
}
