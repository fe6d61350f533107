package redis

import (
	"context"
	"fmt"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// New 创建 Redis 客户端并用 Ping 检查连接。
func New(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("无法连接到 Redis: %w", err)
	}
	if log != nil {
		log.WithPayload(map[string]interface{}{"address": cfg.Address}).Info("redis connected")
	}
	return rdb, nil
}

// HealthCheck 检查 Redis 连接的健康状况。
func HealthCheck(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return fmt.Errorf("Redis 客户端未初始化")
	}
	return rdb.Ping(ctx).Err()
}
