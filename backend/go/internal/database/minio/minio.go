package minio

import (
	"context"
	"fmt"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// New 创建 MinIO 客户端，并确保配置的存储桶存在。
func New(ctx context.Context, cfg config.MinIOConfig, log *logger.Logger) (*minio.Client, error) {
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("无法创建 MinIO 客户端: %w", err)
	}

	exists, err := c.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("MinIO 初始化健康检查失败: %w", err)
	}
	if !exists {
		if err := c.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建存储桶 '%s' 失败: %w", cfg.Bucket, err)
		}
	}
	if log != nil {
		log.WithPayload(map[string]interface{}{"endpoint": cfg.Endpoint, "bucket": cfg.Bucket}).Info("minio connected")
	}
	return c, nil
}

// HealthCheck 检查 MinIO 连接的健康状况。
func HealthCheck(ctx context.Context, c *minio.Client) error {
	if c == nil {
		return fmt.Errorf("MinIO 客户端未初始化")
	}
	if _, err := c.ListBuckets(ctx); err != nil {
		return fmt.Errorf("MinIO 健康检查失败: %w", err)
	}
	return nil
}
