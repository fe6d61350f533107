// Package archive keeps a copy of every indexed original in object storage.
package archive

import (
	"context"
	"fmt"
	"path/filepath"

	"minerva/backend/go/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
)

// Archive stores original files.
type Archive interface {
	Put(ctx context.Context, documentID, path string) (string, error)
	Remove(ctx context.Context, key string) error
}

// MinIO stores originals in a bucket under documents/<id>/<filename>.
type MinIO struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewMinIO 创建基于 MinIO 的原始文件归档。存储桶需已存在。
func NewMinIO(client *minio.Client, bucket string, log *logger.Logger) *MinIO {
	if log == nil {
		log = logger.Discard()
	}
	return &MinIO{client: client, bucket: bucket, log: log}
}

// Key is the object key of a document's original.
func Key(documentID, path string) string {
	return "documents/" + documentID + "/" + filepath.Base(path)
}

func (a *MinIO) Put(ctx context.Context, documentID, path string) (string, error) {
	key := Key(documentID, path)
	contentType := "application/octet-stream"
	if mtype, err := mimetype.DetectFile(path); err == nil {
		contentType = mtype.String()
	}
	info, err := a.client.FPutObject(ctx, a.bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", filepath.Base(path), err)
	}
	a.log.WithPayload(map[string]interface{}{"bucket": a.bucket, "key": key, "size": info.Size}).Debug("original archived")
	return key, nil
}

func (a *MinIO) Remove(ctx context.Context, key string) error {
	if err := a.client.RemoveObject(ctx, a.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove archived %s: %w", key, err)
	}
	return nil
}

var _ Archive = (*MinIO)(nil)
