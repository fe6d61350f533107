package milvus

import (
	"context"
	"fmt"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/pkg/logger"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// 集合字段名。所有集合共用同一套 Schema：主键、JSON 负载、向量。
const (
	FieldID      = "id"
	FieldPayload = "payload"
	FieldVector  = "embedding"
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
type MilvusClient struct {
	Client client.Client       // Milvus 客户端实例。
	Config config.MilvusConfig // Milvus 配置。
	log    *logger.Logger
}

// New 连接到 Milvus。
func New(ctx context.Context, cfg config.MilvusConfig, log *logger.Logger) (*MilvusClient, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接到 Milvus: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	log.WithPayload(map[string]interface{}{"address": cfg.Address}).Info("milvus connected")
	return &MilvusClient{Client: c, Config: cfg, log: log}, nil
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("Milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}

// EnsureCollection 确保集合存在（按给定维度、余弦距离创建并建索引）并已加载。
func (c *MilvusClient) EnsureCollection(ctx context.Context, name string, dim int) error {
	exists, err := c.Client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("检查集合是否存在时出错: %w", err)
	}
	if !exists {
		schema := entity.NewSchema().
			WithName(name).
			WithDescription("minerva " + name).
			WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeVarChar).
				WithIsPrimaryKey(true).WithMaxLength(64)).
			WithField(entity.NewField().WithName(FieldPayload).WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(int64(c.Config.MaxTextLength))).
			WithField(entity.NewField().WithName(FieldVector).WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(dim)))

		if err := c.Client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("创建集合失败: %w", err)
		}
		idx, err := c.BuildIndex()
		if err != nil {
			return err
		}
		if err := c.Client.CreateIndex(ctx, name, FieldVector, idx, false); err != nil {
			return fmt.Errorf("为字段 '%s' 创建索引失败: %w", FieldVector, err)
		}
		c.log.WithPayload(map[string]interface{}{"collection": name, "dim": dim}).Info("milvus collection created")
	}

	if err := c.Client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("加载 Milvus 集合 '%s' 失败: %w", name, err)
	}
	return nil
}

// BuildIndex 根据配置构建余弦距离的向量索引。
func (c *MilvusClient) BuildIndex() (entity.Index, error) {
	switch c.Config.IndexType {
	case "IVF_FLAT":
		return entity.NewIndexIvfFlat(entity.COSINE, c.Config.NList)
	case "HNSW", "":
		return entity.NewIndexHNSW(entity.COSINE, c.Config.M, c.Config.EfConstruction)
	case "AUTOINDEX":
		return entity.NewIndexAUTOINDEX(entity.COSINE)
	default:
		return nil, fmt.Errorf("不支持的索引类型: %s", c.Config.IndexType)
	}
}

// SearchParam 返回与索引类型匹配的搜索参数。
func (c *MilvusClient) SearchParam() (entity.SearchParam, error) {
	switch c.Config.IndexType {
	case "IVF_FLAT":
		return entity.NewIndexIvfFlatSearchParam(c.Config.NProbe)
	case "AUTOINDEX":
		return entity.NewIndexAUTOINDEXSearchParam(1)
	default:
		return entity.NewIndexHNSWSearchParam(c.Config.Ef)
	}
}
