package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"minerva/backend/go/pkg/logger"
	"minerva/backend/go/pkg/util"

	"github.com/go-redis/redis/v8"
)

// CacheOptions 配置 Cached。
type CacheOptions struct {
	Model    string        // 参与缓存键计算，切换模型后旧向量不会被复用
	Capacity int           // 进程内 LRU 条目数
	TTL      time.Duration // LRU 与 Redis 条目的存活时间
	Redis    *redis.Client // 可选的共享缓存
	Prefix   string        // Redis 键前缀
	Log      *logger.Logger
}

// Cached 在 Embedder 前面加一层 LRU 和可选的 Redis 缓存。
// 缓存读写失败只记录日志，不影响调用结果。
type Cached struct {
	inner Embedder
	lru   *util.LRUCache[string, []float32]
	rdb   *redis.Client
	opts  CacheOptions
	log   *logger.Logger
}

// NewCached 创建带缓存的 Embedder。
func NewCached(inner Embedder, opts CacheOptions) (*Cached, error) {
	lru, err := util.NewLRU[string, []float32](util.CacheConfig{
		Capacity: opts.Capacity,
		TTL:      opts.TTL,
	})
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Cached{inner: inner, lru: lru, rdb: opts.Redis, opts: opts, log: log.WithComponent("embedding-cache")}, nil
}

// Dimension 返回向量维度。
func (c *Cached) Dimension() int { return c.inner.Dimension() }

// Embed 为单个文本生成嵌入向量。
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedMany 依次查询 LRU、Redis，只把未命中的文本交给底层 Embedder。
func (c *Cached) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missing []int
	for i, t := range texts {
		keys[i] = c.key(t)
		if v, ok := c.lru.Get(keys[i]); ok {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 && c.rdb != nil {
		missing = c.fillFromRedis(ctx, keys, missing, out)
	}
	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	vecs, err := c.inner.EmbedMany(ctx, pending)
	if err != nil {
		return nil, err
	}

	var pipe redis.Pipeliner
	if c.rdb != nil {
		pipe = c.rdb.Pipeline()
	}
	for j, i := range missing {
		out[i] = vecs[j]
		c.lru.Put(keys[i], vecs[j])
		if pipe != nil {
			if raw, err := json.Marshal(vecs[j]); err == nil {
				pipe.Set(ctx, keys[i], raw, c.opts.TTL)
			}
		}
	}
	if pipe != nil {
		if _, err := pipe.Exec(ctx); err != nil {
			c.log.WithErr(err).Warn("failed to write embeddings to redis")
		}
	}
	return out, nil
}

func (c *Cached) fillFromRedis(ctx context.Context, keys []string, missing []int, out [][]float32) []int {
	lookup := make([]string, len(missing))
	for j, i := range missing {
		lookup[j] = keys[i]
	}
	vals, err := c.rdb.MGet(ctx, lookup...).Result()
	if err != nil {
		c.log.WithErr(err).Warn("failed to read embeddings from redis")
		return missing
	}
	var still []int
	for j, i := range missing {
		s, ok := vals[j].(string)
		if !ok {
			still = append(still, i)
			continue
		}
		var v []float32
		if err := json.Unmarshal([]byte(s), &v); err != nil || len(v) != c.inner.Dimension() {
			still = append(still, i)
			continue
		}
		out[i] = v
		c.lru.Put(keys[i], v)
	}
	return still
}

// Stats 返回进程内缓存的命中统计。
func (c *Cached) Stats() util.CacheStats { return c.lru.Stats() }

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.opts.Model + "\x00" + text))
	return c.opts.Prefix + hex.EncodeToString(sum[:])
}
