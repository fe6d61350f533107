package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid 表示配置内容不合法，启动阶段必须失败。
var ErrInvalid = errors.New("invalid configuration")

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
	Timezone    string `yaml:"timezone"`    // 时间上下文使用的时区 (例如: "America/Argentina/Buenos_Aires")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
	File  string `yaml:"file"`  // 交互模式下的日志文件，为空则写 stderr
}

// OllamaConfig 定义了本地 Ollama 服务的配置。
type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"` // Ollama 服务地址
	Model   string `yaml:"model"`   // 模型名称
}

// OpenAIConfig 定义了 OpenAI 兼容接口的配置。
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`  // API 密钥
	BaseURL string `yaml:"baseURL"` // 可选，兼容服务地址
	Model   string `yaml:"model"`   // 模型名称
}

// GeminiConfig 包含了 Gemini 模型的配置。
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"` // Gemini API 密钥
	Model  string `yaml:"model"`  // Gemini 模型名称
}

// AnthropicConfig 包含了 Claude 模型的配置。
type AnthropicConfig struct {
	APIKey string `yaml:"apiKey"` // Anthropic API 密钥
	Model  string `yaml:"model"`  // 模型名称
}

// LLMConfig 包含了不同LLM提供商的配置。
type LLMConfig struct {
	Provider        string               `yaml:"provider"`        // LLM提供商: "ollama", "openai", "gemini", "anthropic"
	Ollama          OllamaConfig         `yaml:"ollama"`          // Ollama 配置
	OpenAI          OpenAIConfig         `yaml:"openai"`          // OpenAI 配置
	Gemini          GeminiConfig         `yaml:"gemini"`          // Gemini 配置
	Anthropic       AnthropicConfig      `yaml:"anthropic"`       // Anthropic 配置
	Temperature     float32              `yaml:"temperature"`     // 默认生成温度
	MaxTokens       int                  `yaml:"maxTokens"`       // 默认最大生成长度
	Timeout         string               `yaml:"timeout"`         // 生成调用超时 (例如: "60s")
	ClassifyTimeout string               `yaml:"classifyTimeout"` // 分类调用超时
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuitBreaker"`  // 生成服务熔断配置
	SkipStartupPing bool                 `yaml:"skipStartupPing"` // 启动时不探测生成服务
}

// EmbeddingCacheConfig 定义了 embedding 缓存。
type EmbeddingCacheConfig struct {
	Enabled  bool   `yaml:"enabled"`  // 是否启用进程内 LRU 缓存
	Capacity int    `yaml:"capacity"` // LRU 最大条目数
	TTL      string `yaml:"ttl"`      // 条目存活时间
	Redis    bool   `yaml:"redis"`    // 是否额外使用 Redis 作为共享缓存
}

// EmbeddingConfig 包含了不同Embedding提供商的配置。
type EmbeddingConfig struct {
	Provider  string               `yaml:"provider"`  // Embedding提供商: "ollama", "openai", "gemini", "hash"
	Dimension int                  `yaml:"dimension"` // 向量维度
	Ollama    OllamaConfig         `yaml:"ollama"`    // Ollama 配置
	OpenAI    OpenAIConfig         `yaml:"openai"`    // OpenAI 配置
	Gemini    GeminiConfig         `yaml:"gemini"`    // Gemini 配置
	Timeout   string               `yaml:"timeout"`   // 单次调用超时
	Cache     EmbeddingCacheConfig `yaml:"cache"`     // 缓存配置
}

// ChromemConfig 定义了本地 chromem-go 存储。
type ChromemConfig struct {
	Path     string `yaml:"path"`     // 持久化目录，为空则只在内存中
	Compress bool   `yaml:"compress"` // 是否压缩持久化文件
}

// QdrantConfig 定义了 Qdrant REST 服务的配置。
type QdrantConfig struct {
	URL    string `yaml:"url"`    // Qdrant 服务地址
	APIKey string `yaml:"apiKey"` // API 密钥
}

// CollectionsConfig 定义了各组件使用的集合名称。
type CollectionsConfig struct {
	Facts     string `yaml:"facts"`     // 用户事实集合
	Documents string `yaml:"documents"` // 文档分块集合
}

// VectorStoreConfig 定义了向量索引后端。
type VectorStoreConfig struct {
	Backend        string               `yaml:"backend"`        // "memory", "chromem", "qdrant", "milvus"
	Timeout        string               `yaml:"timeout"`        // 单次调用超时
	Chromem        ChromemConfig        `yaml:"chromem"`        // chromem 配置
	Qdrant         QdrantConfig         `yaml:"qdrant"`         // qdrant 配置
	Collections    CollectionsConfig    `yaml:"collections"`    // 集合名称
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"` // 远程后端 (qdrant) 的熔断配置
}

// MilvusConfig 定义了 Milvus 数据库的连接和索引配置。
type MilvusConfig struct {
	Address        string `yaml:"address"`        // Milvus 服务地址
	Username       string `yaml:"username"`       // 用户名
	Password       string `yaml:"password"`       // 密码
	IndexType      string `yaml:"indexType"`      // 索引类型: "HNSW", "IVF_FLAT"
	M              int    `yaml:"m"`              // HNSW 参数 M
	EfConstruction int    `yaml:"efConstruction"` // HNSW 构建参数
	Ef             int    `yaml:"ef"`             // HNSW 搜索参数
	NList          int    `yaml:"nlist"`          // IVF_FLAT 参数
	NProbe         int    `yaml:"nprobe"`         // IVF_FLAT 搜索参数
	MaxTextLength  int    `yaml:"maxTextLength"`  // 文本字段最大长度
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address   string `yaml:"address"`   // Redis 服务器地址 (例如: "localhost:6379")
	Password  string `yaml:"password"`  // Redis 密码
	DB        int    `yaml:"db"`        // Redis 数据库编号
	KeyPrefix string `yaml:"keyPrefix"` // 键前缀
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// SQLConfig 选择关系型存储: 本地 SQLite 或 MySQL。
type SQLConfig struct {
	Driver     string      `yaml:"driver"`     // "sqlite" 或 "mysql"
	SQLitePath string      `yaml:"sqlitePath"` // SQLite 文件路径
	MySQL      MySQLConfig `yaml:"mysql"`      // MySQL 配置
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Enabled   bool   `yaml:"enabled"`   // 是否归档原始文档
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 默认存储桶名称
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topics  []string `yaml:"topics"`  // 需要自动创建的主题列表
	GroupID string   `yaml:"groupID"` // 消费者组
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	SQL    SQLConfig    `yaml:"sql"`    // 对话历史、提示词和文档目录
	Milvus MilvusConfig `yaml:"milvus"` // Milvus 数据库配置
	Redis  RedisConfig  `yaml:"redis"`  // Redis 数据库配置
	MinIO  MinIOConfig  `yaml:"minio"`  // MinIO 对象存储配置
	Kafka  KafkaConfig  `yaml:"kafka"`  // Kafka 消息队列配置
}

// PromptsConfig 定义了提示词来源。
type PromptsConfig struct {
	Source string `yaml:"source"` // "file" 或 "database"
	Path   string `yaml:"path"`   // YAML 文件路径，为空则使用内置默认提示词
	Seed   bool   `yaml:"seed"`   // database 模式下是否写入缺失的默认提示词
}

// QueueConfig 定义了事实抽取任务队列。
type QueueConfig struct {
	Backend string `yaml:"backend"` // "inprocess" 或 "kafka"
	Size    int    `yaml:"size"`    // 进程内队列长度
	Workers int    `yaml:"workers"` // 进程内消费者数量
	Topic   string `yaml:"topic"`   // Kafka 主题
}

// MemoryConfig 定义了长期记忆（事实存储）的行为。
type MemoryConfig struct {
	Enabled            bool        `yaml:"enabled"`            // 是否启用事实抽取
	ExtractionInterval int         `yaml:"extractionInterval"` // 每 N 轮对话触发一次抽取
	MinScore           float32     `yaml:"minScore"`           // 召回的最低相似度
	RecallLimit        int         `yaml:"recallLimit"`        // 每轮最多召回的事实数
	Temperature        float32     `yaml:"temperature"`        // 抽取温度
	Timeout            string      `yaml:"timeout"`            // 抽取调用超时
	Queue              QueueConfig `yaml:"queue"`              // 队列配置
}

// RetrievalConfig 定义了文档切分与检索参数。
type RetrievalConfig struct {
	ChunkSize       int     `yaml:"chunkSize"`       // 分块大小（字符）
	ChunkOverlap    int     `yaml:"chunkOverlap"`    // 分块重叠（字符）
	BatchSize       int     `yaml:"batchSize"`       // 每批 embedding 的分块数
	Concurrency     int     `yaml:"concurrency"`     // 并发 embedding 批次数
	SearchThreshold float32 `yaml:"searchThreshold"` // 检索默认阈值
	MaxChunks       int     `yaml:"maxChunks"`       // 上下文中最多包含的分块数
	MaxFileSizeMB   int     `yaml:"maxFileSizeMB"`   // 单个文件大小上限
}

// RouterConfig 定义了意图路由的参数。
type RouterConfig struct {
	KnowledgeThreshold  float32 `yaml:"knowledgeThreshold"`  // knowledge 分支的检索阈值
	HeuristicThreshold  float32 `yaml:"heuristicThreshold"`  // 启发式分类判定文档命中的阈值
	HistoryWindow       int     `yaml:"historyWindow"`       // 注入提示词的历史消息条数
	WebResults          int     `yaml:"webResults"`          // 网页搜索结果数
	ClassifyTemperature float32 `yaml:"classifyTemperature"` // 分类温度
}

// WebSearchConfig 定义了网页搜索服务。
type WebSearchConfig struct {
	Provider       string               `yaml:"provider"`       // "serper" 或 "none"
	APIKey         string               `yaml:"apiKey"`         // Serper API 密钥
	BaseURL        string               `yaml:"baseURL"`        // 服务地址
	Country        string               `yaml:"country"`        // gl 参数
	Language       string               `yaml:"language"`       // hl 参数
	Timeout        string               `yaml:"timeout"`        // 请求超时
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"` // 熔断配置
}

// ServerConfig 定义了 HTTP API 的监听配置。
type ServerConfig struct {
	Address string `yaml:"address"` // 监听地址
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Algorithm   string            `yaml:"algorithm"` // 支持: "fixedWindow", "tokenBucket"
	FixedWindow FixedWindowConfig `yaml:"fixedWindow"`
	TokenBucket TokenBucketConfig `yaml:"tokenBucket"`
}

// FixedWindowConfig 定义了固定窗口计数器算法的配置。
type FixedWindowConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // 例如: "1m", "30s"
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App         AppInfo           `yaml:"app"`         // 应用程序信息
	Logger      LoggerConfig      `yaml:"logger"`      // 日志记录器配置
	LLM         LLMConfig         `yaml:"llm"`         // LLM 配置部分
	Embedding   EmbeddingConfig   `yaml:"embedding"`   // Embedding 配置部分
	VectorStore VectorStoreConfig `yaml:"vectorStore"` // 向量索引配置
	Databases   DatabaseConfigs   `yaml:"databases"`   // 数据库配置
	Prompts     PromptsConfig     `yaml:"prompts"`     // 提示词配置
	Memory      MemoryConfig      `yaml:"memory"`      // 长期记忆配置
	Retrieval   RetrievalConfig   `yaml:"retrieval"`   // 文档检索配置
	Router      RouterConfig      `yaml:"router"`      // 路由配置
	WebSearch   WebSearchConfig   `yaml:"webSearch"`   // 网页搜索配置
	Server      ServerConfig      `yaml:"server"`      // HTTP 服务配置
	Middleware  MiddlewareConfig  `yaml:"middleware"`  // 中间件配置
}

// LoadConfig 从指定路径加载 YAML 配置文件，叠加 .env 与环境变量，填充默认值并校验。
//
// 参数:
//
//	path: YAML 配置文件的路径。为空时只使用默认值和环境变量。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体。
//	error: 如果文件读取、解析或校验失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	// .env 不存在不是错误。
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("无法加载 .env 文件: %w", err)
	}

	var cfg AppConfig
	if path != "" {
		yamlFile, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
			return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv 用环境变量覆盖密钥和少量常用字段。
func (c *AppConfig) ApplyEnv(getenv func(string) string) {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.LLM.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Embedding.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Embedding.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.LLM.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&c.WebSearch.APIKey, "SERPER_API_KEY")
	setString(&c.VectorStore.Qdrant.APIKey, "QDRANT_API_KEY")
	setString(&c.VectorStore.Qdrant.URL, "MINERVA_QDRANT_URL")
	setString(&c.LLM.Provider, "MINERVA_LLM_PROVIDER")
	setString(&c.LLM.Ollama.BaseURL, "MINERVA_OLLAMA_URL")
	setString(&c.Embedding.Provider, "MINERVA_EMBEDDING_PROVIDER")
	setString(&c.VectorStore.Backend, "MINERVA_VECTOR_BACKEND")
	setString(&c.Databases.SQL.Driver, "MINERVA_SQL_DRIVER")
	setString(&c.Databases.SQL.SQLitePath, "MINERVA_SQLITE_PATH")
	setString(&c.Databases.SQL.MySQL.Password, "MINERVA_MYSQL_PASSWORD")
	setString(&c.Databases.Redis.Password, "MINERVA_REDIS_PASSWORD")
	setString(&c.Databases.MinIO.AccessKey, "MINERVA_MINIO_ACCESS_KEY")
	setString(&c.Databases.MinIO.SecretKey, "MINERVA_MINIO_SECRET_KEY")
	setString(&c.Server.Address, "MINERVA_ADDR")
	setString(&c.Logger.Level, "MINERVA_LOG_LEVEL")
	if v := getenv("MINERVA_EXTRACTION_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Memory.ExtractionInterval = n
		}
	}
}

// ApplyDefaults 为未设置的字段填充默认值。
func (c *AppConfig) ApplyDefaults() {
	setString := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if *dst <= 0 {
			*dst = v
		}
	}
	setFloat := func(dst *float32, v float32) {
		if *dst <= 0 {
			*dst = v
		}
	}

	setString(&c.App.Name, "minerva")
	setString(&c.App.Timezone, "Local")
	setString(&c.Logger.Level, "info")

	setString(&c.LLM.Provider, "ollama")
	setString(&c.LLM.Ollama.BaseURL, "http://localhost:11434")
	setString(&c.LLM.Ollama.Model, "phi3")
	setString(&c.LLM.OpenAI.Model, "gpt-4o-mini")
	setString(&c.LLM.Gemini.Model, "gemini-1.5-flash")
	setString(&c.LLM.Anthropic.Model, "claude-3-5-haiku-latest")
	setFloat(&c.LLM.Temperature, 0.7)
	setInt(&c.LLM.MaxTokens, 1024)
	setString(&c.LLM.Timeout, "60s")
	setString(&c.LLM.ClassifyTimeout, "10s")
	c.LLM.CircuitBreaker.applyDefaults()

	setString(&c.Embedding.Provider, "ollama")
	setInt(&c.Embedding.Dimension, 384)
	setString(&c.Embedding.Ollama.BaseURL, c.LLM.Ollama.BaseURL)
	setString(&c.Embedding.Ollama.Model, "all-minilm")
	setString(&c.Embedding.OpenAI.Model, "text-embedding-3-small")
	setString(&c.Embedding.Gemini.Model, "text-embedding-004")
	setString(&c.Embedding.Timeout, "5s")
	setInt(&c.Embedding.Cache.Capacity, 2048)
	setString(&c.Embedding.Cache.TTL, "1h")

	setString(&c.VectorStore.Backend, "chromem")
	setString(&c.VectorStore.Timeout, "10s")
	setString(&c.VectorStore.Chromem.Path, "data/vectors")
	setString(&c.VectorStore.Qdrant.URL, "http://localhost:6333")
	setString(&c.VectorStore.Collections.Facts, "minerva_facts")
	setString(&c.VectorStore.Collections.Documents, "minerva_documents")
	c.VectorStore.CircuitBreaker.applyDefaults()

	setString(&c.Databases.SQL.Driver, "sqlite")
	setString(&c.Databases.SQL.SQLitePath, "data/minerva.db")
	setInt(&c.Databases.SQL.MySQL.MaxOpenConns, 10)
	setInt(&c.Databases.SQL.MySQL.MaxIdleConns, 5)
	setInt(&c.Databases.SQL.MySQL.ConnMaxLifetime, 3600)
	setString(&c.Databases.Milvus.Address, "localhost:19530")
	setString(&c.Databases.Milvus.IndexType, "HNSW")
	setInt(&c.Databases.Milvus.M, 16)
	setInt(&c.Databases.Milvus.EfConstruction, 200)
	setInt(&c.Databases.Milvus.Ef, 64)
	setInt(&c.Databases.Milvus.NList, 128)
	setInt(&c.Databases.Milvus.NProbe, 10)
	setInt(&c.Databases.Milvus.MaxTextLength, 8192)
	setString(&c.Databases.Redis.Address, "localhost:6379")
	setString(&c.Databases.Redis.KeyPrefix, "minerva:emb:")
	setString(&c.Databases.MinIO.Bucket, "minerva-documents")
	setString(&c.Databases.Kafka.GroupID, "minerva-memory")

	setString(&c.Prompts.Source, "file")

	c.Memory.applyDefaults()

	setInt(&c.Retrieval.ChunkSize, 500)
	if c.Retrieval.ChunkOverlap == 0 {
		c.Retrieval.ChunkOverlap = 50
	}
	setInt(&c.Retrieval.BatchSize, 32)
	setInt(&c.Retrieval.Concurrency, 4)
	setFloat(&c.Retrieval.SearchThreshold, 0.3)
	setInt(&c.Retrieval.MaxChunks, 5)
	setInt(&c.Retrieval.MaxFileSizeMB, 50)

	setFloat(&c.Router.KnowledgeThreshold, 0.4)
	setFloat(&c.Router.HeuristicThreshold, 0.8)
	setInt(&c.Router.HistoryWindow, 10)
	setInt(&c.Router.WebResults, 5)
	setFloat(&c.Router.ClassifyTemperature, 0.1)

	setString(&c.WebSearch.Provider, "serper")
	setString(&c.WebSearch.BaseURL, "https://google.serper.dev")
	setString(&c.WebSearch.Country, "ar")
	setString(&c.WebSearch.Language, "es")
	setString(&c.WebSearch.Timeout, "10s")
	c.WebSearch.CircuitBreaker.applyDefaults()

	setString(&c.Server.Address, ":8080")
}

func (m *MemoryConfig) applyDefaults() {
	if m.ExtractionInterval <= 0 {
		m.ExtractionInterval = 1
	}
	if m.MinScore <= 0 {
		m.MinScore = 0.5
	}
	if m.RecallLimit <= 0 {
		m.RecallLimit = 5
	}
	if m.Temperature <= 0 {
		m.Temperature = 0.3
	}
	if m.Timeout == "" {
		m.Timeout = "30s"
	}
	if m.Queue.Backend == "" {
		m.Queue.Backend = "inprocess"
	}
	if m.Queue.Size <= 0 {
		m.Queue.Size = 1000
	}
	if m.Queue.Workers <= 0 {
		m.Queue.Workers = 2
	}
	if m.Queue.Topic == "" {
		m.Queue.Topic = "minerva.fact-extraction"
	}
}

func (c *CircuitBreakerConfig) applyDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 1
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

// Validate 检查配置的取值范围和组合是否合法。
func (c *AppConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	switch c.LLM.Provider {
	case "ollama", "openai", "gemini", "anthropic":
	default:
		return invalid("unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Embedding.Provider {
	case "ollama", "openai", "gemini", "hash":
	default:
		return invalid("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.VectorStore.Backend {
	case "memory", "chromem", "qdrant", "milvus":
	default:
		return invalid("unknown vector store backend %q", c.VectorStore.Backend)
	}
	switch c.Databases.SQL.Driver {
	case "sqlite", "mysql", "memory":
	default:
		return invalid("unknown sql driver %q", c.Databases.SQL.Driver)
	}
	switch c.Prompts.Source {
	case "file", "database":
	default:
		return invalid("unknown prompts source %q", c.Prompts.Source)
	}
	switch c.Memory.Queue.Backend {
	case "inprocess", "kafka":
	default:
		return invalid("unknown memory queue backend %q", c.Memory.Queue.Backend)
	}
	if c.Memory.Queue.Backend == "kafka" && len(c.Databases.Kafka.Brokers) == 0 {
		return invalid("memory queue backend kafka requires databases.kafka.brokers")
	}
	switch c.WebSearch.Provider {
	case "serper", "none":
	default:
		return invalid("unknown web search provider %q", c.WebSearch.Provider)
	}

	if c.Embedding.Dimension <= 0 {
		return invalid("embedding dimension must be positive")
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return invalid("chunk overlap %d must be in [0, chunkSize=%d)", c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize)
	}
	for name, v := range map[string]float32{
		"memory.minScore":           c.Memory.MinScore,
		"retrieval.searchThreshold": c.Retrieval.SearchThreshold,
		"router.knowledgeThreshold": c.Router.KnowledgeThreshold,
		"router.heuristicThreshold": c.Router.HeuristicThreshold,
	} {
		if v < 0 || v > 1 {
			return invalid("%s must be within [0,1], got %v", name, v)
		}
	}

	for name, d := range map[string]string{
		"llm.timeout":         c.LLM.Timeout,
		"llm.classifyTimeout": c.LLM.ClassifyTimeout,
		"embedding.timeout":   c.Embedding.Timeout,
		"embedding.cache.ttl": c.Embedding.Cache.TTL,
		"vectorStore.timeout": c.VectorStore.Timeout,
		"memory.timeout":      c.Memory.Timeout,
		"webSearch.timeout":   c.WebSearch.Timeout,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return invalid("%s: %v", name, err)
		}
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return invalid("app.timezone: %v", err)
	}
	return nil
}

// Duration 解析时长字符串，解析失败时返回 fallback。
// 配置经过 Validate 后不会走到 fallback。
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Location 返回配置的时区，无法加载时返回 time.Local。
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
