package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Client 持有 Kafka 管理连接和配置，按需创建 writer 与 reader。
type Client struct {
	Conn   *kafka.Conn // 用于管理的连接
	Config config.KafkaConfig
	log    *logger.Logger
}

// New 连接到 Kafka 并根据配置自动创建所有缺失的主题。
func New(cfg config.KafkaConfig, log *logger.Logger) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("未配置 Kafka brokers")
	}
	if log == nil {
		log = logger.Discard()
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("kafka 初始化连接失败: %w", err)
	}
	c := &Client{Conn: conn, Config: cfg, log: log}
	if err := c.EnsureTopics(cfg.Topics...); err != nil {
		conn.Close()
		return nil, err
	}
	log.WithPayload(map[string]interface{}{"brokers": cfg.Brokers}).Info("kafka connected")
	return c, nil
}

// EnsureTopics 创建不存在的主题。
func (c *Client) EnsureTopics(topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	partitions, err := c.Conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("无法读取 Kafka 分区信息: %w", err)
	}
	existing := make(map[string]struct{})
	for _, p := range partitions {
		existing[p.Topic] = struct{}{}
	}

	var toCreate []kafka.TopicConfig
	for _, topic := range topics {
		if _, ok := existing[topic]; !ok {
			toCreate = append(toCreate, kafka.TopicConfig{
				Topic:             topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			})
		}
	}
	if len(toCreate) == 0 {
		return nil
	}
	if err := c.Conn.CreateTopics(toCreate...); err != nil {
		return fmt.Errorf("自动创建 Kafka 主题失败: %w", err)
	}
	c.log.WithPayload(map[string]interface{}{"created": len(toCreate)}).Info("kafka topics created")
	return nil
}

// NewReader 为主题创建一个属于配置消费者组的 reader。
func (c *Client) NewReader(topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.Config.Brokers,
		GroupID:     c.Config.GroupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxAttempts: 10,
		Dialer: &kafka.Dialer{
			Timeout: 10 * time.Second,
		},
	})
}

// Close 关闭管理连接。
func (c *Client) Close() error {
	if c == nil || c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

// HealthCheck 检查 Kafka 连接的健康状况。
func (c *Client) HealthCheck(_ context.Context) error {
	if c == nil || c.Conn == nil {
		return fmt.Errorf("kafka 客户端未初始化，无法进行健康检查")
	}
	_, err := c.Conn.Controller()
	return err
}

// Publisher 把任意值序列化为 JSON 写入一个主题。
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher 创建主题 topic 的 Publisher。
func NewPublisher(c *Client, topic string) *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(c.Config.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}}
}

// Publish 序列化 v 并以 key 写入。相同 key 的消息落在同一分区，保持顺序。
func (p *Publisher) Publish(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: raw}); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close 关闭底层的 writer 连接。
func (p *Publisher) Close() error {
	return p.writer.Close()
}
