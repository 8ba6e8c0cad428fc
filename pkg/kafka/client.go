// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"rag-pipeline-go/internal/config"
	"rag-pipeline-go/pkg/log"
	"rag-pipeline-go/pkg/tasks"
)

// MaxAttempts 是单个任务的处理次数上限，达到后提交 offset 放弃该消息。
const MaxAttempts = 3

// TaskProcessor defines the interface for any service that can process an ingest task.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, task tasks.IngestTask) error
}

// Producer 发送入库任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg.Brokers)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Produce 发送一个入库任务到 Kafka，以 doc_id 作为消息 key。
func (p *Producer) Produce(ctx context.Context, task tasks.IngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.DocID),
		Value: taskBytes,
	})
}

// Close 关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// messageReader 是 Consumer 依赖的 kafka.Reader 方法子集。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer 消费入库任务。失败的任务在原地重试，最多 MaxAttempts 次后提交 offset 放弃。
// rdb 不为 nil 时失败次数同时记录在 Redis 中，进程重启后继续累计。
type Consumer struct {
	reader       messageReader
	topic        string
	processor    TaskProcessor
	rdb          *redis.Client
	retryBackoff time.Duration
}

// NewConsumer 创建消费者。
func NewConsumer(cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: r, topic: cfg.Topic, processor: processor, rdb: rdb, retryBackoff: time.Second}
}

// Run 阻塞消费直到 ctx 取消。
func (c *Consumer) Run(ctx context.Context) {
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}
		log.Infof("收到 Kafka 消息: offset %d", m.Offset)
		c.handle(ctx, m)
	}
}

// handle 处理一条消息。同一分区后续 offset 的提交会覆盖这条消息，所以失败时必须在这里重试完。
func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var task tasks.IngestTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		c.commit(ctx, m)
		return
	}

	log.Infof("开始处理入库任务: DocID=%s, FileName=%s", task.DocID, task.FileName)
	failures := 0
	for {
		err := c.processor.ProcessTask(ctx, task)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			// 关闭中，不提交 offset，重启后重新投递
			log.Warnf("消费者关闭，入库任务未完成: DocID=%s", task.DocID)
			return
		}
		failures++
		attempts := c.recordFailure(ctx, task.DocID, failures)
		log.Errorf("处理入库任务失败: DocID=%s, 第 %d 次, Error: %v", task.DocID, attempts, err)
		if attempts >= MaxAttempts {
			log.Errorf("入库任务多次失败(>=%d)，提交 offset 终止重试: DocID=%s", MaxAttempts, task.DocID)
			c.clearFailures(ctx, task.DocID)
			c.commit(ctx, m)
			return
		}
		if !sleep(ctx, c.retryBackoff*time.Duration(attempts)) {
			return
		}
	}

	log.Infof("入库任务处理成功: DocID=%s", task.DocID)
	c.clearFailures(ctx, task.DocID)
	c.commit(ctx, m)
}

// recordFailure 返回该任务累计的失败次数。Redis 不可用时只用本次进程内的计数。
func (c *Consumer) recordFailure(ctx context.Context, docID string, local int) int {
	if c.rdb == nil {
		return local
	}
	key := attemptsKey(docID)
	attempts, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Warnf("记录失败次数失败: DocID=%s, error: %v", docID, err)
		return local
	}
	_ = c.rdb.Expire(ctx, key, 24*time.Hour).Err()
	if int(attempts) > local {
		return int(attempts)
	}
	return local
}

func (c *Consumer) clearFailures(ctx context.Context, docID string) {
	if c.rdb != nil {
		_ = c.rdb.Del(ctx, attemptsKey(docID)).Err()
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func attemptsKey(docID string) string {
	return fmt.Sprintf("kafka:attempts:%s", docID)
}

func brokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
