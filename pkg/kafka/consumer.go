// 文件: pkg/kafka/consumer.go
// Kafka 消费者组
//
// 用于从上游 topic 接收K线入库通知，回调签名与 nats.MessageHandler 一致，
// 同一个处理函数两边都能挂。处理失败只记日志，offset 照常提交。

package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topics        []string
	OffsetInitial int64 // -1=newest, -2=oldest

	// RetryBackoff Consume 出错后重新加入前的等待
	RetryBackoff time.Duration
}

const defaultRetryBackoff = time.Second

// DefaultConsumerConfig 从最新位置开始
func DefaultConsumerConfig(brokers []string, groupID string, topics ...string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:       brokers,
		GroupID:       groupID,
		Topics:        topics,
		OffsetInitial: sarama.OffsetNewest,
		RetryBackoff:  defaultRetryBackoff,
	}
}

// MessageHandler 消息回调
type MessageHandler func(topic string, value []byte) error

// Consumer 消费者组
type Consumer struct {
	client  sarama.ConsumerGroup
	config  ConsumerConfig
	handler MessageHandler
	log     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer 创建消费者
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("create kafka consumer: brokers and topics are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = cfg.OffsetInitial
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return &Consumer{
		client:  client,
		config:  cfg,
		handler: handler,
		log:     logger.Named("kafka"),
	}, nil
}

// Start 后台消费，ctx 取消或 Stop 时退出
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		h := &groupHandler{handler: c.handler, log: c.log}
		c.consumeLoop(ctx, func(ctx context.Context) error {
			return c.client.Consume(ctx, c.config.Topics, h)
		})
	}()
	c.log.Info("consumer started", zap.String("group", c.config.GroupID), zap.Strings("topics", c.config.Topics))
}

// consumeLoop rebalance 后 Consume 正常返回，立即重新加入；
// 出错时等 RetryBackoff 再试，消费者组已关闭则退出
func (c *Consumer) consumeLoop(ctx context.Context, consume func(context.Context) error) {
	for {
		err := consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			c.log.Info("consumer group closed", zap.String("group", c.config.GroupID))
			return
		}
		if err == nil {
			continue
		}
		c.log.Error("consume", zap.Strings("topics", c.config.Topics), zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.config.RetryBackoff):
		}
	}
}

// Stop 停止并关闭
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.client.Close()
}

// =============================================================================
// sarama.ConsumerGroupHandler
// =============================================================================

type groupHandler struct {
	handler MessageHandler
	log     *zap.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.handle(msg)
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *groupHandler) handle(msg *sarama.ConsumerMessage) {
	if err := h.handler(msg.Topic, msg.Value); err != nil {
		h.log.Warn("handle message",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	}
}
