// 文件: pkg/nats/publisher.go
// NATS 消息发布者
// 构建完成事件走 NATS，下游 (统计刷新、告警) 订阅即可，不需要 Kafka 那样的持久化

package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher NATS 发布者
type Publisher struct {
	conn *nats.Conn
	log  *zap.Logger
}

// NewPublisher 创建发布者
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("overnight-publisher"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: conn, log: logger.Named("nats")}, nil
}

// Publish JSON 序列化后发布
func (p *Publisher) Publish(subject string, data any) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	return p.PublishRaw(subject, bytes)
}

// PublishRaw 发布原始消息
func (p *Publisher) PublishRaw(subject string, data []byte) error {
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn("publish failed", zap.String("subject", subject), zap.Error(err))
		return err
	}
	return nil
}

// Flush 等待已发布的消息送达服务器 (命令行退出前调用)
func (p *Publisher) Flush() error {
	return p.conn.Flush()
}

// Close 关闭连接
func (p *Publisher) Close() {
	p.conn.Close()
}
