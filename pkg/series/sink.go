// 文件: pkg/series/sink.go
// 记录流输出
//
// 构建结果交给下游: Kafka 记录流 (KafkaSink)、文件 (pkg/report)。
// 构建完成事件通过 NATS 广播 (NatsNotifier)。

package series

import (
	"context"
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"overnight.com/pkg/kafka"
	"overnight.com/pkg/market"
	"overnight.com/pkg/nats"
)

// Sink 构建结果的消费者，记录按 (symbol, trade_date) 升序传入
type Sink interface {
	Emit(ctx context.Context, res *Result) error
}

// =============================================================================
// KafkaSink
// =============================================================================

// DefaultRecordTopic 默认 topic
const DefaultRecordTopic = "overnight.series.records"

// recordMessage 一条记录一条消息，key = symbol
type recordMessage struct {
	topic string
	runID int64
	rec   *Record
}

func (m *recordMessage) Topic() string { return m.topic }
func (m *recordMessage) Key() string   { return m.rec.Symbol }

func (m *recordMessage) Value() ([]byte, error) {
	return json.Marshal(m.rec)
}

func (m *recordMessage) Headers() map[string]string {
	return map[string]string{
		"run_id":     strconv.FormatInt(m.runID, 10),
		"trade_date": market.FormatDate(m.rec.TradeDate),
	}
}

// Producer kafka.Producer 的发送部分
type Producer interface {
	Send(msg kafka.Message) error
}

// KafkaSink 把记录流推给下游聚合层
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(p Producer, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultRecordTopic
	}
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Emit(ctx context.Context, res *Result) error {
	for i := range res.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := &recordMessage{topic: s.topic, runID: res.RunID, rec: &res.Records[i]}
		if err := s.producer.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Notifier
// =============================================================================

const (
	// SubjectBarsIngested 上游导入K线后发布，watch 订阅后重算
	SubjectBarsIngested = "bars.ingested"

	// SubjectSeriesBuilt 每个品种构建完成
	SubjectSeriesBuilt = "series.built"
)

// Notifier 构建事件
type Notifier interface {
	SymbolBuilt(ctx context.Context, runID int64, summary SymbolSummary)
}

// SeriesBuiltEvent series.built 消息体
type SeriesBuiltEvent struct {
	RunID   int64         `json:"run_id"`
	Summary SymbolSummary `json:"summary"`
}

// Publisher nats.Publisher 的发布部分
type Publisher interface {
	Publish(subject string, data any) error
}

var (
	_ Publisher = (*nats.Publisher)(nil)
	_ Producer  = (*kafka.Producer)(nil)
)

// NatsNotifier 发布 series.built；发布失败只记日志，不影响构建
type NatsNotifier struct {
	pub Publisher
	log *zap.Logger
}

func NewNatsNotifier(pub Publisher, logger *zap.Logger) *NatsNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NatsNotifier{pub: pub, log: logger}
}

func (n *NatsNotifier) SymbolBuilt(ctx context.Context, runID int64, summary SymbolSummary) {
	ev := SeriesBuiltEvent{RunID: runID, Summary: summary}
	if err := n.pub.Publish(SubjectSeriesBuilt, ev); err != nil {
		n.log.Warn("publish series.built", zap.String("symbol", summary.Symbol), zap.Error(err))
	}
}
