// 文件: pkg/series/watcher.go
// watch 模式: 增量重算 + 定时全量重算 + /metrics
//
// - 订阅 bars.ingested: 上游补录K线后，重算受影响的区间
//   某天收盘价变了会影响下一个交易日的 prev_close，所以区间末尾再往后延 RelinkDays
// - cron: 定时重算最近 RebuildDays 天的全部品种
// - 同一时刻只跑一个构建，事件排队执行

package series

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"overnight.com/pkg/market"
	"overnight.com/pkg/nats"
)

// BarsIngestedEvent bars.ingested 消息体
type BarsIngestedEvent struct {
	Symbol string `json:"symbol"`
	From   string `json:"from"` // YYYY-MM-DD
	To     string `json:"to"`
}

// WatchConfig watch 参数
type WatchConfig struct {
	// Schedule cron 表达式 (带秒)，空表示不做定时重算
	Schedule string

	// RebuildDays 定时重算覆盖最近多少天
	RebuildDays int

	// RelinkDays 事件区间之后额外重算的天数
	RelinkDays int

	// MetricsAddr 为空不启动 HTTP
	MetricsAddr string
}

// Watcher 事件驱动的重算
type Watcher struct {
	builder *Builder
	base    Options
	cfg     WatchConfig
	sinks   []Sink
	log     *zap.Logger
	now     func() time.Time

	mu   sync.Mutex // 串行化构建
	cron *cron.Cron

	ctxMu sync.RWMutex
	ctx   context.Context // Start 传入，事件触发的构建随它取消
	http  *http.Server
}

// NewWatcher base 是每次构建的模板 (Session/Filters/Workers 等)，日期与品种由事件决定
func NewWatcher(b *Builder, base Options, cfg WatchConfig, logger *zap.Logger, sinks ...Sink) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RebuildDays <= 0 {
		cfg.RebuildDays = 30
	}
	if cfg.RelinkDays <= 0 {
		cfg.RelinkDays = DefaultLookbackDays
	}
	return &Watcher{
		builder: b,
		base:    base,
		cfg:     cfg,
		sinks:   sinks,
		log:     logger.Named("watcher"),
		now:     time.Now,
		ctx:     context.Background(),
	}
}

// HandleMessage nats.MessageHandler
func (w *Watcher) HandleMessage(subject string, data []byte) error {
	ev, err := nats.UnmarshalJSON[BarsIngestedEvent](data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", subject, err)
	}
	opts, err := w.eventOptions(*ev)
	if err != nil {
		return err
	}
	ctx := w.context()
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err = w.run(ctx, "event", opts)
	return err
}

func (w *Watcher) context() context.Context {
	w.ctxMu.RLock()
	defer w.ctxMu.RUnlock()
	return w.ctx
}

// eventOptions 事件 -> 构建参数
func (w *Watcher) eventOptions(ev BarsIngestedEvent) (Options, error) {
	if ev.Symbol == "" {
		return Options{}, fmt.Errorf("%w: event without symbol", ErrConfig)
	}
	from, err := market.ParseDate(ev.From)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	to := from
	if ev.To != "" {
		if to, err = market.ParseDate(ev.To); err != nil {
			return Options{}, fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}

	opts := w.base
	opts.Symbols = []string{ev.Symbol}
	opts.Start = from
	opts.Explicit = []time.Time{from, to}
	opts.End = to.AddDate(0, 0, w.cfg.RelinkDays)
	if today := market.DateOf(w.now()); opts.End.After(today) {
		opts.End = today
	}
	if opts.End.Before(opts.Start) {
		opts.End = opts.Start
	}
	return opts, nil
}

// Rebuild 定时任务: 最近 RebuildDays 天，base 里的品种
func (w *Watcher) Rebuild(ctx context.Context) (*Result, error) {
	today := market.DateOf(w.now())
	opts := w.base
	opts.Start = today.AddDate(0, 0, -w.cfg.RebuildDays)
	opts.End = today
	return w.run(ctx, "schedule", opts)
}

func (w *Watcher) run(ctx context.Context, trigger string, opts Options) (*Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	log := w.log.With(zap.String("trigger", trigger), zap.Strings("symbols", opts.Symbols))
	res, err := w.builder.Build(ctx, opts)
	if err != nil {
		log.Error("rebuild failed", zap.Error(err))
		return nil, err
	}
	for _, s := range w.sinks {
		if err := s.Emit(ctx, res); err != nil {
			log.Error("emit failed", zap.Error(err))
			return res, err
		}
	}
	log.Info("rebuild done", zap.Int64("run_id", res.RunID), zap.Int("records", len(res.Records)))
	return res, nil
}

// Start 启动 cron 和 /metrics；ctx 取消后事件不再触发构建，进行中的构建在单元之间停下
func (w *Watcher) Start(ctx context.Context) error {
	w.ctxMu.Lock()
	w.ctx = ctx
	w.ctxMu.Unlock()

	if w.cfg.Schedule != "" {
		w.cron = cron.New(cron.WithSeconds())
		if _, err := w.cron.AddFunc(w.cfg.Schedule, func() {
			w.Rebuild(ctx)
		}); err != nil {
			return fmt.Errorf("%w: schedule %q: %w", ErrConfig, w.cfg.Schedule, err)
		}
		w.cron.Start()
		w.log.Info("cron started", zap.String("schedule", w.cfg.Schedule))
	}

	if w.cfg.MetricsAddr != "" && w.builder.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", w.builder.metrics.Handler())
		w.http = &http.Server{Addr: w.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := w.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				w.log.Error("metrics server", zap.Error(err))
			}
		}()
		w.log.Info("metrics listening", zap.String("addr", w.cfg.MetricsAddr))
	}
	return nil
}

// Stop 等待正在执行的定时任务结束
func (w *Watcher) Stop(ctx context.Context) {
	if w.cron != nil {
		<-w.cron.Stop().Done()
		w.log.Info("cron stopped")
	}
	if w.http != nil {
		w.http.Shutdown(ctx)
	}
}
